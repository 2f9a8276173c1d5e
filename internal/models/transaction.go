package models

import "time"

type TransactionType string

const (
	TxnPurchase TransactionType = "PURCHASE"
	TxnDeposit  TransactionType = "DEPOSIT"
	TxnRefund   TransactionType = "REFUND"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxnPurchase, TxnDeposit, TxnRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxnPending  TransactionStatus = "PENDING"
	TxnApproved TransactionStatus = "APPROVED"
	TxnRejected TransactionStatus = "REJECTED"
	// TxnError marks processing failures unrelated to business rules; no
	// financial effect was applied and the whole request may be retried.
	TxnError TransactionStatus = "ERROR"
)

func (s TransactionStatus) Terminal() bool { return s != TxnPending }

type Transaction struct {
	ID                  string            `json:"id"`
	AccountID           string            `json:"account_id"`
	AmountCents         int64             `json:"amount_cents"`
	Type                TransactionType   `json:"type"`
	Status              TransactionStatus `json:"status"`
	CardToken           *string           `json:"card_token,omitempty"`
	RefundTransactionID *string           `json:"refund_transaction_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// Effect is the signed contribution of an APPROVED transaction to the
// account balance: deposits and refunds credit, purchases debit.
func (t Transaction) Effect() int64 {
	if t.Type == TxnPurchase {
		return -t.AmountCents
	}
	return t.AmountCents
}
