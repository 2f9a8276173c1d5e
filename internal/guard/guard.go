// Package guard decides APPROVED or REJECTED for a pending transaction,
// deterministically from ledger state at evaluation time. Evaluation has no
// side effects; re-running the money-moving decision twice for one id is the
// bug class this package exists to prevent, so the caller must re-read the
// transaction and the guard short-circuits anything already terminal.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
)

// ErrAlreadyProcessed signals a duplicate delivery: the transaction already
// has a terminal status and no financial effect may be reapplied. It is an
// idempotent no-op for the caller, not a failure.
var ErrAlreadyProcessed = errors.New("transaction already processed")

// Rejection reasons, recorded in logs and metrics.
const (
	ReasonInvalidAmount           = "invalid_amount"
	ReasonUnknownCard             = "unknown_card"
	ReasonInsufficientFunds       = "insufficient_funds"
	ReasonUnknownRefundTarget     = "unknown_refund_target"
	ReasonRefundTargetNotApproved = "refund_target_not_approved"
	ReasonRefundOfRefund          = "refund_of_refund"
	ReasonRefundAlreadyIssued     = "refund_target_already_refunded"
	ReasonUnknownType             = "unknown_type"
)

type Decision struct {
	Status models.TransactionStatus
	Reason string // empty on approval
}

func approve() Decision             { return Decision{Status: models.TxnApproved} }
func reject(reason string) Decision { return Decision{Status: models.TxnRejected, Reason: reason} }

type Guard struct {
	ledger repo.Transactions
	cards  repo.Cards
}

func New(ledger repo.Transactions, cards repo.Cards) *Guard {
	return &Guard{ledger: ledger, cards: cards}
}

// Evaluate inspects a freshly-read transaction and returns the terminal
// decision. Rules run in order, first failure wins. Only infrastructure
// problems (ledger unavailable) return a non-nil error besides
// ErrAlreadyProcessed.
func (g *Guard) Evaluate(ctx context.Context, tx models.Transaction) (Decision, error) {
	if tx.Status.Terminal() {
		return Decision{}, ErrAlreadyProcessed
	}
	if tx.AmountCents <= 0 {
		return reject(ReasonInvalidAmount), nil
	}

	switch tx.Type {
	case models.TxnDeposit:
		return approve(), nil
	case models.TxnPurchase:
		return g.evaluatePurchase(ctx, tx)
	case models.TxnRefund:
		return g.evaluateRefund(ctx, tx)
	default:
		return reject(ReasonUnknownType), nil
	}
}

func (g *Guard) evaluatePurchase(ctx context.Context, tx models.Transaction) (Decision, error) {
	if tx.CardToken == nil {
		return reject(ReasonUnknownCard), nil
	}
	_, err := g.cards.GetByTokenAndAccount(ctx, *tx.CardToken, tx.AccountID)
	if errors.Is(err, repo.ErrNotFound) {
		return reject(ReasonUnknownCard), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("resolve card token: %w", err)
	}

	balance, err := g.ledger.SumApproved(ctx, tx.AccountID)
	if err != nil {
		return Decision{}, fmt.Errorf("sum approved: %w", err)
	}
	if balance-tx.AmountCents < 0 {
		return reject(ReasonInsufficientFunds), nil
	}
	return approve(), nil
}

// Refund amount is independently supplied and validated only for being
// positive; it is not required to match the original transaction's amount.
func (g *Guard) evaluateRefund(ctx context.Context, tx models.Transaction) (Decision, error) {
	if tx.RefundTransactionID == nil {
		return reject(ReasonUnknownRefundTarget), nil
	}

	target, err := g.ledger.GetByID(ctx, *tx.RefundTransactionID)
	if errors.Is(err, repo.ErrNotFound) {
		return reject(ReasonUnknownRefundTarget), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load refund target: %w", err)
	}

	if target.AccountID != tx.AccountID {
		return reject(ReasonUnknownRefundTarget), nil
	}
	if target.Type == models.TxnRefund {
		return reject(ReasonRefundOfRefund), nil
	}
	if target.Status != models.TxnApproved {
		return reject(ReasonRefundTargetNotApproved), nil
	}

	refunded, err := g.ledger.HasApprovedRefund(ctx, target.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("check prior refunds: %w", err)
	}
	if refunded {
		return reject(ReasonRefundAlreadyIssued), nil
	}
	return approve(), nil
}
