package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/payflow-backend/internal/metrics"
	"github.com/baharkarakas/payflow-backend/internal/models"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
)

// TransactionService is the ingestion side of the pipeline: it writes the
// PENDING row, publishes the id and returns immediately. All business-rule
// validation happens later in the guard; only shape-level checks live here.
type TransactionService struct {
	trx      repo.Transactions
	accounts repo.Accounts
	pub      queue.Publisher
}

func NewTransactionService(trx repo.Transactions, accounts repo.Accounts, pub queue.Publisher) *TransactionService {
	return &TransactionService{trx: trx, accounts: accounts, pub: pub}
}

type CreateTransactionRequest struct {
	AccountID           string  `json:"account_id"`
	AmountCents         int64   `json:"amount_cents"`
	Type                string  `json:"type"`
	CardToken           *string `json:"card_token,omitempty"`
	RefundTransactionID *string `json:"refund_transaction_id,omitempty"`
}

func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (models.Transaction, error) {
	account, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return models.Transaction{}, err
	}

	tx, err := s.trx.Create(ctx, models.Transaction{
		AccountID:           account.ID,
		AmountCents:         req.AmountCents,
		Type:                models.TransactionType(req.Type),
		Status:              models.TxnPending,
		CardToken:           req.CardToken,
		RefundTransactionID: req.RefundTransactionID,
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	// Publish returns once the broker durably accepted the job. If it
	// fails the row stays PENDING and the caller sees an infra error; no
	// financial effect was applied.
	if err := s.pub.PublishTransaction(ctx, tx.ID, tx.AccountID); err != nil {
		slog.Error("enqueue transaction failed", "transaction_id", tx.ID, "err", err)
		return models.Transaction{}, fmt.Errorf("enqueue transaction: %w", err)
	}

	metrics.TransactionsAccepted.WithLabelValues(string(tx.Type)).Inc()
	metrics.QueuePublished.WithLabelValues(queue.TransactionsQueue).Inc()
	return tx, nil
}

func (s *TransactionService) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return s.trx.GetByID(ctx, id)
}

func (s *TransactionService) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	return s.trx.ListByAccount(ctx, accountID, limit, offset)
}

func (s *TransactionService) ListByCard(ctx context.Context, cardID string, limit, offset int) ([]models.Transaction, error) {
	return s.trx.ListByCard(ctx, cardID, limit, offset)
}
