package repository

import (
	"context"

	"github.com/baharkarakas/payflow-backend/internal/models"
)

type Accounts interface {
	Create(ctx context.Context, username string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

type Cards interface {
	Create(ctx context.Context, card models.Card) (models.Card, error)
	GetByID(ctx context.Context, id string) (models.Card, error)
	GetByTokenAndAccount(ctx context.Context, token, accountID string) (models.Card, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.Card, error)
}

// Transactions is the ledger: rows are append-only, Resolve is the single
// mutation path for status and must be atomic under concurrent attempts.
type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	ListByCard(ctx context.Context, cardID string, limit, offset int) ([]models.Transaction, error)

	// Resolve moves a PENDING transaction to a terminal status. A second
	// attempt on the same id fails with ErrAlreadyResolved.
	Resolve(ctx context.Context, id string, status models.TransactionStatus) (models.Transaction, error)

	// SumApproved returns the signed sum of APPROVED effects for an account.
	SumApproved(ctx context.Context, accountID string) (int64, error)
	CountPending(ctx context.Context, accountID string) (int64, error)
	// HasApprovedRefund reports whether an APPROVED refund already targets
	// the given transaction.
	HasApprovedRefund(ctx context.Context, targetTxID string) (bool, error)
}
