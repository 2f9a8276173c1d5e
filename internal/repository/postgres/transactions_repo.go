package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txColumns = `id, account_id, amount_cents, type, status, card_token, refund_transaction_id, created_at`

func scanTx(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.AmountCents, &tx.Type, &tx.Status,
		&tx.CardToken, &tx.RefundTransactionID, &tx.CreatedAt)
	return tx, err
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = models.TxnPending
	}
	return scanTx(r.pool.QueryRow(ctx,
		`INSERT INTO transactions(id, account_id, amount_cents, type, status, card_token, refund_transaction_id)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+txColumns,
		tx.ID, tx.AccountID, tx.AmountCents, tx.Type, tx.Status, tx.CardToken, tx.RefundTransactionID,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	tx, err := scanTx(r.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, err
}

func (r *transactionsRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions
		  WHERE account_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTxs(rows)
}

func (r *transactionsRepo) ListByCard(ctx context.Context, cardID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions
		  WHERE card_token = (SELECT card_token FROM cards WHERE id=$1)
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`, cardID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTxs(rows)
}

func collectTxs(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Resolve is the only status mutation. The WHERE status='PENDING' guard makes
// it atomic: of two workers racing on the same id exactly one row updates,
// the loser gets ErrAlreadyResolved.
func (r *transactionsRepo) Resolve(ctx context.Context, id string, status models.TransactionStatus) (models.Transaction, error) {
	tx, err := scanTx(r.pool.QueryRow(ctx,
		`UPDATE transactions SET status=$2
		  WHERE id=$1 AND status='PENDING'
		  RETURNING `+txColumns, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err2 := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM transactions WHERE id=$1)`, id).Scan(&exists); err2 != nil {
			return models.Transaction{}, err2
		}
		if !exists {
			return models.Transaction{}, repo.ErrNotFound
		}
		return models.Transaction{}, repo.ErrAlreadyResolved
	}
	return tx, err
}

func (r *transactionsRepo) SumApproved(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type='PURCHASE' THEN -amount_cents ELSE amount_cents END), 0)
		   FROM transactions
		  WHERE account_id=$1 AND status='APPROVED'`, accountID).Scan(&sum)
	return sum, err
}

func (r *transactionsRepo) CountPending(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id=$1 AND status='PENDING'`,
		accountID).Scan(&n)
	return n, err
}

func (r *transactionsRepo) HasApprovedRefund(ctx context.Context, targetTxID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions
		  WHERE refund_transaction_id=$1 AND type='REFUND' AND status='APPROVED')`,
		targetTxID).Scan(&exists)
	return exists, err
}
