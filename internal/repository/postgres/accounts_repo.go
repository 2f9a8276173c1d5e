package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type accountsRepo struct{ pool *pgxpool.Pool }

func (r *accountsRepo) Create(ctx context.Context, username string) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts(id, username) VALUES($1, $2)
		 RETURNING id, username, created_at`,
		uuid.NewString(), username,
	).Scan(&a.ID, &a.Username, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Account{}, repo.ErrDuplicateUsername
		}
		return models.Account{}, err
	}
	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM accounts WHERE id=$1`, id,
	).Scan(&a.ID, &a.Username, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, repo.ErrNotFound
	}
	return a, err
}

func (r *accountsRepo) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, created_at FROM accounts
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
