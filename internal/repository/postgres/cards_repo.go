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

type cardsRepo struct{ pool *pgxpool.Pool }

func (r *cardsRepo) Create(ctx context.Context, card models.Card) (models.Card, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cards(id, account_id, card_token, last_four_digits)
		 VALUES($1, $2, $3, $4)
		 RETURNING id, account_id, card_token, last_four_digits, created_at`,
		card.ID, card.AccountID, card.CardToken, card.LastFourDigits,
	).Scan(&card.ID, &card.AccountID, &card.CardToken, &card.LastFourDigits, &card.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: account_id FK violation, the account does not exist
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.Card{}, repo.ErrNotFound
		}
		return models.Card{}, err
	}
	return card, nil
}

func (r *cardsRepo) GetByID(ctx context.Context, id string) (models.Card, error) {
	var c models.Card
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, card_token, last_four_digits, created_at
		   FROM cards WHERE id=$1`, id,
	).Scan(&c.ID, &c.AccountID, &c.CardToken, &c.LastFourDigits, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Card{}, repo.ErrNotFound
	}
	return c, err
}

func (r *cardsRepo) GetByTokenAndAccount(ctx context.Context, token, accountID string) (models.Card, error) {
	var c models.Card
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, card_token, last_four_digits, created_at
		   FROM cards WHERE card_token=$1 AND account_id=$2`, token, accountID,
	).Scan(&c.ID, &c.AccountID, &c.CardToken, &c.LastFourDigits, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Card{}, repo.ErrNotFound
	}
	return c, err
}

func (r *cardsRepo) ListByAccount(ctx context.Context, accountID string) ([]models.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, card_token, last_four_digits, created_at
		   FROM cards WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CardToken, &c.LastFourDigits, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
