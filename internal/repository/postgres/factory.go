package postgres

import (
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Accounts     repo.Accounts
	Cards        repo.Cards
	Transactions repo.Transactions
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Accounts:     &accountsRepo{pool},
		Cards:        &cardsRepo{pool},
		Transactions: &transactionsRepo{pool},
	}
}
