package services

import (
	"context"
	"fmt"

	"github.com/baharkarakas/payflow-backend/internal/cards"
	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
)

type CardService struct {
	r        repo.Cards
	accounts repo.Accounts
}

func NewCardService(r repo.Cards, accounts repo.Accounts) *CardService {
	return &CardService{r: r, accounts: accounts}
}

// Create issues a card for an account. Details are generated server-side;
// only the token and last four digits survive the call.
func (s *CardService) Create(ctx context.Context, accountID string) (models.Card, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Card{}, err
	}

	details, err := cards.GenerateDetails()
	if err != nil {
		return models.Card{}, fmt.Errorf("generate card details: %w", err)
	}

	return s.r.Create(ctx, models.Card{
		AccountID:      account.ID,
		CardToken:      cards.Token(details),
		LastFourDigits: details.LastFour(),
	})
}

func (s *CardService) ListByAccount(ctx context.Context, accountID string) ([]models.Card, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.r.ListByAccount(ctx, accountID)
}
