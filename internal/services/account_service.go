package services

import (
	"context"
	"strings"

	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
)

type AccountService struct {
	r repo.Accounts
}

func NewAccountService(r repo.Accounts) *AccountService { return &AccountService{r: r} }

func (s *AccountService) Create(ctx context.Context, username string) (models.Account, error) {
	a := models.Account{Username: strings.TrimSpace(username)}
	if err := a.Validate(); err != nil {
		return models.Account{}, err
	}
	return s.r.Create(ctx, a.Username)
}

func (s *AccountService) GetByID(ctx context.Context, id string) (models.Account, error) {
	return s.r.GetByID(ctx, id)
}

func (s *AccountService) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	return s.r.List(ctx, limit, offset)
}
