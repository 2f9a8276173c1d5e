// Package memory implements the repository interfaces on process-local maps.
// It mirrors the postgres behavior, including the atomic resolve contract,
// and backs the unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	usernames    map[string]bool
	cards        map[string]models.Card
	transactions map[string]models.Transaction
	seq          int64
}

func NewStore() *Store {
	return &Store{
		accounts:     map[string]models.Account{},
		usernames:    map[string]bool{},
		cards:        map[string]models.Card{},
		transactions: map[string]models.Transaction{},
	}
}

func (s *Store) Accounts() repo.Accounts         { return (*accounts)(s) }
func (s *Store) Cards() repo.Cards               { return (*cards)(s) }
func (s *Store) Transactions() repo.Transactions { return (*transactions)(s) }

// monotonic timestamps so created_at ordering is deterministic in tests
func (s *Store) now() time.Time {
	s.seq++
	return time.Unix(0, s.seq*int64(time.Millisecond)).UTC()
}

type accounts Store

func (r *accounts) Create(_ context.Context, username string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usernames[username] {
		return models.Account{}, repo.ErrDuplicateUsername
	}
	a := models.Account{ID: uuid.NewString(), Username: username, CreatedAt: (*Store)(r).now()}
	r.accounts[a.ID] = a
	r.usernames[username] = true
	return a, nil
}

func (r *accounts) GetByID(_ context.Context, id string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return models.Account{}, repo.ErrNotFound
	}
	return a, nil
}

func (r *accounts) List(_ context.Context, limit, offset int) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type cards Store

func (r *cards) Create(_ context.Context, card models.Card) (models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[card.AccountID]; !ok {
		return models.Card{}, repo.ErrNotFound
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	card.CreatedAt = (*Store)(r).now()
	r.cards[card.ID] = card
	return card, nil
}

func (r *cards) GetByID(_ context.Context, id string) (models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return models.Card{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *cards) GetByTokenAndAccount(_ context.Context, token, accountID string) (models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.CardToken == token && c.AccountID == accountID {
			return c, nil
		}
	}
	return models.Card{}, repo.ErrNotFound
}

func (r *cards) ListByAccount(_ context.Context, accountID string) ([]models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Card
	for _, c := range r.cards {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type transactions Store

func (r *transactions) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = models.TxnPending
	}
	tx.CreatedAt = (*Store)(r).now()
	r.transactions[tx.ID] = tx
	return tx, nil
}

func (r *transactions) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, nil
}

func (r *transactions) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *transactions) ListByCard(_ context.Context, cardID string, limit, offset int) ([]models.Transaction, error) {
	r.mu.Lock()
	token := ""
	if c, ok := r.cards[cardID]; ok {
		token = c.CardToken
	}
	var out []models.Transaction
	for _, tx := range r.transactions {
		if token != "" && tx.CardToken != nil && *tx.CardToken == token {
			out = append(out, tx)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *transactions) Resolve(_ context.Context, id string, status models.TransactionStatus) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	if tx.Status != models.TxnPending {
		return models.Transaction{}, repo.ErrAlreadyResolved
	}
	tx.Status = status
	r.transactions[id] = tx
	return tx, nil
}

func (r *transactions) SumApproved(_ context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, tx := range r.transactions {
		if tx.AccountID == accountID && tx.Status == models.TxnApproved {
			sum += tx.Effect()
		}
	}
	return sum, nil
}

func (r *transactions) CountPending(_ context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, tx := range r.transactions {
		if tx.AccountID == accountID && tx.Status == models.TxnPending {
			n++
		}
	}
	return n, nil
}

func (r *transactions) HasApprovedRefund(_ context.Context, targetTxID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.Type == models.TxnRefund && tx.Status == models.TxnApproved &&
			tx.RefundTransactionID != nil && *tx.RefundTransactionID == targetTxID {
			return true, nil
		}
	}
	return false, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
