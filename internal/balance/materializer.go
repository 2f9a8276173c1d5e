// Package balance materializes account balances. The fast path serves a
// cached or freshly-summed value; while transactions for the account are
// still pending it answers PROCESSING and hands recomputation to the
// processor, trading read consistency for an explicit come-back-shortly
// contract that callers poll with backoff.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/baharkarakas/payflow-backend/internal/metrics"
	"github.com/baharkarakas/payflow-backend/internal/models"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// ProcessingMessage is surfaced verbatim to polling clients.
const ProcessingMessage = "The account balance is being calculated. Please try again in a few moments."

type Materializer struct {
	accounts repo.Accounts
	ledger   repo.Transactions
	cache    goredis.UniversalClient
	pub      queue.Publisher
	ttl      time.Duration
}

func NewMaterializer(accounts repo.Accounts, ledger repo.Transactions, cache goredis.UniversalClient, pub queue.Publisher, ttl time.Duration) *Materializer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Materializer{accounts: accounts, ledger: ledger, cache: cache, pub: pub, ttl: ttl}
}

func cacheKey(accountID string) string { return "balance:" + accountID }

// GetBalance returns CALCULATED when no transaction for the account is
// pending, PROCESSING otherwise. A PROCESSING answer also enqueues a
// recompute so the cache is warm once the in-flight work resolves.
func (m *Materializer) GetBalance(ctx context.Context, accountID string) (models.Balance, error) {
	if _, err := m.accounts.GetByID(ctx, accountID); err != nil {
		return models.Balance{}, err
	}

	pending, err := m.ledger.CountPending(ctx, accountID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("count pending: %w", err)
	}
	if pending > 0 {
		if err := m.pub.PublishBalance(ctx, accountID); err != nil {
			slog.Warn("balance recompute enqueue failed", "account_id", accountID, "err", err)
		}
		return models.Balance{
			AccountID: accountID,
			Status:    models.BalanceProcessing,
			Message:   ProcessingMessage,
		}, nil
	}

	if cents, ok := m.cached(ctx, accountID); ok {
		metrics.BalanceCacheHits.Inc()
		return models.Balance{AccountID: accountID, BalanceCents: cents, Status: models.BalanceCalculated}, nil
	}
	metrics.BalanceCacheMisses.Inc()

	cents, err := m.Recompute(ctx, accountID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.Balance{AccountID: accountID, BalanceCents: cents, Status: models.BalanceCalculated}, nil
}

func (m *Materializer) cached(ctx context.Context, accountID string) (int64, bool) {
	val, err := m.cache.Get(ctx, cacheKey(accountID)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false
	}
	if err != nil {
		slog.Warn("balance cache read failed", "account_id", accountID, "err", err)
		return 0, false
	}
	cents, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return cents, true
}

// Recompute sums the approved ledger effects and refreshes the cache. The
// processor calls it after each resolution and for queued balance jobs.
func (m *Materializer) Recompute(ctx context.Context, accountID string) (int64, error) {
	cents, err := m.ledger.SumApproved(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("sum approved: %w", err)
	}
	if err := m.cache.Set(ctx, cacheKey(accountID), cents, m.ttl).Err(); err != nil {
		// cache is advisory; the ledger stays the source of truth
		slog.Warn("balance cache write failed", "account_id", accountID, "err", err)
	}
	return cents, nil
}
