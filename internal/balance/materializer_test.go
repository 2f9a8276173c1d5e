package balance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/baharkarakas/payflow-backend/internal/models"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/baharkarakas/payflow-backend/internal/repository/memory"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaterializer(t *testing.T) (*Materializer, *memory.Store, *queue.InMem, *miniredis.Miniredis, models.Account) {
	t.Helper()
	store := memory.NewStore()
	mr := miniredis.RunT(t)
	cache := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	bridge := queue.NewInMem()
	m := NewMaterializer(store.Accounts(), store.Transactions(), cache, bridge, time.Hour)

	account, err := store.Accounts().Create(context.Background(), "charlie")
	require.NoError(t, err)
	return m, store, bridge, mr, account
}

func approvedDeposit(t *testing.T, store *memory.Store, accountID string, cents int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Transactions().Create(ctx, models.Transaction{
		AccountID: accountID, AmountCents: cents, Type: models.TxnDeposit,
	})
	require.NoError(t, err)
	_, err = store.Transactions().Resolve(ctx, tx.ID, models.TxnApproved)
	require.NoError(t, err)
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	m, _, _, _, _ := newMaterializer(t)
	_, err := m.GetBalance(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestGetBalanceCalculatedWhenSettled(t *testing.T) {
	m, store, _, _, account := newMaterializer(t)
	approvedDeposit(t, store, account.ID, 12500)

	b, err := m.GetBalance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BalanceCalculated, b.Status)
	assert.Equal(t, int64(12500), b.BalanceCents)
}

func TestGetBalanceProcessingWhilePending(t *testing.T) {
	m, store, bridge, _, account := newMaterializer(t)
	ctx := context.Background()
	approvedDeposit(t, store, account.ID, 5000)

	_, err := store.Transactions().Create(ctx, models.Transaction{
		AccountID: account.ID, AmountCents: 100, Type: models.TxnDeposit,
	})
	require.NoError(t, err)

	b, err := m.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BalanceProcessing, b.Status)
	assert.Equal(t, ProcessingMessage, b.Message)
	// a recompute job was enqueued for when the pending work settles
	assert.Equal(t, 1, bridge.Len(queue.BalanceQueue))
}

func TestGetBalanceProcessingOnlyWhilePending(t *testing.T) {
	m, store, _, _, account := newMaterializer(t)
	ctx := context.Background()

	tx, err := store.Transactions().Create(ctx, models.Transaction{
		AccountID: account.ID, AmountCents: 3000, Type: models.TxnDeposit,
	})
	require.NoError(t, err)

	b, err := m.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BalanceProcessing, b.Status)

	_, err = store.Transactions().Resolve(ctx, tx.ID, models.TxnApproved)
	require.NoError(t, err)

	b, err = m.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BalanceCalculated, b.Status)
	assert.Equal(t, int64(3000), b.BalanceCents)
}

func TestGetBalanceServesCache(t *testing.T) {
	m, _, _, mr, account := newMaterializer(t)
	require.NoError(t, mr.Set("balance:"+account.ID, "7777"))

	b, err := m.GetBalance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7777), b.BalanceCents)
}

func TestGetBalanceRecomputesOnCacheMiss(t *testing.T) {
	m, store, _, mr, account := newMaterializer(t)
	approvedDeposit(t, store, account.ID, 4000)

	b, err := m.GetBalance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), b.BalanceCents)

	cached, err := mr.Get("balance:" + account.ID)
	require.NoError(t, err)
	assert.Equal(t, "4000", cached)
}

func TestRecomputeRefreshesStaleCache(t *testing.T) {
	m, store, _, mr, account := newMaterializer(t)
	require.NoError(t, mr.Set("balance:"+account.ID, "1"))
	approvedDeposit(t, store, account.ID, 9000)

	cents, err := m.Recompute(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), cents)

	cached, err := mr.Get("balance:" + account.ID)
	require.NoError(t, err)
	assert.Equal(t, "9000", cached)
}
