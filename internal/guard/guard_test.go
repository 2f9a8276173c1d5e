package guard

import (
	"context"
	"testing"

	"github.com/baharkarakas/payflow-backend/internal/models"
	"github.com/baharkarakas/payflow-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memory.Store
	guard   *Guard
	account models.Account
	card    models.Card
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	account, err := store.Accounts().Create(ctx, "charlie")
	require.NoError(t, err)

	card, err := store.Cards().Create(ctx, models.Card{
		AccountID:      account.ID,
		CardToken:      "tok-charlie-1",
		LastFourDigits: "4242",
	})
	require.NoError(t, err)

	return &fixture{
		store:   store,
		guard:   New(store.Transactions(), store.Cards()),
		account: account,
		card:    card,
	}
}

func (f *fixture) pending(t *testing.T, tx models.Transaction) models.Transaction {
	t.Helper()
	tx.AccountID = f.account.ID
	created, err := f.store.Transactions().Create(context.Background(), tx)
	require.NoError(t, err)
	return created
}

// approve resolves a transaction through the store so later evaluations see it.
func (f *fixture) approved(t *testing.T, tx models.Transaction) models.Transaction {
	t.Helper()
	created := f.pending(t, tx)
	resolved, err := f.store.Transactions().Resolve(context.Background(), created.ID, models.TxnApproved)
	require.NoError(t, err)
	return resolved
}

func TestDepositAlwaysApproves(t *testing.T) {
	f := newFixture(t)
	tx := f.pending(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})

	d, err := f.guard.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxnApproved, d.Status)
}

func TestNonPositiveAmountRejects(t *testing.T) {
	f := newFixture(t)
	tx := f.pending(t, models.Transaction{AmountCents: 0, Type: models.TxnDeposit})

	d, err := f.guard.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxnRejected, d.Status)
	assert.Equal(t, ReasonInvalidAmount, d.Reason)
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	// balance 0, purchase 500 must reject and leave balance untouched
	tx := f.pending(t, models.Transaction{
		AmountCents: 500, Type: models.TxnPurchase, CardToken: &f.card.CardToken,
	})

	d, err := f.guard.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxnRejected, d.Status)
	assert.Equal(t, ReasonInsufficientFunds, d.Reason)

	sum, err := f.store.Transactions().SumApproved(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestDepositThenFullPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approved(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})

	purchase := f.pending(t, models.Transaction{
		AmountCents: 10000, Type: models.TxnPurchase, CardToken: &f.card.CardToken,
	})
	d, err := f.guard.Evaluate(ctx, purchase)
	require.NoError(t, err)
	assert.Equal(t, models.TxnApproved, d.Status)

	_, err = f.store.Transactions().Resolve(ctx, purchase.ID, d.Status)
	require.NoError(t, err)

	sum, err := f.store.Transactions().SumApproved(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestPurchaseUnknownCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approved(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})

	otherToken := "tok-not-issued"
	tx := f.pending(t, models.Transaction{
		AmountCents: 100, Type: models.TxnPurchase, CardToken: &otherToken,
	})
	d, err := f.guard.Evaluate(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxnRejected, d.Status)
	assert.Equal(t, ReasonUnknownCard, d.Reason)
}

func TestPurchaseCardOfOtherAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.Accounts().Create(ctx, "mallory")
	require.NoError(t, err)
	otherCard, err := f.store.Cards().Create(ctx, models.Card{
		AccountID: other.ID, CardToken: "tok-mallory-1", LastFourDigits: "0001",
	})
	require.NoError(t, err)

	f.approved(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})
	tx := f.pending(t, models.Transaction{
		AmountCents: 100, Type: models.TxnPurchase, CardToken: &otherCard.CardToken,
	})
	d, err := f.guard.Evaluate(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownCard, d.Reason)
}

func TestRefundOfApprovedPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approved(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})
	purchase := f.approved(t, models.Transaction{
		AmountCents: 4000, Type: models.TxnPurchase, CardToken: &f.card.CardToken,
	})

	refund := f.pending(t, models.Transaction{
		AmountCents: 4000, Type: models.TxnRefund, RefundTransactionID: &purchase.ID,
	})
	d, err := f.guard.Evaluate(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, models.TxnApproved, d.Status)
}

func TestRefundOfPendingTargetRejects(t *testing.T) {
	f := newFixture(t)
	target := f.pending(t, models.Transaction{AmountCents: 1000, Type: models.TxnDeposit})

	refund := f.pending(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &target.ID,
	})
	d, err := f.guard.Evaluate(context.Background(), refund)
	require.NoError(t, err)
	assert.Equal(t, models.TxnRejected, d.Status)
	assert.Equal(t, ReasonRefundTargetNotApproved, d.Reason)
}

func TestRefundOfRejectedTargetRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.pending(t, models.Transaction{AmountCents: 1000, Type: models.TxnDeposit})
	_, err := f.store.Transactions().Resolve(ctx, target.ID, models.TxnRejected)
	require.NoError(t, err)

	refund := f.pending(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &target.ID,
	})
	d, err := f.guard.Evaluate(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, ReasonRefundTargetNotApproved, d.Reason)
}

func TestRefundUnknownTarget(t *testing.T) {
	f := newFixture(t)
	missing := "00000000-0000-0000-0000-000000000000"
	refund := f.pending(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &missing,
	})
	d, err := f.guard.Evaluate(context.Background(), refund)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownRefundTarget, d.Reason)
}

func TestRefundTargetOfOtherAccountRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.Accounts().Create(ctx, "mallory")
	require.NoError(t, err)
	deposit, err := f.store.Transactions().Create(ctx, models.Transaction{
		AccountID: other.ID, AmountCents: 1000, Type: models.TxnDeposit,
	})
	require.NoError(t, err)
	_, err = f.store.Transactions().Resolve(ctx, deposit.ID, models.TxnApproved)
	require.NoError(t, err)

	refund := f.pending(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &deposit.ID,
	})
	d, err := f.guard.Evaluate(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownRefundTarget, d.Reason)
}

func TestRefundOfRefundRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := f.approved(t, models.Transaction{AmountCents: 1000, Type: models.TxnDeposit})
	refund := f.approved(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &deposit.ID,
	})

	second := f.pending(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &refund.ID,
	})
	d, err := f.guard.Evaluate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, ReasonRefundOfRefund, d.Reason)
}

func TestSecondRefundOfSameTargetRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := f.approved(t, models.Transaction{AmountCents: 1000, Type: models.TxnDeposit})
	f.approved(t, models.Transaction{
		AmountCents: 1000, Type: models.TxnRefund, RefundTransactionID: &deposit.ID,
	})

	second := f.pending(t, models.Transaction{
		AmountCents: 500, Type: models.TxnRefund, RefundTransactionID: &deposit.ID,
	})
	d, err := f.guard.Evaluate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, ReasonRefundAlreadyIssued, d.Reason)
}

func TestTerminalTransactionShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deposit := f.approved(t, models.Transaction{AmountCents: 10000, Type: models.TxnDeposit})

	_, err := f.guard.Evaluate(ctx, deposit)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// the duplicate evaluation must not change the sum
	sum, err := f.store.Transactions().SumApproved(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), sum)
}
