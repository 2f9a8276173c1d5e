// Package processor consumes queued transaction jobs, applies the guard and
// resolves the ledger. Per delivery the path is: re-read current state,
// evaluate, persist the single terminal resolution, refresh the cached
// balance, ack. Guard evaluation is side-effect free and resolution is
// atomic, so a crash anywhere before the ack is repaired by redelivery.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/baharkarakas/payflow-backend/internal/balance"
	"github.com/baharkarakas/payflow-backend/internal/guard"
	"github.com/baharkarakas/payflow-backend/internal/metrics"
	"github.com/baharkarakas/payflow-backend/internal/models"
	"github.com/baharkarakas/payflow-backend/internal/queue"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/baharkarakas/payflow-backend/internal/worker"
)

type Processor struct {
	ledger      repo.Transactions
	guard       *guard.Guard
	mat         *balance.Materializer
	consumer    queue.Consumer
	pool        *worker.Pool
	maxAttempts int64
}

func New(ledger repo.Transactions, g *guard.Guard, mat *balance.Materializer, consumer queue.Consumer, pool *worker.Pool, maxAttempts int64) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Processor{
		ledger:      ledger,
		guard:       g,
		mat:         mat,
		consumer:    consumer,
		pool:        pool,
		maxAttempts: maxAttempts,
	}
}

// Run drains both queues until ctx is cancelled. The delivery channels
// close on connection loss; Run returns so the caller can redial.
func (p *Processor) Run(ctx context.Context) error {
	txs, err := p.consumer.Consume(ctx, queue.TransactionsQueue)
	if err != nil {
		return err
	}
	balances, err := p.consumer.Consume(ctx, queue.BalanceQueue)
	if err != nil {
		return err
	}

	for txs != nil || balances != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-txs:
			if !ok {
				txs = nil
				continue
			}
			p.pool.Submit(func() { p.handleTransaction(ctx, d) })
		case d, ok := <-balances:
			if !ok {
				balances = nil
				continue
			}
			p.pool.Submit(func() { p.handleBalance(ctx, d) })
		}
	}
	return nil
}

func (p *Processor) handleTransaction(ctx context.Context, d queue.Delivery) {
	var job queue.TransactionJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		slog.Error("malformed transaction job", "err", err)
		_ = d.Ack() // poison message, nothing to retry
		return
	}

	if err := p.Process(ctx, job.TransactionID); err != nil {
		p.retryOrFail(ctx, d, job.TransactionID, err)
		return
	}
	if err := d.Ack(); err != nil {
		slog.Error("ack failed", "transaction_id", job.TransactionID, "err", err)
	}
}

// Process applies the guard to one transaction id and persists the outcome.
// It is safe to call any number of times for the same id: duplicates
// short-circuit on the terminal ledger state. Only infra errors return
// non-nil.
func (p *Processor) Process(ctx context.Context, transactionID string) error {
	tx, err := p.ledger.GetByID(ctx, transactionID)
	if errors.Is(err, repo.ErrNotFound) {
		// enqueue happens after the pending insert committed, so this is
		// a stale or foreign message
		slog.Warn("queued transaction not in ledger", "transaction_id", transactionID)
		return nil
	}
	if err != nil {
		return err
	}

	decision, err := p.guard.Evaluate(ctx, tx)
	if errors.Is(err, guard.ErrAlreadyProcessed) {
		slog.Info("duplicate delivery ignored", "transaction_id", tx.ID, "status", tx.Status)
		return nil
	}
	if err != nil {
		return err
	}

	resolved, err := p.ledger.Resolve(ctx, tx.ID, decision.Status)
	if errors.Is(err, repo.ErrAlreadyResolved) {
		// lost the race to another worker; their resolution stands
		return nil
	}
	if err != nil {
		return err
	}

	metrics.TransactionsProcessed.WithLabelValues(string(resolved.Type), string(resolved.Status)).Inc()
	if decision.Status == models.TxnRejected {
		metrics.TransactionsRejected.WithLabelValues(decision.Reason).Inc()
		slog.Info("transaction rejected",
			"transaction_id", resolved.ID, "account_id", resolved.AccountID, "reason", decision.Reason)
	} else {
		slog.Info("transaction approved",
			"transaction_id", resolved.ID, "account_id", resolved.AccountID,
			"type", resolved.Type, "amount_cents", resolved.AmountCents)
	}

	if _, err := p.mat.Recompute(ctx, resolved.AccountID); err != nil {
		// resolution is already durable; the cache catches up on the next read
		slog.Warn("balance recompute failed", "account_id", resolved.AccountID, "err", err)
	}
	return nil
}

// retryOrFail re-enqueues an infra failure with a bumped attempt counter,
// and past the bound resolves the transaction to ERROR so it cannot stay
// PENDING forever. ERROR applies no financial effect; the caller may retry
// the whole request.
func (p *Processor) retryOrFail(ctx context.Context, d queue.Delivery, transactionID string, cause error) {
	if d.Attempt < p.maxAttempts {
		slog.Warn("processing failed, retrying",
			"transaction_id", transactionID, "attempt", d.Attempt, "err", cause)
		metrics.QueueRetries.Inc()
		if err := d.Retry(ctx); err != nil {
			slog.Error("retry failed", "transaction_id", transactionID, "err", err)
		}
		return
	}

	slog.Error("processing attempts exhausted",
		"transaction_id", transactionID, "attempts", d.Attempt, "err", cause)
	if _, err := p.ledger.Resolve(ctx, transactionID, models.TxnError); err != nil &&
		!errors.Is(err, repo.ErrAlreadyResolved) && !errors.Is(err, repo.ErrNotFound) {
		slog.Error("marking transaction ERROR failed", "transaction_id", transactionID, "err", err)
	}
	_ = d.Ack()
}

func (p *Processor) handleBalance(ctx context.Context, d queue.Delivery) {
	var job queue.BalanceJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		slog.Error("malformed balance job", "err", err)
		_ = d.Ack()
		return
	}
	if _, err := p.mat.Recompute(ctx, job.AccountID); err != nil {
		slog.Warn("balance job failed", "account_id", job.AccountID, "err", err)
		if d.Attempt < p.maxAttempts {
			_ = d.Retry(ctx)
			return
		}
	}
	_ = d.Ack()
}
