// Package queue decouples transaction ingestion from processing. Messages
// carry ids only; the processor re-reads current state from the ledger so it
// never acts on a stale payload. Delivery is at-least-once: duplicates are
// expected and absorbed by the guard, not prevented here.
package queue

import "context"

const (
	TransactionsQueue = "transactions_queue"
	BalanceQueue      = "calculate_balance_queue"
)

type TransactionJob struct {
	TransactionID string `json:"transaction_id"`
}

type BalanceJob struct {
	AccountID string `json:"account_id"`
}

// Publisher returns only once the broker has durably accepted the message.
type Publisher interface {
	PublishTransaction(ctx context.Context, transactionID, accountID string) error
	PublishBalance(ctx context.Context, accountID string) error
}

// Delivery is one received message. Exactly one of Ack or Retry must be
// called; Retry re-enqueues the body with the attempt counter bumped.
type Delivery struct {
	Body    []byte
	Attempt int64

	ack   func() error
	retry func(ctx context.Context) error
}

func (d Delivery) Ack() error                      { return d.ack() }
func (d Delivery) Retry(ctx context.Context) error { return d.retry(ctx) }

// Consumer yields an infinite stream of deliveries for one queue. The
// channel closes when ctx is cancelled or the connection is lost; callers
// are expected to re-consume after connection loss.
type Consumer interface {
	Consume(ctx context.Context, queueName string) (<-chan Delivery, error)
}
