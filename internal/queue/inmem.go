package queue

import (
	"context"
	"encoding/json"
	"sync"
)

// InMem is a channel-backed bridge with the same at-least-once surface as
// the broker-backed one. Used by tests to simulate duplicate delivery and
// bounded retries without a broker.
type InMem struct {
	mu     sync.Mutex
	queues map[string]chan message
}

type message struct {
	body    []byte
	attempt int64
}

func NewInMem() *InMem {
	return &InMem{queues: map[string]chan message{}}
}

func (q *InMem) queue(name string) chan message {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan message, 1024)
		q.queues[name] = ch
	}
	return ch
}

func (q *InMem) PublishTransaction(_ context.Context, transactionID, _ string) error {
	body, err := json.Marshal(TransactionJob{TransactionID: transactionID})
	if err != nil {
		return err
	}
	q.queue(TransactionsQueue) <- message{body: body, attempt: 1}
	return nil
}

func (q *InMem) PublishBalance(_ context.Context, accountID string) error {
	body, err := json.Marshal(BalanceJob{AccountID: accountID})
	if err != nil {
		return err
	}
	q.queue(BalanceQueue) <- message{body: body, attempt: 1}
	return nil
}

// PublishDuplicate re-enqueues a transaction job as a broker redelivery
// would, without resetting the attempt counter.
func (q *InMem) PublishDuplicate(transactionID string, attempt int64) {
	body, _ := json.Marshal(TransactionJob{TransactionID: transactionID})
	q.queue(TransactionsQueue) <- message{body: body, attempt: attempt}
}

func (q *InMem) Consume(ctx context.Context, queueName string) (<-chan Delivery, error) {
	src := q.queue(queueName)
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-src:
				if !ok {
					return
				}
				d := Delivery{
					Body:    m.body,
					Attempt: m.attempt,
					ack:     func() error { return nil },
					retry: func(context.Context) error {
						src <- message{body: m.body, attempt: m.attempt + 1}
						return nil
					},
				}
				select {
				case <-ctx.Done():
					return
				case out <- d:
				}
			}
		}
	}()
	return out, nil
}

// Len reports the number of undelivered messages in a queue.
func (q *InMem) Len(queueName string) int { return len(q.queue(queueName)) }
