package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	headerAttempts  = "x-attempts"
	headerAccountID = "x-account-id"
)

// RabbitMQ implements Publisher and Consumer over a single AMQP connection.
// The publish channel runs in confirm mode so Publish blocks until the
// broker acknowledges the persistent message.
type RabbitMQ struct {
	conn *amqp.Connection

	mu    sync.Mutex
	pubCh *amqp.Channel

	prefetch int
}

func DialRabbitMQ(url string, prefetch int) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	r := &RabbitMQ{conn: conn, prefetch: prefetch}
	if _, err := r.publishChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error { return r.conn.Close() }

func (r *RabbitMQ) publishChannel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubCh != nil && !r.pubCh.IsClosed() {
		return r.pubCh, nil
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	r.pubCh = ch
	return ch, nil
}

func (r *RabbitMQ) PublishTransaction(ctx context.Context, transactionID, accountID string) error {
	body, err := json.Marshal(TransactionJob{TransactionID: transactionID})
	if err != nil {
		return err
	}
	return r.publish(ctx, TransactionsQueue, body, amqp.Table{
		headerAttempts:  int64(1),
		headerAccountID: accountID,
	})
}

func (r *RabbitMQ) PublishBalance(ctx context.Context, accountID string) error {
	body, err := json.Marshal(BalanceJob{AccountID: accountID})
	if err != nil {
		return err
	}
	return r.publish(ctx, BalanceQueue, body, amqp.Table{headerAttempts: int64(1)})
}

func (r *RabbitMQ) publish(ctx context.Context, queueName string, body []byte, headers amqp.Table) error {
	ch, err := r.publishChannel()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := declareQueue(ch, queueName); err != nil {
		return err
	}
	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queueName, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await broker confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked publish to %s", queueName)
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

func (r *RabbitMQ) Consume(ctx context.Context, queueName string) (<-chan Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := declareQueue(ch, queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					slog.Warn("consumer channel closed", "queue", queueName)
					return
				}
				out <- r.wrap(queueName, d)
			}
		}
	}()
	return out, nil
}

func (r *RabbitMQ) wrap(queueName string, d amqp.Delivery) Delivery {
	attempt := int64(1)
	if v, ok := d.Headers[headerAttempts]; ok {
		switch n := v.(type) {
		case int64:
			attempt = n
		case int32:
			attempt = int64(n)
		}
	}
	return Delivery{
		Body:    d.Body,
		Attempt: attempt,
		ack:     func() error { return d.Ack(false) },
		// Retry republishes with a bumped attempt counter and acks the
		// original, so poisoned messages cannot spin in redelivery forever.
		retry: func(ctx context.Context) error {
			headers := amqp.Table{headerAttempts: attempt + 1}
			if acc, ok := d.Headers[headerAccountID]; ok {
				headers[headerAccountID] = acc
			}
			if err := r.publish(ctx, queueName, d.Body, headers); err != nil {
				// keep the original for broker redelivery instead
				return d.Nack(false, true)
			}
			return d.Ack(false)
		},
	}
}
