package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// RetryQueue is the durable holding area for deferred messages.
type RetryQueue struct {
	client *redis.Client
	key    string
}

// NewRetryQueue creates a queue on the given Redis list key.
func NewRetryQueue(client *redis.Client, key string) *RetryQueue {
	if key == "" {
		key = "dispatch:retry"
	}
	return &RetryQueue{client: client, key: key}
}

// Enqueue appends one deferred message. The entry survives process restarts;
// only a successful Dequeue removes it.
func (q *RetryQueue) Enqueue(ctx context.Context, qm domain.QueuedMessage) error {
	data, err := json.Marshal(qm)
	if err != nil {
		return fmt.Errorf("encoding queued message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueueing message: %w", err)
	}
	return nil
}

// Dequeue pops the oldest deferred message. ok is false when the queue is
// empty. Entries that fail to decode are dropped and reported as an error;
// a poisoned entry must not wedge the drain loop.
func (q *RetryQueue) Dequeue(ctx context.Context) (domain.QueuedMessage, bool, error) {
	data, err := q.client.RPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return domain.QueuedMessage{}, false, nil
	}
	if err != nil {
		return domain.QueuedMessage{}, false, fmt.Errorf("dequeueing message: %w", err)
	}

	var qm domain.QueuedMessage
	if err := json.Unmarshal(data, &qm); err != nil {
		return domain.QueuedMessage{}, false, fmt.Errorf("decoding queued message: %w", err)
	}
	return qm, true, nil
}

// Len returns the number of deferred messages.
func (q *RetryQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
