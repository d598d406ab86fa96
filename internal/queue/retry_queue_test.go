package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func queuedMessage(to string) domain.QueuedMessage {
	return domain.QueuedMessage{
		Message: domain.Message{
			To:        []string{to},
			FromEmail: "noreply@sender.example",
			Subject:   "Hello",
			TenantID:  "tenant-1",
		},
		EnqueuedAt: time.Now().UTC(),
		Attempts:   1,
	}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := NewRetryQueue(setupTestRedis(t), "")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queuedMessage("a@example.com")))
	require.NoError(t, q.Enqueue(ctx, queuedMessage("b@example.com")))

	first, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", first.Message.To[0])
	assert.Equal(t, 1, first.Attempts)

	second, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b@example.com", second.Message.To[0])
}

func TestDequeueEmpty(t *testing.T) {
	q := NewRetryQueue(setupTestRedis(t), "dispatch:retry:test")
	_, ok, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLen(t *testing.T) {
	q := NewRetryQueue(setupTestRedis(t), "")
	ctx := context.Background()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Enqueue(ctx, queuedMessage("a@example.com")))
	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDequeueRejectsPoisonedEntry(t *testing.T) {
	rdb := setupTestRedis(t)
	q := NewRetryQueue(rdb, "")
	ctx := context.Background()

	require.NoError(t, rdb.LPush(ctx, "dispatch:retry", "not json").Err())

	_, _, err := q.Dequeue(ctx)
	assert.Error(t, err)

	// Poisoned entry is gone, not stuck at the head.
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type recordingResubmitter struct {
	mu   sync.Mutex
	got  []domain.QueuedMessage
	done chan struct{}
}

func (r *recordingResubmitter) Resubmit(ctx context.Context, qm domain.QueuedMessage) domain.Outcome {
	r.mu.Lock()
	r.got = append(r.got, qm)
	n := len(r.got)
	r.mu.Unlock()
	if n == 2 {
		close(r.done)
	}
	return domain.Outcome{Status: domain.StatusSent, Region: "us-east-1"}
}

func TestDrainerResubmitsInOrder(t *testing.T) {
	q := NewRetryQueue(setupTestRedis(t), "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, queuedMessage("a@example.com")))
	require.NoError(t, q.Enqueue(ctx, queuedMessage("b@example.com")))

	rec := &recordingResubmitter{done: make(chan struct{})}
	NewDrainer(q, rec, 10*time.Millisecond).Start(ctx)

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("drainer did not resubmit both messages")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.got, 2)
	assert.Equal(t, "a@example.com", rec.got[0].Message.To[0])
	assert.Equal(t, "b@example.com", rec.got[1].Message.To[0])
}

func TestDrainerStopsOnCancel(t *testing.T) {
	q := NewRetryQueue(setupTestRedis(t), "")
	ctx, cancel := context.WithCancel(context.Background())

	rec := &recordingResubmitter{done: make(chan struct{})}
	d := NewDrainer(q, rec, 10*time.Millisecond)
	d.Start(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), queuedMessage("late@example.com")))
	time.Sleep(100 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.got)
}
