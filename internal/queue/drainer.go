package queue

import (
	"context"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Resubmitter re-runs the full dispatch pipeline for a deferred message.
// Suppression and rate limits are re-checked on every resubmission.
type Resubmitter interface {
	Resubmit(ctx context.Context, qm domain.QueuedMessage) domain.Outcome
}

// Drainer continuously pops the retry queue and resubmits. One drainer per
// process; the queue itself serializes competing pops across processes.
type Drainer struct {
	queue       *RetryQueue
	resubmitter Resubmitter
	idle        time.Duration
}

// NewDrainer wires a drainer. idle is how long to sleep when the queue is
// empty before polling again.
func NewDrainer(queue *RetryQueue, resubmitter Resubmitter, idle time.Duration) *Drainer {
	if idle <= 0 {
		idle = 2 * time.Second
	}
	return &Drainer{queue: queue, resubmitter: resubmitter, idle: idle}
}

// Start launches the drain loop. It stops when ctx is cancelled.
func (d *Drainer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Drainer) run(ctx context.Context) {
	logger.Info("retry drainer started", "idle", d.idle.String())
	for {
		if ctx.Err() != nil {
			logger.Info("retry drainer stopped")
			return
		}

		qm, ok, err := d.queue.Dequeue(ctx)
		if err != nil {
			logger.Error("retry dequeue failed", "error", err.Error())
			d.sleep(ctx)
			continue
		}
		if !ok {
			d.sleep(ctx)
			continue
		}

		outcome := d.resubmitter.Resubmit(ctx, qm)
		logger.Info("retry resubmitted",
			"recipient", first(qm.Message.To),
			"attempts", qm.Attempts,
			"status", string(outcome.Status),
			"reason", outcome.Reason)
	}
}

func (d *Drainer) sleep(ctx context.Context) {
	t := time.NewTimer(d.idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
