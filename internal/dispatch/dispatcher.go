package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/compose"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/provider"
	"github.com/ignite/dispatch-engine/internal/queue"
	"github.com/ignite/dispatch-engine/internal/region"
	"github.com/ignite/dispatch-engine/internal/suppression"
)

// HealthChecker answers whether a region may carry traffic right now.
type HealthChecker interface {
	IsHealthy(ctx context.Context, region string) bool
}

// Observer is notified after the provider accepts a message. The warm-up
// manager uses this to count sends against pool budgets.
type Observer interface {
	MessageSent(ctx context.Context, msg *domain.Message, region string)
}

// Gate admits or defers a send attempt. Satisfied by the shared token
// bucket.
type Gate interface {
	TryAcquire(ctx context.Context) (bool, error)
}

const defaultMaxAttempts = 5

// Dispatcher runs the send pipeline.
type Dispatcher struct {
	suppressions *suppression.Store
	gate         Gate
	registry     *region.Registry
	health       HealthChecker
	clients      map[string]provider.Client
	composer     *compose.Composer
	retry        *queue.RetryQueue
	rdb          *redis.Client
	maxAttempts  int
	observers    []Observer
	now          func() time.Time
}

// Options carries the optional knobs for NewDispatcher.
type Options struct {
	// MaxAttempts caps how often a transiently failing message may be
	// re-queued before it fails for good. Zero means the default of 5.
	MaxAttempts int
}

// NewDispatcher wires the pipeline. clients maps region name to its
// provider client and must cover every region in the registry.
func NewDispatcher(
	suppressions *suppression.Store,
	gate Gate,
	registry *region.Registry,
	health HealthChecker,
	clients map[string]provider.Client,
	composer *compose.Composer,
	retry *queue.RetryQueue,
	rdb *redis.Client,
	opts Options,
) *Dispatcher {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Dispatcher{
		suppressions: suppressions,
		gate:         gate,
		registry:     registry,
		health:       health,
		clients:      clients,
		composer:     composer,
		retry:        retry,
		rdb:          rdb,
		maxAttempts:  maxAttempts,
		now:          time.Now,
	}
}

// AddObserver registers a post-send hook. Not safe to call after the first
// Send; register everything during startup.
func (d *Dispatcher) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// Send runs the full pipeline for a fresh message.
func (d *Dispatcher) Send(ctx context.Context, msg *domain.Message) domain.Outcome {
	return d.send(ctx, msg, 0)
}

// Resubmit re-runs the pipeline for a message popped off the retry queue.
// Suppression and the token bucket are re-checked; the world may have
// changed since the message was deferred.
func (d *Dispatcher) Resubmit(ctx context.Context, qm domain.QueuedMessage) domain.Outcome {
	return d.send(ctx, &qm.Message, qm.Attempts)
}

func (d *Dispatcher) send(ctx context.Context, msg *domain.Message, attempts int) domain.Outcome {
	if err := msg.Validate(); err != nil {
		return domain.Outcome{Status: domain.StatusFailed, Reason: err.Error()}
	}

	// Step 1: suppression. One suppressed recipient fails the whole
	// message before any provider traffic.
	if outcome := d.checkSuppressed(ctx, msg, attempts); outcome != nil {
		return *outcome
	}

	// Step 2: the shared token bucket. An empty bucket defers, never drops.
	admitted, err := d.gate.TryAcquire(ctx)
	if err != nil {
		return d.park(ctx, msg, attempts, fmt.Sprintf("rate limiter unavailable: %v", err))
	}
	if !admitted {
		return d.park(ctx, msg, attempts, "rate limited")
	}

	// Step 3: composition. Tracking rewrites and unsubscribe headers.
	if err := d.composer.Prepare(msg); err != nil {
		return domain.Outcome{Status: domain.StatusFailed, Reason: err.Error()}
	}

	// Step 4: the regions, primary first.
	var lastReason string
	for _, reg := range d.registry.Candidates() {
		if !d.health.IsHealthy(ctx, reg.Name) {
			lastReason = fmt.Sprintf("region %s unhealthy", reg.Name)
			continue
		}
		client, ok := d.clients[reg.Name]
		if !ok {
			lastReason = fmt.Sprintf("region %s has no client", reg.Name)
			continue
		}

		providerID, err := client.Send(ctx, msg)
		if err == nil {
			d.recordSent(ctx, msg, reg.Name)
			logger.Info("message sent",
				"recipient", firstRecipient(msg),
				"region", reg.Name,
				"provider_message_id", providerID)
			return domain.Outcome{Status: domain.StatusSent, ProviderMessageID: providerID, Region: reg.Name}
		}

		kind := provider.ClassifyError(err)
		lastReason = fmt.Sprintf("region %s: %v", reg.Name, err)
		logger.Warn("send attempt failed",
			"recipient", firstRecipient(msg),
			"region", reg.Name,
			"kind", kind.String(),
			"error", err.Error())

		// A rejection is about the message or recipient, not the region.
		// No other region would accept it either.
		if kind == provider.KindRejected {
			d.suppressRejected(ctx, msg)
			return domain.Outcome{Status: domain.StatusFailed, Region: reg.Name, Reason: lastReason}
		}
	}

	// Step 5: every region was unhealthy or refused the message. The
	// caller sees a terminal failure; the retry queue is reserved for the
	// rate-limited path.
	reason := "all regions failed"
	if lastReason != "" {
		reason += ": " + lastReason
	}
	return domain.Outcome{Status: domain.StatusFailed, Reason: reason}
}

// checkSuppressed returns a terminal outcome when any recipient is on the
// block-list. A lookup failure defers the message instead; mail must
// neither slip past the list nor be lost to a store blip.
func (d *Dispatcher) checkSuppressed(ctx context.Context, msg *domain.Message, attempts int) *domain.Outcome {
	for _, addr := range msg.To {
		suppressed, err := d.suppressions.IsSuppressed(ctx, addr)
		if err != nil {
			out := d.park(ctx, msg, attempts, fmt.Sprintf("suppression check unavailable: %v", err))
			return &out
		}
		if suppressed {
			logger.Info("send blocked, recipient suppressed", "recipient", addr)
			return &domain.Outcome{Status: domain.StatusFailed, Reason: "recipient suppressed"}
		}
	}
	return nil
}

// park puts the message on the retry queue, or fails it when attempts
// are exhausted or the queue itself is down.
func (d *Dispatcher) park(ctx context.Context, msg *domain.Message, attempts int, reason string) domain.Outcome {
	next := attempts + 1
	if next > d.maxAttempts {
		return domain.Outcome{Status: domain.StatusFailed, Reason: "retry attempts exhausted: " + reason}
	}

	qm := domain.QueuedMessage{
		Message:    *msg,
		EnqueuedAt: d.now().UTC(),
		Attempts:   next,
	}
	if err := d.retry.Enqueue(ctx, qm); err != nil {
		logger.Error("retry enqueue failed", "recipient", firstRecipient(msg), "error", err.Error())
		return domain.Outcome{Status: domain.StatusFailed, Reason: "retry queue unavailable: " + reason}
	}
	return domain.Outcome{Status: domain.StatusQueued, Reason: reason}
}

// suppressRejected blocks every recipient of a provider-rejected message.
func (d *Dispatcher) suppressRejected(ctx context.Context, msg *domain.Message) {
	for _, addr := range msg.To {
		if err := d.suppressions.Add(ctx, addr, domain.ReasonPolicyRejection, domain.SourceProviderReject); err != nil {
			logger.Warn("suppressing rejected recipient failed", "recipient", addr, "error", err.Error())
		}
	}
}

// recordSent bumps the per-day counters and notifies observers. Counter
// failures are logged, never surfaced; the message is already sent.
func (d *Dispatcher) recordSent(ctx context.Context, msg *domain.Message, regionName string) {
	day := d.now().UTC()
	pipe := d.rdb.Pipeline()

	regionKey := region.DayCounterKey(regionName, day)
	pipe.Incr(ctx, regionKey)
	pipe.Expire(ctx, regionKey, 48*time.Hour)

	tenantKey := fmt.Sprintf("dispatch:sent:tenant:%s:%s", msg.TenantID, day.Format("2006-01-02"))
	pipe.Incr(ctx, tenantKey)
	pipe.Expire(ctx, tenantKey, 48*time.Hour)

	if msg.CampaignID != "" {
		campaignKey := fmt.Sprintf("dispatch:sent:campaign:%s", msg.CampaignID)
		pipe.Incr(ctx, campaignKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("send counters update failed", "region", regionName, "error", err.Error())
	}

	for _, o := range d.observers {
		o.MessageSent(ctx, msg, regionName)
	}
}

func firstRecipient(msg *domain.Message) string {
	if len(msg.To) == 0 {
		return ""
	}
	return msg.To[0]
}
