package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/suppression"
)

const (
	softBouncePrefix = "softbounce:"
	softBounceWindow = 7 * 24 * time.Hour
)

// Processor applies feedback events to the suppression store.
type Processor struct {
	client        *redis.Client
	suppressions  *suppression.Store
	softThreshold int64
}

// NewProcessor creates a feedback processor. softThreshold is how many
// transient bounces within the rolling window suppress an address.
func NewProcessor(client *redis.Client, suppressions *suppression.Store, softThreshold int) *Processor {
	if softThreshold <= 0 {
		softThreshold = 3
	}
	return &Processor{
		client:        client,
		suppressions:  suppressions,
		softThreshold: int64(softThreshold),
	}
}

// HandleBounce processes one bounce notification.
func (p *Processor) HandleBounce(ctx context.Context, ev domain.BounceEvent) error {
	email := strings.ToLower(strings.TrimSpace(ev.Email))
	if email == "" {
		return fmt.Errorf("bounce event without address")
	}

	if ev.Type == domain.BouncePermanent {
		logger.Info("permanent bounce, suppressing", "email", email)
		return p.suppressions.Add(ctx, email, domain.ReasonHardBounce, domain.SourceBounceEvent)
	}

	// Transient: count it in the rolling window and suppress on repeat.
	key := softBouncePrefix + email
	count, err := p.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("soft bounce count: %w", err)
	}
	if err := p.client.Expire(ctx, key, softBounceWindow).Err(); err != nil {
		return fmt.Errorf("soft bounce window: %w", err)
	}

	if count >= p.softThreshold {
		logger.Info("repeated soft bounces, suppressing", "email", email, "count", count)
		if err := p.suppressions.Add(ctx, email, domain.ReasonRepeatedBounces, domain.SourceBounceEvent); err != nil {
			return err
		}
		return p.client.Del(ctx, key).Err()
	}

	logger.Debug("soft bounce recorded", "email", email, "count", count)
	return nil
}

// HandleComplaint suppresses the complaining address immediately. One spam
// report is already too many.
func (p *Processor) HandleComplaint(ctx context.Context, ev domain.ComplaintEvent) error {
	email := strings.ToLower(strings.TrimSpace(ev.Email))
	if email == "" {
		return fmt.Errorf("complaint event without address")
	}
	logger.Info("spam complaint, suppressing", "email", email)
	return p.suppressions.Add(ctx, email, domain.ReasonComplaint, domain.SourceComplaintEvent)
}

// SoftBounceCount returns the current rolling-window count for an address.
func (p *Processor) SoftBounceCount(ctx context.Context, email string) (int64, error) {
	n, err := p.client.Get(ctx, softBouncePrefix+strings.ToLower(strings.TrimSpace(email))).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("soft bounce lookup: %w", err)
	}
	return n, nil
}
