package region

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/provider"
	"github.com/ignite/dispatch-engine/internal/reputation"
)

// DayCounterKey is the Redis key holding the number of messages sent
// through a region on the given UTC day. The dispatcher increments it on
// every successful send.
func DayCounterKey(region string, t time.Time) string {
	return fmt.Sprintf("dispatch:sent:region:%s:%s", region, t.UTC().Format("2006-01-02"))
}

// Health is one region's evaluated state.
type Health struct {
	Region  string                   `json:"region"`
	Healthy bool                     `json:"healthy"`
	Reason  string                   `json:"reason,omitempty"`
	Metrics domain.ReputationMetrics `json:"metrics"`
}

// HealthMonitor evaluates region health on demand. Results are never
// cached: a region that recovered is usable on the very next call, and a
// region that degraded stops receiving traffic immediately.
type HealthMonitor struct {
	registry *Registry
	clients  map[string]provider.Client
	feed     reputation.Monitor
	rdb      *redis.Client
	now      func() time.Time
}

// NewHealthMonitor wires the monitor. clients maps region name to its
// provider client; feed supplies bounce/complaint/reputation rates.
func NewHealthMonitor(registry *Registry, clients map[string]provider.Client, feed reputation.Monitor, rdb *redis.Client) *HealthMonitor {
	return &HealthMonitor{
		registry: registry,
		clients:  clients,
		feed:     feed,
		rdb:      rdb,
		now:      time.Now,
	}
}

// IsHealthy reports whether the named region may carry traffic right now.
// Any probe failure counts as unhealthy.
func (h *HealthMonitor) IsHealthy(ctx context.Context, name string) bool {
	healthy, reason := h.evaluate(ctx, name)
	if !healthy {
		logger.Warn("region unhealthy", "region", name, "reason", reason)
	}
	return healthy
}

// Check returns the full evaluated state for the named region.
func (h *HealthMonitor) Check(ctx context.Context, name string) Health {
	healthy, reason := h.evaluate(ctx, name)
	hs := Health{Region: name, Healthy: healthy, Reason: reason}
	if m, err := h.feed.Metrics(ctx, name); err == nil {
		hs.Metrics = m
	}
	return hs
}

// CheckAll evaluates every configured region in failover order.
func (h *HealthMonitor) CheckAll(ctx context.Context) []Health {
	regions := h.registry.Candidates()
	out := make([]Health, 0, len(regions))
	for _, r := range regions {
		out = append(out, h.Check(ctx, r.Name))
	}
	return out
}

func (h *HealthMonitor) evaluate(ctx context.Context, name string) (bool, string) {
	reg, err := h.registry.Get(name)
	if err != nil {
		return false, err.Error()
	}

	client, ok := h.clients[name]
	if !ok {
		return false, "no provider client"
	}

	quota, err := client.Quota(ctx)
	if err != nil {
		return false, fmt.Sprintf("quota probe failed: %v", err)
	}
	if !quota.SendingEnabled {
		return false, "provider sending disabled"
	}
	if quota.Max24HourSend > 0 && quota.SentLast24Hours >= quota.Max24HourSend {
		return false, "provider 24h quota exhausted"
	}

	if reg.DailyQuota > 0 {
		sent, err := h.rdb.Get(ctx, DayCounterKey(name, h.now())).Int64()
		if err != nil && err != redis.Nil {
			return false, fmt.Sprintf("day counter unavailable: %v", err)
		}
		if sent >= reg.DailyQuota {
			return false, "daily quota exhausted"
		}
	}

	metrics, err := h.feed.Metrics(ctx, name)
	if err != nil {
		return false, fmt.Sprintf("reputation feed unavailable: %v", err)
	}
	if reg.BounceThreshold > 0 && metrics.BounceRate > reg.BounceThreshold {
		return false, fmt.Sprintf("bounce rate %.2f%% over threshold", metrics.BounceRate*100)
	}
	if reg.ComplaintThreshold > 0 && metrics.ComplaintRate > reg.ComplaintThreshold {
		return false, fmt.Sprintf("complaint rate %.3f%% over threshold", metrics.ComplaintRate*100)
	}

	return true, ""
}
