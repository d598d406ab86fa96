package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/osteele/liquid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/distlock"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Sender dispatches one warm-up seed message through the normal pipeline.
type Sender interface {
	Send(ctx context.Context, msg *domain.Message) domain.Outcome
}

// Scheduler periodically refreshes warm-up metrics and tops up each healthy
// IP with seed traffic. The distributed lock keeps the loop body to one
// process even when several dispatchers run.
type Scheduler struct {
	manager  *Manager
	sender   Sender
	lock     *distlock.Lock
	engine   *liquid.Engine
	cfg      config.WarmupConfig
	interval time.Duration
	rotation int
}

// NewScheduler wires the scheduler from config.
func NewScheduler(manager *Manager, sender Sender, client *redis.Client, cfg config.WarmupConfig) *Scheduler {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		manager:  manager,
		sender:   sender,
		lock:     distlock.New(client, "warmup:scheduler", interval),
		engine:   liquid.NewEngine(),
		cfg:      cfg,
		interval: interval,
	}
}

// Start launches the scheduler loop. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	logger.Info("warmup scheduler started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("warmup scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("warmup scheduler lock failed", "error", err.Error())
		return
	}
	if !ok {
		return
	}
	defer s.lock.Release(ctx)

	s.manager.RefreshAll(ctx)

	statuses, err := s.manager.List(ctx)
	if err != nil {
		logger.Error("warmup scheduler list failed", "error", err.Error())
		return
	}
	for _, st := range statuses {
		s.topUp(ctx, st)
	}
}

// topUp sends up to one batch of seed messages through the IP's pool. It
// re-checks CanSend before every message; a cap reached mid-batch stops it.
func (s *Scheduler) topUp(ctx context.Context, st domain.WarmupStatus) {
	if !st.Healthy || st.Phase == domain.PhaseCompleted {
		return
	}
	if len(s.cfg.SeedRecipients) == 0 || len(s.cfg.Templates) == 0 {
		return
	}

	batch := s.cfg.BatchMax
	if batch <= 0 {
		batch = 10
	}

	var sent int64
	for i := int64(0); i < batch; i++ {
		ok, reason, err := s.manager.CanSend(ctx, st.IP)
		if err != nil {
			logger.Warn("warmup cap check failed", "ip", st.IP, "error", err.Error())
			return
		}
		if !ok {
			logger.Debug("warmup top-up stopped", "ip", st.IP, "reason", reason)
			break
		}

		msg, err := s.seedMessage(st)
		if err != nil {
			logger.Error("warmup seed render failed", "ip", st.IP, "error", err.Error())
			return
		}

		outcome := s.sender.Send(ctx, msg)
		if !outcome.Sent() {
			logger.Warn("warmup seed send not accepted",
				"ip", st.IP,
				"status", string(outcome.Status),
				"reason", outcome.Reason)
			break
		}
		sent++
	}

	if sent > 0 {
		logger.Info("warmup topped up", "ip", st.IP, "pool", st.Pool, "day", st.CurrentDay, "sent", sent)
	}
}

// seedMessage renders the next rotated template for the next rotated seed
// recipient. Tracking stays off; seed mail must not skew engagement stats.
func (s *Scheduler) seedMessage(st domain.WarmupStatus) (*domain.Message, error) {
	recipient := s.cfg.SeedRecipients[s.rotation%len(s.cfg.SeedRecipients)]
	tmpl := s.cfg.Templates[s.rotation%len(s.cfg.Templates)]
	s.rotation++

	bindings := map[string]interface{}{
		"recipient": recipient,
		"ip":        st.IP,
		"pool":      st.Pool,
		"day":       st.CurrentDay,
	}

	subject, err := s.engine.ParseAndRenderString(tmpl.Subject, bindings)
	if err != nil {
		return nil, fmt.Errorf("rendering subject of %q: %w", tmpl.Name, err)
	}
	html, err := s.engine.ParseAndRenderString(tmpl.HTML, bindings)
	if err != nil {
		return nil, fmt.Errorf("rendering body of %q: %w", tmpl.Name, err)
	}

	return &domain.Message{
		To:         []string{recipient},
		FromName:   s.cfg.SeedFromName,
		FromEmail:  s.cfg.SeedFromEmail,
		Subject:    subject,
		HTMLBody:   html,
		Category:   domain.CategorySystem,
		TenantID:   "warmup",
		CampaignID: fmt.Sprintf("warmup-%s-day-%d", st.IP, st.CurrentDay),
		IPPool:     st.Pool,
	}, nil
}
