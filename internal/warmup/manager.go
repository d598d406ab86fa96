package warmup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/reputation"
)

// Breach thresholds. Crossing any one of them pauses the IP.
const (
	breachBounceRate    = 0.05
	breachComplaintRate = 0.001
	breachScoreFloor    = 90.0
)

const (
	setKey       = "warmup:ips"
	hourTTL      = 2 * time.Hour
	counterTTL   = 48 * time.Hour
	completedTTL = 60 * 24 * time.Hour
)

func statusKey(ip string) string { return "warmup:ip:" + ip }
func poolKey(pool string) string { return "warmup:pool:" + pool }
func dayCountKey(ip string) string { return "warmup:sent:day:" + ip }
func totalCountKey(ip string) string { return "warmup:sent:total:" + ip }

func hourCountKey(ip string, t time.Time) string {
	return "warmup:sent:hour:" + ip + ":" + t.UTC().Format("2006-01-02-15")
}

// Alerter notifies operators of automatic pauses.
type Alerter interface {
	Notify(ctx context.Context, subject, body string) error
}

// Audit persists the operator trail of warm-up state changes.
type Audit interface {
	Append(ctx context.Context, ip, action, note string, at time.Time) error
}

// AuditReader lists recorded audit lines. Optional; the Postgres audit
// log satisfies it.
type AuditReader interface {
	History(ctx context.Context, ip string, limit int) ([]string, error)
}

// Manager owns warm-up state in Redis. Counters live in separate keys so
// sends increment without read-modify-write on the status record.
type Manager struct {
	client   *redis.Client
	monitor  reputation.Monitor
	alerter  Alerter
	audit    Audit
	schedule []domain.WarmupStep
	now      func() time.Time
}

// NewManager creates a warm-up manager. alerter and audit may be nil.
func NewManager(client *redis.Client, monitor reputation.Monitor, alerter Alerter, audit Audit, schedule []domain.WarmupStep) *Manager {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	return &Manager{
		client:   client,
		monitor:  monitor,
		alerter:  alerter,
		audit:    audit,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start begins warming an IP in the given pool at day 1.
func (m *Manager) Start(ctx context.Context, ip, pool string) error {
	if ip == "" || pool == "" {
		return fmt.Errorf("warmup: ip and pool required")
	}

	exists, err := m.client.Exists(ctx, statusKey(ip)).Result()
	if err != nil {
		return fmt.Errorf("warmup start: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyWarming
	}

	now := m.now().UTC()
	st := domain.WarmupStatus{
		IP:              ip,
		Pool:            pool,
		StartedAt:       now,
		CurrentDay:      1,
		Phase:           domain.PhaseInitial,
		Healthy:         true,
		LastAdvancedDay: now,
	}
	if err := m.save(ctx, &st); err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.SAdd(ctx, setKey, ip)
	pipe.SAdd(ctx, poolKey(pool), ip)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warmup register: %w", err)
	}

	m.record(ctx, ip, "start", "pool "+pool)
	logger.Info("warmup started", "ip", ip, "pool", pool)
	return nil
}

// Status returns the current warm-up state with live counters folded in.
func (m *Manager) Status(ctx context.Context, ip string) (*domain.WarmupStatus, error) {
	st, err := m.load(ctx, ip)
	if err != nil {
		return nil, err
	}

	day, err := m.client.Get(ctx, dayCountKey(ip)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("warmup day counter: %w", err)
	}
	total, err := m.client.Get(ctx, totalCountKey(ip)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("warmup total counter: %w", err)
	}

	st.SentToday = day
	st.SentTotal = total
	return st, nil
}

// List returns the status of every IP in warm-up.
func (m *Manager) List(ctx context.Context) ([]domain.WarmupStatus, error) {
	ips, err := m.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("warmup list: %w", err)
	}

	out := make([]domain.WarmupStatus, 0, len(ips))
	for _, ip := range ips {
		st, err := m.Status(ctx, ip)
		if errors.Is(err, ErrNotWarming) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// CanSend reports whether the IP may take one more message now. The reason
// is set whenever the answer is no. IPs not in warm-up carry no caps.
func (m *Manager) CanSend(ctx context.Context, ip string) (bool, string, error) {
	st, err := m.Status(ctx, ip)
	if errors.Is(err, ErrNotWarming) {
		return true, "", nil
	}
	if err != nil {
		return false, "", err
	}

	if !st.Healthy {
		return false, "warmup paused", nil
	}
	if st.Phase == domain.PhaseCompleted {
		return true, "", nil
	}

	step := StepForDay(m.schedule, st.CurrentDay)
	if st.SentToday >= step.Volume {
		return false, "daily limit reached", nil
	}

	hour, err := m.client.Get(ctx, hourCountKey(ip, m.now())).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, "", fmt.Errorf("warmup hour counter: %w", err)
	}
	if hour >= step.HourlyRate {
		return false, "hourly limit reached", nil
	}
	return true, "", nil
}

// History returns recent audit lines for an IP, newest first. Empty when
// no readable audit log is configured.
func (m *Manager) History(ctx context.Context, ip string, limit int) ([]string, error) {
	reader, ok := m.audit.(AuditReader)
	if !ok {
		return nil, nil
	}
	return reader.History(ctx, ip, limit)
}

// RecordSent counts one accepted message against the IP's budgets.
func (m *Manager) RecordSent(ctx context.Context, ip string) error {
	now := m.now()
	pipe := m.client.Pipeline()
	pipe.Incr(ctx, dayCountKey(ip))
	pipe.Expire(ctx, dayCountKey(ip), counterTTL)
	pipe.Incr(ctx, totalCountKey(ip))
	hourKey := hourCountKey(ip, now)
	pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, hourTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warmup record sent: %w", err)
	}
	return nil
}

// MessageSent implements the dispatcher's post-send hook: sends routed
// through a warming pool count against every IP registered to it.
func (m *Manager) MessageSent(ctx context.Context, msg *domain.Message, region string) {
	if msg.IPPool == "" {
		return
	}
	ips, err := m.client.SMembers(ctx, poolKey(msg.IPPool)).Result()
	if err != nil {
		logger.Warn("warmup pool lookup failed", "pool", msg.IPPool, "error", err.Error())
		return
	}
	for _, ip := range ips {
		if err := m.RecordSent(ctx, ip); err != nil {
			logger.Warn("warmup send count failed", "ip", ip, "error", err.Error())
		}
	}
}

// RefreshMetrics advances the warm-up day when the wall clock crossed
// midnight, pulls fresh reputation metrics, and pauses the IP on a breach.
func (m *Manager) RefreshMetrics(ctx context.Context, ip string) error {
	st, err := m.load(ctx, ip)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	if err := m.maybeAdvanceDay(ctx, st, now); err != nil {
		return err
	}

	metrics, err := m.monitor.Metrics(ctx, ip)
	if err != nil {
		// Keep the previous snapshot; a feed outage must not pause the IP.
		logger.Warn("warmup metrics refresh failed", "ip", ip, "error", err.Error())
		return m.save(ctx, st)
	}

	st.Metrics = metrics
	st.LastMetricsAt = now

	if breach := breachReason(metrics); breach != "" && st.Healthy {
		st.Healthy = false
		st.Notes = append(st.Notes, fmt.Sprintf("%s auto-paused: %s", now.Format("2006-01-02"), breach))
		m.record(ctx, ip, "pause", breach)
		logger.Warn("warmup auto-paused", "ip", ip, "reason", breach)
		if m.alerter != nil {
			subject := fmt.Sprintf("Warm-up paused: %s", ip)
			body := fmt.Sprintf("IP %s (pool %s, day %d) was paused automatically: %s", ip, st.Pool, st.CurrentDay, breach)
			if err := m.alerter.Notify(ctx, subject, body); err != nil {
				logger.Warn("warmup pause alert failed", "ip", ip, "error", err.Error())
			}
		}
	}

	return m.save(ctx, st)
}

// RefreshAll refreshes metrics for every IP in warm-up.
func (m *Manager) RefreshAll(ctx context.Context) {
	ips, err := m.client.SMembers(ctx, setKey).Result()
	if err != nil {
		logger.Error("warmup refresh list failed", "error", err.Error())
		return
	}
	for _, ip := range ips {
		if err := m.RefreshMetrics(ctx, ip); err != nil && !errors.Is(err, ErrNotWarming) {
			logger.Warn("warmup refresh failed", "ip", ip, "error", err.Error())
		}
	}
}

// Pause stops sends through the IP until an operator resumes it.
func (m *Manager) Pause(ctx context.Context, ip, note string) error {
	st, err := m.load(ctx, ip)
	if err != nil {
		return err
	}
	st.Healthy = false
	if note != "" {
		st.Notes = append(st.Notes, note)
	}
	m.record(ctx, ip, "pause", note)
	return m.save(ctx, st)
}

// Resume re-enables sends through a paused IP.
func (m *Manager) Resume(ctx context.Context, ip, note string) error {
	st, err := m.load(ctx, ip)
	if err != nil {
		return err
	}
	st.Healthy = true
	if note != "" {
		st.Notes = append(st.Notes, note)
	}
	m.record(ctx, ip, "resume", note)
	return m.save(ctx, st)
}

// maybeAdvanceDay recomputes the warm-up day from the start date. The daily
// counter resets on every advance; the phase follows the day and only moves
// forward.
func (m *Manager) maybeAdvanceDay(ctx context.Context, st *domain.WarmupStatus, now time.Time) error {
	if sameDay(st.LastAdvancedDay, now) {
		return nil
	}

	day := int(now.Sub(st.StartedAt.UTC().Truncate(24*time.Hour)).Hours()/24) + 1
	if day <= st.CurrentDay {
		st.LastAdvancedDay = now
		return nil
	}

	st.CurrentDay = day
	st.Phase = PhaseForDay(day)
	st.LastAdvancedDay = now
	if err := m.client.Del(ctx, dayCountKey(st.IP)).Err(); err != nil {
		return fmt.Errorf("warmup day reset: %w", err)
	}
	m.record(ctx, st.IP, "advance", fmt.Sprintf("day %d, phase %s", day, st.Phase))
	logger.Info("warmup day advanced", "ip", st.IP, "day", day, "phase", string(st.Phase))
	return nil
}

func breachReason(metrics domain.ReputationMetrics) string {
	switch {
	case metrics.BounceRate > breachBounceRate:
		return fmt.Sprintf("bounce rate %.2f%% over %.0f%%", metrics.BounceRate*100, breachBounceRate*100)
	case metrics.ComplaintRate > breachComplaintRate:
		return fmt.Sprintf("complaint rate %.3f%% over %.1f%%", metrics.ComplaintRate*100, breachComplaintRate*100)
	case metrics.ReputationScore > 0 && metrics.ReputationScore < breachScoreFloor:
		return fmt.Sprintf("reputation score %.0f below %.0f", metrics.ReputationScore, breachScoreFloor)
	default:
		return ""
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (m *Manager) load(ctx context.Context, ip string) (*domain.WarmupStatus, error) {
	raw, err := m.client.Get(ctx, statusKey(ip)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotWarming
	}
	if err != nil {
		return nil, fmt.Errorf("warmup load: %w", err)
	}
	var st domain.WarmupStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("warmup decode: %w", err)
	}
	return &st, nil
}

// save persists the status record. Completed statuses expire after 60
// days; active ones live until removed.
func (m *Manager) save(ctx context.Context, st *domain.WarmupStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("warmup encode: %w", err)
	}
	var ttl time.Duration
	if st.Phase == domain.PhaseCompleted {
		ttl = completedTTL
	}
	if err := m.client.Set(ctx, statusKey(st.IP), raw, ttl).Err(); err != nil {
		return fmt.Errorf("warmup save: %w", err)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, ip, action, note string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Append(ctx, ip, action, note, m.now().UTC()); err != nil {
		logger.Warn("warmup audit append failed", "ip", ip, "action", action, "error", err.Error())
	}
}
