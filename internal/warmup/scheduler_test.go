package warmup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/reputation"
)

// acceptingSender accepts every message and counts it against the pool the
// way the dispatcher's observer hook would.
type acceptingSender struct {
	manager *Manager
	sent    []*domain.Message
}

func (s *acceptingSender) Send(ctx context.Context, msg *domain.Message) domain.Outcome {
	s.sent = append(s.sent, msg)
	s.manager.MessageSent(ctx, msg, "us-east-1")
	return domain.Outcome{Status: domain.StatusSent, Region: "us-east-1"}
}

type rejectingSender struct{ calls int }

func (s *rejectingSender) Send(ctx context.Context, msg *domain.Message) domain.Outcome {
	s.calls++
	return domain.Outcome{Status: domain.StatusQueued, Reason: "rate limited"}
}

func seedConfig() config.WarmupConfig {
	return config.WarmupConfig{
		BatchMax:       10,
		SeedRecipients: []string{"seed-a@probe.example", "seed-b@probe.example"},
		SeedFromName:   "Dispatch Seeds",
		SeedFromEmail:  "seeds@sender.example",
		Templates: []config.WarmupTemplate{
			{Name: "plain", Subject: "Checking in, day {{ day }}", HTML: "<body><p>Hello {{ recipient }}</p></body>"},
			{Name: "digest", Subject: "Your digest", HTML: "<body><p>From pool {{ pool }}</p></body>"},
		},
	}
}

func newTestScheduler(t *testing.T, schedule []domain.WarmupStep, sender Sender) (*Scheduler, *Manager) {
	t.Helper()
	client := setupTestRedis(t)
	m := NewManager(client, reputation.Fixed{M: cleanMetrics()}, nil, nil, schedule)
	s := NewScheduler(m, sender, client, seedConfig())
	return s, m
}

func TestTopUpStopsAtDailyCap(t *testing.T) {
	schedule := []domain.WarmupStep{{Volume: 3, HourlyRate: 3}}
	sender := &acceptingSender{}
	s, m := newTestScheduler(t, schedule, sender)
	sender.manager = m
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, "192.0.2.10", "pool-a"))

	st, err := m.Status(ctx, "192.0.2.10")
	require.NoError(t, err)
	s.topUp(ctx, *st)

	assert.Len(t, sender.sent, 3)

	st, err = m.Status(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.SentToday)
}

func TestTopUpSkipsPausedIP(t *testing.T) {
	sender := &acceptingSender{}
	s, m := newTestScheduler(t, nil, sender)
	sender.manager = m
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, "192.0.2.10", "pool-a"))
	require.NoError(t, m.Pause(ctx, "192.0.2.10", "hold"))

	st, err := m.Status(ctx, "192.0.2.10")
	require.NoError(t, err)
	s.topUp(ctx, *st)

	assert.Empty(t, sender.sent)
}

func TestTopUpStopsWhenSendNotAccepted(t *testing.T) {
	sender := &rejectingSender{}
	s, m := newTestScheduler(t, nil, sender)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, "192.0.2.10", "pool-a"))

	st, err := m.Status(ctx, "192.0.2.10")
	require.NoError(t, err)
	s.topUp(ctx, *st)

	// A queued outcome is not acceptance; the batch stops after one try.
	assert.Equal(t, 1, sender.calls)
}

func TestSeedMessageRendersTemplates(t *testing.T) {
	s, m := newTestScheduler(t, nil, &rejectingSender{})
	_ = m

	st := domain.WarmupStatus{IP: "192.0.2.10", Pool: "pool-a", CurrentDay: 4, Healthy: true}
	msg, err := s.seedMessage(st)
	require.NoError(t, err)

	assert.Equal(t, []string{"seed-a@probe.example"}, msg.To)
	assert.Equal(t, "Checking in, day 4", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hello seed-a@probe.example")
	assert.Equal(t, "pool-a", msg.IPPool)
	assert.False(t, msg.TrackingEnabled)
	assert.Equal(t, domain.CategorySystem, msg.Category)

	// Rotation moves both the recipient and the template.
	msg2, err := s.seedMessage(st)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed-b@probe.example"}, msg2.To)
	assert.Contains(t, msg2.HTMLBody, "pool-a")
}
