package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/compose"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/feedback"
	"github.com/ignite/dispatch-engine/internal/queue"
	"github.com/ignite/dispatch-engine/internal/region"
	"github.com/ignite/dispatch-engine/internal/reputation"
	"github.com/ignite/dispatch-engine/internal/suppression"
	"github.com/ignite/dispatch-engine/internal/warmup"
)

type stubSender struct {
	outcome domain.Outcome
	last    *domain.Message
}

func (s *stubSender) Send(ctx context.Context, msg *domain.Message) domain.Outcome {
	s.last = msg
	return s.outcome
}

type stubRegions struct{ health []region.Health }

func (s *stubRegions) CheckAll(ctx context.Context) []region.Health { return s.health }

type testServer struct {
	server       *Server
	sender       *stubSender
	suppressions *suppression.Store
	warmups      *warmup.Manager
	mux          http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sender := &stubSender{outcome: domain.Outcome{Status: domain.StatusSent, Region: "us-east-1"}}
	suppressions := suppression.NewStore(client, 90*24*time.Hour)
	warmups := warmup.NewManager(client, reputation.Fixed{M: domain.ReputationMetrics{ReputationScore: 98}}, nil, nil, nil)
	processor := feedback.NewProcessor(client, suppressions, 3)
	retry := queue.NewRetryQueue(client, "")
	composer := compose.NewComposer("https://t.example", "secret")

	srv := NewServer(sender, suppressions, warmups, processor,
		&stubRegions{health: []region.Health{{Region: "us-east-1", Healthy: true}}},
		retry, composer)

	return &testServer{
		server:       srv,
		sender:       sender,
		suppressions: suppressions,
		warmups:      warmups,
		mux:          srv.Router(),
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendMessageStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	msg := map[string]interface{}{
		"to":         []string{"user@example.com"},
		"from_email": "noreply@sender.example",
		"subject":    "Hello",
	}

	rec := ts.request(t, http.MethodPost, "/api/messages", msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.sender.last)
	assert.Equal(t, []string{"user@example.com"}, ts.sender.last.To)

	ts.sender.outcome = domain.Outcome{Status: domain.StatusQueued, Reason: "rate limited"}
	rec = ts.request(t, http.MethodPost, "/api/messages", msg)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	ts.sender.outcome = domain.Outcome{Status: domain.StatusFailed, Reason: "recipient suppressed"}
	rec = ts.request(t, http.MethodPost, "/api/messages", msg)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSendMessageRejectsBadBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueAndRegionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/queue", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"length":0}`, rec.Body.String())

	rec = ts.request(t, http.MethodGet, "/api/regions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "us-east-1")
}

func TestSuppressionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/suppressions/", map[string]string{"email": "user@example.com"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/suppressions/user@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var entry domain.SuppressionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, domain.ReasonManual, entry.Reason)
	assert.Equal(t, domain.SourceManual, entry.Source)

	rec = ts.request(t, http.MethodDelete, "/api/suppressions/user@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/suppressions/user@example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, http.MethodDelete, "/api/suppressions/user@example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuppressionAddRequiresEmail(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/suppressions/", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarmupLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/warmup/", map[string]string{"ip": "192.0.2.10", "pool": "pool-a"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/warmup/", map[string]string{"ip": "192.0.2.10", "pool": "pool-a"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/warmup/192.0.2.10", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var st domain.WarmupStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.CurrentDay)
	assert.Equal(t, domain.PhaseInitial, st.Phase)

	rec = ts.request(t, http.MethodPost, "/api/warmup/192.0.2.10/pause", map[string]string{"note": "hold"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/warmup/192.0.2.10", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Healthy)

	rec = ts.request(t, http.MethodPost, "/api/warmup/192.0.2.10/resume", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/warmup/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWarmupStatusUnknownIP(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodGet, "/api/warmup/192.0.2.99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarmupHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/warmup/", map[string]string{"ip": "192.0.2.10", "pool": "pool-a"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/warmup/192.0.2.10/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"192.0.2.10","history":[]}`, rec.Body.String())

	rec = ts.request(t, http.MethodGet, "/api/warmup/192.0.2.99/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSESWebhookPermanentBounce(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	payload := map[string]interface{}{
		"notificationType": "Bounce",
		"bounce": map[string]interface{}{
			"bounceType":        "Permanent",
			"bouncedRecipients": []map[string]string{{"emailAddress": "gone@example.com"}},
		},
	}
	rec := ts.request(t, http.MethodPost, "/webhooks/ses", payload)
	assert.Equal(t, http.StatusOK, rec.Code)

	suppressed, err := ts.suppressions.IsSuppressed(ctx, "gone@example.com")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestSESWebhookSNSEnvelope(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	inner, err := json.Marshal(map[string]interface{}{
		"notificationType": "Complaint",
		"complaint": map[string]interface{}{
			"complainedRecipients": []map[string]string{{"emailAddress": "angry@example.com"}},
		},
	})
	require.NoError(t, err)

	rec := ts.request(t, http.MethodPost, "/webhooks/ses", map[string]string{
		"Type":    "Notification",
		"Message": string(inner),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	entry, err := ts.suppressions.Get(ctx, "angry@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonComplaint, entry.Reason)
}

func TestSESWebhookSubscriptionConfirmation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/webhooks/ses", map[string]string{
		"Type":         "SubscriptionConfirmation",
		"SubscribeURL": "https://sns.example/confirm",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSESWebhookIgnoresUnknownType(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/webhooks/ses", map[string]interface{}{
		"notificationType": "Delivery",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed":0}`, rec.Body.String())
}

func trackingPath(t *testing.T, rawURL string) string {
	t.Helper()
	i := strings.Index(rawURL, "/track/")
	require.GreaterOrEqual(t, i, 0)
	return rawURL[i:]
}

func TestTrackOpenServesPixel(t *testing.T) {
	ts := newTestServer(t)
	composer := compose.NewComposer("https://t.example", "secret")
	u := composer.OpenPixelURL("tenant-1", "camp-1", "user@example.com", "mid")

	rec := ts.request(t, http.MethodGet, trackingPath(t, u), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestTrackClickRedirects(t *testing.T) {
	ts := newTestServer(t)
	composer := compose.NewComposer("https://t.example", "secret")
	u := composer.ClickURL("tenant-1", "camp-1", "user@example.com", "mid", "https://shop.example/deal")

	rec := ts.request(t, http.MethodGet, trackingPath(t, u), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example/deal", rec.Header().Get("Location"))
}

func TestTrackClickRedirectsURLWithPipes(t *testing.T) {
	ts := newTestServer(t)
	composer := compose.NewComposer("https://t.example", "secret")
	original := "https://shop.example/deal?opt=a|b|c"
	u := composer.ClickURL("tenant-1", "camp-1", "user@example.com", "mid", original)

	rec := ts.request(t, http.MethodGet, trackingPath(t, u), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, original, rec.Header().Get("Location"))
}

func TestUnsubscribeSuppresses(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	composer := compose.NewComposer("https://t.example", "secret")
	u := composer.UnsubscribeURL("tenant-1", "camp-1", "user@example.com")

	rec := ts.request(t, http.MethodPost, trackingPath(t, u), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	entry, err := ts.suppressions.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonManual, entry.Reason)
}

func TestTrackingRejectsBadSignature(t *testing.T) {
	ts := newTestServer(t)
	composer := compose.NewComposer("https://t.example", "wrong-key")
	u := composer.ClickURL("tenant-1", "camp-1", "user@example.com", "mid", "https://shop.example/deal")

	rec := ts.request(t, http.MethodGet, trackingPath(t, u), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageOutcomeBody(t *testing.T) {
	ts := newTestServer(t)
	ts.sender.outcome = domain.Outcome{
		Status:            domain.StatusSent,
		ProviderMessageID: "prov-123",
		Region:            "us-east-1",
	}

	rec := ts.request(t, http.MethodPost, "/api/messages", map[string]interface{}{
		"to":         []string{"user@example.com"},
		"from_email": "noreply@sender.example",
		"subject":    fmt.Sprintf("Hello %d", 1),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out domain.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "prov-123", out.ProviderMessageID)
	assert.True(t, out.Sent())
}
