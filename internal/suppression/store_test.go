package suppression

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestAddCheckRemoveRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, 90*24*time.Hour)
	ctx := context.Background()

	suppressed, err := store.IsSuppressed(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)

	require.NoError(t, store.Add(ctx, "user@example.com", domain.ReasonHardBounce, domain.SourceBounceEvent))

	suppressed, err = store.IsSuppressed(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, suppressed)

	require.NoError(t, store.Remove(ctx, "user@example.com"))

	suppressed, err = store.IsSuppressed(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "User@Example.COM", domain.ReasonComplaint, domain.SourceComplaintEvent))

	suppressed, err := store.IsSuppressed(ctx, "  user@example.com ")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestEntryCarriesTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, 90*24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "bounced@example.com", domain.ReasonHardBounce, domain.SourceBounceEvent))
	assert.Equal(t, 90*24*time.Hour, mr.TTL("suppress:bounced@example.com"))

	// Expiry clears the entry
	mr.FastForward(91 * 24 * time.Hour)
	suppressed, err := store.IsSuppressed(ctx, "bounced@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)
}

func TestGetReturnsEntry(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "user@example.com", domain.ReasonComplaint, domain.SourceComplaintEvent))

	entry, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", entry.Email)
	assert.Equal(t, domain.ReasonComplaint, entry.Reason)
	assert.Equal(t, domain.SourceComplaintEvent, entry.Source)
}

func TestRemoveMissingReturnsNotFound(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour)

	err := store.Remove(context.Background(), "never@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddRejectsInvalidAddress(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour)

	assert.Error(t, store.Add(context.Background(), "", domain.ReasonManual, domain.SourceManual))
	assert.Error(t, store.Add(context.Background(), "no-at-sign", domain.ReasonManual, domain.SourceManual))
}
