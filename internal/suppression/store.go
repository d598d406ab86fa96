package suppression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

const keyPrefix = "suppress:"

// Archive mirrors suppression mutations into durable storage for operator
// listing and export. Implementations must be safe for concurrent use.
type Archive interface {
	Record(ctx context.Context, entry *domain.SuppressionEntry) error
	Delete(ctx context.Context, email string) error
	List(ctx context.Context, limit, offset int) ([]domain.SuppressionEntry, int, error)
}

// Store is the Redis-backed suppression set. Matching is case-insensitive
// exact match on the full address.
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	archive Archive
	now     func() time.Time
}

// NewStore creates a suppression store with the given entry TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetArchive attaches a durable archive mirror.
func (s *Store) SetArchive(a Archive) { s.archive = a }

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsSuppressed reports whether the address is on the block-list.
func (s *Store) IsSuppressed(ctx context.Context, email string) (bool, error) {
	_, err := s.client.Get(ctx, keyPrefix+normalize(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("suppression lookup: %w", err)
	}
	return true, nil
}

// Get returns the stored entry for an address, or ErrNotFound.
func (s *Store) Get(ctx context.Context, email string) (*domain.SuppressionEntry, error) {
	raw, err := s.client.Get(ctx, keyPrefix+normalize(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("suppression get: %w", err)
	}
	var entry domain.SuppressionEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("suppression decode: %w", err)
	}
	return &entry, nil
}

// Add places an address on the block-list. Idempotent: re-adding refreshes
// the entry and its TTL.
func (s *Store) Add(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource) error {
	email = normalize(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid address %q", email)
	}

	entry := &domain.SuppressionEntry{
		ID:        uuid.New().String(),
		Email:     email,
		Reason:    reason,
		Source:    source,
		CreatedAt: s.now().UTC(),
		TTL:       s.ttl,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("suppression encode: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+email, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("suppression add: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Record(ctx, entry); err != nil {
			logger.Warn("suppression archive write failed", "email", email, "error", err)
		}
	}
	return nil
}

// Remove clears an address from the block-list (manual operator override).
// Returns ErrNotFound if the address was not suppressed.
func (s *Store) Remove(ctx context.Context, email string) error {
	email = normalize(email)
	n, err := s.client.Del(ctx, keyPrefix+email).Result()
	if err != nil {
		return fmt.Errorf("suppression remove: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, email); err != nil {
			logger.Warn("suppression archive delete failed", "email", email, "error", err)
		}
	}
	return nil
}

// List returns archived entries for the operator surface. Requires an
// archive; the Redis hot set is not enumerable at scale.
func (s *Store) List(ctx context.Context, limit, offset int) ([]domain.SuppressionEntry, int, error) {
	if s.archive == nil {
		return nil, 0, fmt.Errorf("suppression list: no archive configured")
	}
	return s.archive.List(ctx, limit, offset)
}
