package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// SuppressionArchive implements suppression.Archive against PostgreSQL.
// It is a durable mirror of the Redis hot set, used for operator listing
// and export; the dispatcher never reads it on the send path.
type SuppressionArchive struct{ db *sql.DB }

// NewSuppressionArchive creates a Postgres-backed suppression archive.
func NewSuppressionArchive(db *sql.DB) *SuppressionArchive { return &SuppressionArchive{db: db} }

func (r *SuppressionArchive) Record(ctx context.Context, e *domain.SuppressionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_suppressions (id, email, reason, source, active, created_at, expires_at)
		VALUES ($1, $2, $3, $4, true, $5, $5 + $6::interval)
		ON CONFLICT (email) DO UPDATE SET reason = $3, source = $4, active = true, created_at = $5, expires_at = $5 + $6::interval
	`, e.ID, e.Email, e.Reason, e.Source, e.CreatedAt, fmt.Sprintf("%d seconds", int(e.TTL.Seconds())))
	if err != nil {
		return fmt.Errorf("archive suppression: %w", err)
	}
	return nil
}

func (r *SuppressionArchive) Delete(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dispatch_suppressions SET active = false, updated_at = NOW() WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("archive suppression delete: %w", err)
	}
	return nil
}

func (r *SuppressionArchive) List(ctx context.Context, limit, offset int) ([]domain.SuppressionEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispatch_suppressions WHERE active = true`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	if limit <= 0 {
		limit = total
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, reason, source, created_at
		FROM dispatch_suppressions
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		var e domain.SuppressionEntry
		if err := rows.Scan(&e.ID, &e.Email, &e.Reason, &e.Source, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
