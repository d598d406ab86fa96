package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// WarmupAudit persists the warm-up operator trail: starts, pauses, resumes,
// and automatic breaches. Append-only; retained for compliance review.
type WarmupAudit struct{ db *sql.DB }

// NewWarmupAudit creates a Postgres-backed warm-up audit log.
func NewWarmupAudit(db *sql.DB) *WarmupAudit { return &WarmupAudit{db: db} }

// Append records one audit line for an IP.
func (r *WarmupAudit) Append(ctx context.Context, ip, action, note string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_warmup_audit (ip, action, note, created_at)
		VALUES ($1, $2, $3, $4)
	`, ip, action, note, at)
	if err != nil {
		return fmt.Errorf("warmup audit append: %w", err)
	}
	return nil
}

// History returns the most recent audit lines for an IP.
func (r *WarmupAudit) History(ctx context.Context, ip string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, note, created_at
		FROM dispatch_warmup_audit
		WHERE ip = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("warmup audit history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var action, note string
		var at time.Time
		if err := rows.Scan(&action, &note, &at); err != nil {
			return nil, fmt.Errorf("scan warmup audit: %w", err)
		}
		out = append(out, fmt.Sprintf("%s %s: %s", at.Format(time.RFC3339), action, note))
	}
	return out, rows.Err()
}
