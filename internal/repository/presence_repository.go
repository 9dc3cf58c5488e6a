package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

// PresenceRepository handles persistence of per-date attendance facts.
type PresenceRepository struct {
	db *sqlx.DB
}

// NewPresenceRepository constructs the repository.
func NewPresenceRepository(db *sqlx.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// BulkUpsert writes one record per (user module, date) pair inside a single
// transaction: either the whole batch lands or none of it does.
func (r *PresenceRepository) BulkUpsert(ctx context.Context, records []models.PresenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin presence batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO presence_records (id, user_module_id, date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_module_id, date)
DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query, rec.ID, rec.UserModuleID, rec.Date, rec.Status, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("upsert presence for %s on %s: %w", rec.UserModuleID, rec.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit presence batch: %w", err)
	}
	commit = true
	return nil
}

// CountPresent recounts the present days for a user module. There is no
// stored counter to drift from.
func (r *PresenceRepository) CountPresent(ctx context.Context, userModuleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM presence_records WHERE user_module_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userModuleID, models.PresenceStatusPresent); err != nil {
		return 0, fmt.Errorf("count present days: %w", err)
	}
	return count, nil
}

// ListByUserModule returns the attendance facts for one user module in date order.
func (r *PresenceRepository) ListByUserModule(ctx context.Context, userModuleID string) ([]models.PresenceRecord, error) {
	const query = `SELECT id, user_module_id, date, status, created_at, updated_at
FROM presence_records WHERE user_module_id = $1 ORDER BY date`
	var records []models.PresenceRecord
	if err := r.db.SelectContext(ctx, &records, query, userModuleID); err != nil {
		return nil, fmt.Errorf("list presence records: %w", err)
	}
	return records, nil
}
