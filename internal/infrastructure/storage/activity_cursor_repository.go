package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/storage/models"
)

// Ensure ActivityCursorRepository implements the interface.
var _ repository.ActivityCursorRepository = (*ActivityCursorRepository)(nil)

// ActivityCursorRepository implements repository.ActivityCursorRepository
// using a singleton bun row.
type ActivityCursorRepository struct {
	db *bun.DB
}

// NewActivityCursorRepository creates a new ActivityCursorRepository.
func NewActivityCursorRepository(db *bun.DB) *ActivityCursorRepository {
	return &ActivityCursorRepository{db: db}
}

// LatestCreatedAt returns the poller's high-water mark, or false if the
// poller has never run.
func (r *ActivityCursorRepository) LatestCreatedAt(ctx context.Context) (int64, bool, error) {
	row := new(models.ActivityCursorRow)
	err := r.db.NewSelect().
		Model(row).
		Where("key = ?", models.DefaultCursorKey).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load activity cursor: %w", err)
	}
	return row.LatestCreatedAt, true, nil
}

// SetLatestCreatedAt upserts the poller's high-water mark.
func (r *ActivityCursorRepository) SetLatestCreatedAt(ctx context.Context, createdAt int64) error {
	row := &models.ActivityCursorRow{
		Key:             models.DefaultCursorKey,
		LatestCreatedAt: createdAt,
		UpdatedAt:       time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("latest_created_at = EXCLUDED.latest_created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set activity cursor: %w", err)
	}
	return nil
}
