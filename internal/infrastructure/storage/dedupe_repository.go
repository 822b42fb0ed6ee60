package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/storage/models"
)

// Ensure DedupeRepository implements the interface.
var _ repository.DedupeRepository = (*DedupeRepository)(nil)

// DedupeRepository implements repository.DedupeRepository using bun,
// backing the activity poller's transactional check-then-insert guard
// (§5, §4.10, P9).
type DedupeRepository struct {
	db *bun.DB
}

// NewDedupeRepository creates a new DedupeRepository.
func NewDedupeRepository(db *bun.DB) *DedupeRepository {
	return &DedupeRepository{db: db}
}

// FilterNew returns the subset of ids not already present, then inserts all
// of ids, inside one transaction so two overlapping polls can never both
// treat the same id as new.
func (r *DedupeRepository) FilterNew(ctx context.Context, ids []string, now int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var fresh []string
	err := r.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		var existing []string
		if err := tx.NewSelect().
			Model((*models.DedupeEntryRow)(nil)).
			Column("id").
			Where("id IN (?)", bun.In(ids)).
			Scan(ctx, &existing); err != nil {
			return fmt.Errorf("query existing dedupe entries: %w", err)
		}

		seen := make(map[string]bool, len(existing))
		for _, id := range existing {
			seen[id] = true
		}

		rows := make([]*models.DedupeEntryRow, 0, len(ids))
		for _, id := range ids {
			if !seen[id] {
				fresh = append(fresh, id)
			}
			rows = append(rows, &models.DedupeEntryRow{ID: id, SeenAt: now})
		}

		if len(rows) == 0 {
			return nil
		}

		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert dedupe entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// Sweep deletes dedupe entries older than the retention cutoff.
func (r *DedupeRepository) Sweep(ctx context.Context, olderThan int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.DedupeEntryRow)(nil)).
		Where("seen_at < ?", olderThan).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep dedupe entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep dedupe entries: %w", err)
	}
	return n, nil
}
