package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaintenanceWindowRow is the stored form of a maintenance window (§3, §4.6).
type MaintenanceWindowRow struct {
	bun.BaseModel `bun:"table:maintenance_windows,alias:mw"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	MaintenanceKey  string    `bun:"maintenance_key,notnull"`
	Name            string    `bun:"name,notnull"`
	Start           int64     `bun:"start_ts,notnull"`
	End             int64     `bun:"end_ts,notnull"`
	Frequency       string    `bun:"frequency,notnull"`
	DurationSeconds int64     `bun:"duration_seconds,notnull,default:0"`
	Condition       string    `bun:"condition_expr"`
	Active          bool      `bun:"active,notnull,default:true"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeAppendModel assigns defaults on insert.
func (w *MaintenanceWindowRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now()
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
	}
	return nil
}
