package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MappingTableRow is a named lookup table and its rows (§3).
type MappingTableRow struct {
	bun.BaseModel `bun:"table:mapping_tables,alias:mt"`

	ID        uuid.UUID           `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	Name      string              `bun:"name,notnull,unique"`
	Rows      []map[string]string `bun:"rows,type:jsonb"`
	CreatedAt time.Time           `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time           `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeAppendModel assigns defaults on insert.
func (m *MappingTableRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now()
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	return nil
}
