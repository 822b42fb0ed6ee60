package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RulesetRow is the stored form of a ruleset header (§3).
type RulesetRow struct {
	bun.BaseModel `bun:"table:rulesets,alias:rs"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	Name      string    `bun:"name,notnull,unique"`
	Kind      string    `bun:"kind,notnull"`
	Type      string    `bun:"type,notnull"`
	Active    bool      `bun:"active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeAppendModel assigns defaults consistent with the other rows in this schema.
func (r *RulesetRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
	}
	return nil
}
