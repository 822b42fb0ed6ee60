package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CorrelationRuleRow is the stored form of a correlation rule (§3, §4.7).
type CorrelationRuleRow struct {
	bun.BaseModel `bun:"table:correlation_rules,alias:cr"`

	ID        uuid.UUID   `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	Filter    string      `bun:"filter_expr"`
	Tags      StringArray `bun:"tags,type:text[]"`
	Order     int         `bun:"order_index,notnull,default:0"`
	Active    bool        `bun:"active,notnull,default:true"`
	CreatedAt time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeAppendModel assigns defaults on insert.
func (c *CorrelationRuleRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	return nil
}
