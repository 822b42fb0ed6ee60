package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

// RuleRow is the stored form of one enrichment rule (§3). Conditions and
// regex atoms are kept as raw BPQL text; the rule store parses them when it
// builds an enrichment.Snapshot.
type RuleRow struct {
	bun.BaseModel `bun:"table:rules,alias:r"`

	ID                   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()"`
	RulesetName          string    `bun:"ruleset_name,notnull"`
	Kind                 string    `bun:"kind,notnull"`
	Order                int       `bun:"order_index,notnull,default:0"`
	Active               bool      `bun:"active,notnull,default:true"`
	When                 string    `bun:"when_expr"`
	SelectedSourceSystem string    `bun:"selected_source_system"`

	MappingTable string        `bun:"mapping_table"`
	Fields       []rules.Field `bun:"fields,type:jsonb"`

	CompositionTargets []rules.CompositionTarget `bun:"composition_targets,type:jsonb"`

	ExtractionSource      string `bun:"extraction_source"`
	ExtractionRegex       string `bun:"extraction_regex"`
	ExtractionTemplate    string `bun:"extraction_template"`
	ExtractionDestination string `bun:"extraction_destination"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeAppendModel assigns defaults on insert.
func (r *RuleRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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
