// Package repository declares the storage-facing interfaces the rule store
// (C4) and dispatcher/poller (C9, C10) depend on; internal/infrastructure/storage
// provides the bun/Postgres implementations (§4.4, §5).
package repository

import (
	"context"

	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

// RuleModel is the flat, storage-shaped form of a Rule before it is parsed
// into the domain AST (conditions and regex atoms are stored as raw text).
type RuleModel struct {
	ID                   string
	RulesetName          string
	Kind                 rules.Kind
	Order                int
	Active               bool
	When                 string // BPQL text, empty if absent
	SelectedSourceSystem string

	MappingTable string
	Fields       []rules.Field

	CompositionTargets []rules.CompositionTarget

	ExtractionSource      string
	ExtractionRegex       string
	ExtractionTemplate    string
	ExtractionDestination string
}

// RulesetModel is the storage-shaped ruleset header.
type RulesetModel struct {
	Name   string
	Kind   rules.Kind
	Type   rules.RulesetType
	Active bool
}

// MaintenanceWindowModel is the storage-shaped maintenance window.
type MaintenanceWindowModel struct {
	ID              string
	MaintenanceKey  string
	Name            string
	Start           int64
	End             int64
	Frequency       rules.MaintenanceFrequency
	DurationSeconds int64
	Condition       string // BPQL text
}

// CorrelationRuleModel is the storage-shaped correlation rule.
type CorrelationRuleModel struct {
	ID     string
	Filter string // BPQL text
	Tags   []string
	Order  int
}

// MappingTableModel is a mapping table and its rows as stored.
type MappingTableModel struct {
	Name string
	Rows []map[string]string
}

// RuleRepository reads the rule-engine configuration the store snapshot is
// built from. CRUD is out of scope here (§1 "deliberately out of scope":
// the administrative HTTP surface); this interface only supports load.
type RuleRepository interface {
	ListActiveRulesets(ctx context.Context) ([]RulesetModel, error)
	ListActiveRules(ctx context.Context, rulesetName string) ([]RuleModel, error)
	ListMappingTables(ctx context.Context) ([]MappingTableModel, error)
	ListMaintenanceWindows(ctx context.Context) ([]MaintenanceWindowModel, error)
	ListCorrelationRules(ctx context.Context) ([]CorrelationRuleModel, error)
}

// DedupeRepository implements the activity-poller's transactional
// check-then-insert contract (§5, §4.10, P9).
type DedupeRepository interface {
	// FilterNew returns the subset of ids not already present, then inserts
	// all of ids, atomically (single transaction) so overlapping polls never
	// double-insert the same id.
	FilterNew(ctx context.Context, ids []string, now int64) ([]string, error)
	// Sweep deletes dedupe entries older than the retention cutoff.
	Sweep(ctx context.Context, olderThan int64) (int64, error)
}

// ActivityCursorRepository tracks the latest polled activity entry.
type ActivityCursorRepository interface {
	LatestCreatedAt(ctx context.Context) (int64, bool, error)
	SetLatestCreatedAt(ctx context.Context, createdAt int64) error
}
