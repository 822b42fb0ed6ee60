// Package rules holds the enrichment data model (§3): rules, rulesets,
// mapping tables, maintenance windows, and correlation rules, plus the
// ordering invariant (I1) the rule store and engine both rely on.
package rules

import (
	"sort"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
)

// Kind is one of the three enrichment-rule kinds (§3).
type Kind string

const (
	KindMapping     Kind = "mapping"
	KindComposition Kind = "composition"
	KindExtraction  Kind = "extraction"
)

// RulesetType controls whether a ruleset stops at the first applied rule or
// runs every matching one (§3).
type RulesetType string

const (
	MatchFirst RulesetType = "match_first"
	MatchAll   RulesetType = "match_all"
)

// FieldTag distinguishes a mapping rule's join keys from its output fields.
type FieldTag string

const (
	QueryTag  FieldTag = "query_tag"
	ResultTag FieldTag = "result_tag"
)

// Field is one column reference in a mapping rule.
type Field struct {
	Name string
	Tag  FieldTag

	// Optional applies to query_tag fields: a missing optional join key is
	// simply omitted from the lookup rather than aborting the rule.
	Optional bool

	// OverrideExisting applies to result_tag fields (I2).
	OverrideExisting bool
}

// MappingRule references a named lookup table and the fields it joins/writes.
type MappingRule struct {
	Table  string
	Fields []Field
}

func (m *MappingRule) queryFields() []Field {
	var out []Field
	for _, f := range m.Fields {
		if f.Tag == QueryTag {
			out = append(out, f)
		}
	}
	return out
}

func (m *MappingRule) resultFields() []Field {
	var out []Field
	for _, f := range m.Fields {
		if f.Tag == ResultTag {
			out = append(out, f)
		}
	}
	return out
}

// CompositionTarget is one (destination, templated value) pair.
type CompositionTarget struct {
	Destination string
	Value       string // may contain ${key} placeholders
}

// CompositionRule writes one or more interpolated values.
type CompositionRule struct {
	Targets []CompositionTarget
}

// ExtractionRule pulls a regex match out of one field and writes a templated
// destination from its capture groups.
type ExtractionRule struct {
	Source      string
	Regex       condition.Atom // kind regex or formal-regex
	Template    string
	Destination string
}

// Rule is one enrichment rule of exactly one kind (§3).
type Rule struct {
	ID    string
	Order int

	Kind                 Kind
	When                 *condition.Condition
	SelectedSourceSystem string // broken-regex pattern tested against source_system

	Mapping     *MappingRule
	Composition *CompositionRule
	Extraction  *ExtractionRule

	// insertionIndex breaks order ties (I1); set by the rule store loader.
	insertionIndex int
}

// SetInsertionIndex records load order for tie-breaking; called once by the
// rule store as rules are read from the backing store.
func (r *Rule) SetInsertionIndex(i int) { r.insertionIndex = i }

// Ruleset is an ordered collection of same-kind rules (§3).
type Ruleset struct {
	Name  string
	Kind  Kind
	Type  RulesetType
	Rules []*Rule
}

// Sort applies I1: ascending order, ties broken by insertion order.
func (rs *Ruleset) Sort() {
	sort.SliceStable(rs.Rules, func(i, j int) bool {
		a, b := rs.Rules[i], rs.Rules[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.insertionIndex < b.insertionIndex
	})
}

// MaintenanceFrequency is the recurrence kind of a maintenance window (§3).
type MaintenanceFrequency string

const (
	FrequencyOnce   MaintenanceFrequency = "once"
	FrequencyDaily  MaintenanceFrequency = "daily"
	FrequencyWeekly MaintenanceFrequency = "weekly"
)

// MaintenanceWindow is a timed suppression predicate (§3).
type MaintenanceWindow struct {
	ID              string
	MaintenanceKey  string
	Name            string
	Start           int64 // unix seconds, UTC
	End             int64
	Frequency       MaintenanceFrequency
	DurationSeconds int64 // active-slot length for daily/weekly recurrences
	Condition       *condition.Condition
}

// CorrelationRule derives a correlation key from sorted tag values (§3, §4.7).
type CorrelationRule struct {
	ID     string
	Filter *condition.Condition
	Tags   []string
	Order  int
}
