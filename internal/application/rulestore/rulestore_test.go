package rulestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

// fakeRuleRepository is an in-memory repository.RuleRepository for tests.
type fakeRuleRepository struct {
	rulesets []repository.RulesetModel
	rules    map[string][]repository.RuleModel
	tables   []repository.MappingTableModel
	windows  []repository.MaintenanceWindowModel
	corr     []repository.CorrelationRuleModel
}

func (f *fakeRuleRepository) ListActiveRulesets(ctx context.Context) ([]repository.RulesetModel, error) {
	return f.rulesets, nil
}

func (f *fakeRuleRepository) ListActiveRules(ctx context.Context, rulesetName string) ([]repository.RuleModel, error) {
	return f.rules[rulesetName], nil
}

func (f *fakeRuleRepository) ListMappingTables(ctx context.Context) ([]repository.MappingTableModel, error) {
	return f.tables, nil
}

func (f *fakeRuleRepository) ListMaintenanceWindows(ctx context.Context) ([]repository.MaintenanceWindowModel, error) {
	return f.windows, nil
}

func (f *fakeRuleRepository) ListCorrelationRules(ctx context.Context) ([]repository.CorrelationRuleModel, error) {
	return f.corr, nil
}

func TestStoreLoadBuildsSnapshotFromRepository(t *testing.T) {
	repo := &fakeRuleRepository{
		rulesets: []repository.RulesetModel{
			{Name: "owners", Kind: rules.KindMapping, Type: rules.MatchFirst, Active: true},
		},
		rules: map[string][]repository.RuleModel{
			"owners": {
				{
					ID:           "rule-1",
					RulesetName:  "owners",
					Kind:         rules.KindMapping,
					Order:        5,
					Active:       true,
					When:         `source_system = "datadog"`,
					MappingTable: "owners_table",
					Fields: []rules.Field{
						{Name: "service", Tag: rules.QueryTag},
						{Name: "owner", Tag: rules.ResultTag, OverrideExisting: true},
					},
				},
			},
		},
		tables: []repository.MappingTableModel{
			{Name: "owners_table", Rows: []map[string]string{{"service": "checkout", "owner": "team-pay"}}},
		},
	}

	store := New(repo)
	require.NoError(t, store.Load(context.Background()))

	snap := store.Snapshot()
	require.NotNil(t, snap)
	require.Len(t, snap.Rulesets, 1)
	require.Len(t, snap.Rulesets[0].Rules, 1)

	rule := snap.Rulesets[0].Rules[0]
	assert.Equal(t, "owners_table", rule.Mapping.Table)
	assert.NotNil(t, rule.When)

	rec := record.Map{"source_system": "datadog"}
	ok, err := condition.Evaluate(rule.When, rec, condition.NewRegexCache(16))
	require.NoError(t, err)
	assert.True(t, ok)

	require.Contains(t, snap.Tables, "owners_table")
}

func TestStoreSkipsMalformedRuleAndKeepsRest(t *testing.T) {
	repo := &fakeRuleRepository{
		rulesets: []repository.RulesetModel{
			{Name: "r", Kind: rules.KindMapping, Type: rules.MatchFirst},
		},
		rules: map[string][]repository.RuleModel{
			"r": {
				{ID: "bad", RulesetName: "r", Kind: rules.KindMapping, When: "((("},
				{ID: "good", RulesetName: "r", Kind: rules.KindMapping, MappingTable: "t"},
			},
		},
	}

	store := New(repo)
	require.NoError(t, store.Load(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap.Rulesets[0].Rules, 1)
	assert.Equal(t, "good", snap.Rulesets[0].Rules[0].ID)
}
