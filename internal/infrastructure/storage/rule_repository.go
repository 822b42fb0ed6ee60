package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/storage/models"
)

// Ensure RuleRepository implements the interface.
var _ repository.RuleRepository = (*RuleRepository)(nil)

// RuleRepository implements repository.RuleRepository using bun.
type RuleRepository struct {
	db *bun.DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *bun.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListActiveRulesets returns every active ruleset header.
func (r *RuleRepository) ListActiveRulesets(ctx context.Context) ([]repository.RulesetModel, error) {
	var rows []models.RulesetRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("active = ?", true).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rulesets: %w", err)
	}

	out := make([]repository.RulesetModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.RulesetModel{
			Name:   row.Name,
			Kind:   rules.Kind(row.Kind),
			Type:   rules.RulesetType(row.Type),
			Active: row.Active,
		})
	}
	return out, nil
}

// ListActiveRules returns every active rule in a ruleset, in stored order.
func (r *RuleRepository) ListActiveRules(ctx context.Context, rulesetName string) ([]repository.RuleModel, error) {
	var rows []models.RuleRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("ruleset_name = ? AND active = ?", rulesetName, true).
		Order("order_index ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules for ruleset %q: %w", rulesetName, err)
	}

	out := make([]repository.RuleModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.RuleModel{
			ID:                    row.ID.String(),
			RulesetName:           row.RulesetName,
			Kind:                  rules.Kind(row.Kind),
			Order:                 row.Order,
			Active:                row.Active,
			When:                  row.When,
			SelectedSourceSystem:  row.SelectedSourceSystem,
			MappingTable:          row.MappingTable,
			Fields:                row.Fields,
			CompositionTargets:    row.CompositionTargets,
			ExtractionSource:      row.ExtractionSource,
			ExtractionRegex:       row.ExtractionRegex,
			ExtractionTemplate:    row.ExtractionTemplate,
			ExtractionDestination: row.ExtractionDestination,
		})
	}
	return out, nil
}

// ListMappingTables returns every mapping table and its rows.
func (r *RuleRepository) ListMappingTables(ctx context.Context) ([]repository.MappingTableModel, error) {
	var rows []models.MappingTableRow
	err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mapping tables: %w", err)
	}

	out := make([]repository.MappingTableModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.MappingTableModel{Name: row.Name, Rows: row.Rows})
	}
	return out, nil
}

// ListMaintenanceWindows returns every active maintenance window.
func (r *RuleRepository) ListMaintenanceWindows(ctx context.Context) ([]repository.MaintenanceWindowModel, error) {
	var rows []models.MaintenanceWindowRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("active = ?", true).
		Order("start_ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list maintenance windows: %w", err)
	}

	out := make([]repository.MaintenanceWindowModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.MaintenanceWindowModel{
			ID:              row.ID.String(),
			MaintenanceKey:  row.MaintenanceKey,
			Name:            row.Name,
			Start:           row.Start,
			End:             row.End,
			Frequency:       rules.MaintenanceFrequency(row.Frequency),
			DurationSeconds: row.DurationSeconds,
			Condition:       row.Condition,
		})
	}
	return out, nil
}

// ListCorrelationRules returns every active correlation rule, in order.
func (r *RuleRepository) ListCorrelationRules(ctx context.Context) ([]repository.CorrelationRuleModel, error) {
	var rows []models.CorrelationRuleRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("active = ?", true).
		Order("order_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list correlation rules: %w", err)
	}

	out := make([]repository.CorrelationRuleModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.CorrelationRuleModel{
			ID:     row.ID.String(),
			Filter: row.Filter,
			Tags:   []string(row.Tags),
			Order:  row.Order,
		})
	}
	return out, nil
}
