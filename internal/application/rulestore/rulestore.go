// Package rulestore loads the rule-engine configuration (§3, §4.4) from a
// repository.RuleRepository into an atomically-swapped enrichment.Snapshot
// the dispatch path reads without blocking on storage.
package rulestore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/enrichment"
	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// Store holds the current enrichment.Snapshot and refreshes it from a
// repository.RuleRepository on a timer or on demand.
type Store struct {
	repo          repository.RuleRepository
	regexCacheCap int
	refresh       time.Duration

	snapshot atomic.Pointer[enrichment.Snapshot]
	log      *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRefreshInterval overrides the default periodic reload interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) { s.refresh = d }
}

// WithRegexCacheCapacity overrides the default compiled-regex LRU capacity.
func WithRegexCacheCapacity(n int) Option {
	return func(s *Store) { s.regexCacheCap = n }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store. Call Load once before serving traffic; call Run in a
// goroutine to keep the snapshot warm.
func New(repo repository.RuleRepository, opts ...Option) *Store {
	s := &Store{
		repo:          repo,
		regexCacheCap: 512,
		refresh:       30 * time.Second,
		log:           logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current enrichment.Snapshot. Safe for concurrent use.
func (s *Store) Snapshot() *enrichment.Snapshot {
	return s.snapshot.Load()
}

// Load parses every rule-engine object from the repository and swaps it in
// as the current snapshot.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.build(ctx)
	if err != nil {
		return err
	}
	s.snapshot.Store(snap)
	return nil
}

// Run reloads the snapshot every refresh interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				s.log.Error("rule store refresh failed", "error", err)
			}
		}
	}
}

// build reads the repository and parses every BPQL text field, eagerly
// warming the regex cache so broken-regex rewrites are logged here rather
// than during request-path evaluation.
func (s *Store) build(ctx context.Context) (*enrichment.Snapshot, error) {
	cache := condition.NewRegexCache(s.regexCacheCap)

	rulesetHeaders, err := s.repo.ListActiveRulesets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rulesets: %w", err)
	}

	rulesets := make([]*rules.Ruleset, 0, len(rulesetHeaders))
	for _, header := range rulesetHeaders {
		ruleModels, err := s.repo.ListActiveRules(ctx, header.Name)
		if err != nil {
			return nil, fmt.Errorf("load rules for ruleset %q: %w", header.Name, err)
		}

		rs := &rules.Ruleset{
			Name: header.Name,
			Kind: header.Kind,
			Type: header.Type,
		}

		for i, rm := range ruleModels {
			rule, err := s.parseRule(rm, cache)
			if err != nil {
				s.log.Error("skipping malformed rule", "rule_id", rm.ID, "ruleset", header.Name, "error", err)
				continue
			}
			rule.SetInsertionIndex(i)
			rs.Rules = append(rs.Rules, rule)
		}
		rs.Sort()
		rulesets = append(rulesets, rs)
	}

	tableModels, err := s.repo.ListMappingTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mapping tables: %w", err)
	}
	tables := make(map[string]*rules.MappingTable, len(tableModels))
	for _, tm := range tableModels {
		tables[tm.Name] = &rules.MappingTable{Name: tm.Name, Rows: tm.Rows}
	}

	windowModels, err := s.repo.ListMaintenanceWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load maintenance windows: %w", err)
	}
	windows := make([]*rules.MaintenanceWindow, 0, len(windowModels))
	for _, wm := range windowModels {
		cond, err := s.parseCondition(wm.Condition, cache)
		if err != nil {
			s.log.Error("skipping malformed maintenance window", "window_id", wm.ID, "error", err)
			continue
		}
		windows = append(windows, &rules.MaintenanceWindow{
			ID:              wm.ID,
			MaintenanceKey:  wm.MaintenanceKey,
			Name:            wm.Name,
			Start:           wm.Start,
			End:             wm.End,
			Frequency:       wm.Frequency,
			DurationSeconds: wm.DurationSeconds,
			Condition:       cond,
		})
	}

	corrModels, err := s.repo.ListCorrelationRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load correlation rules: %w", err)
	}
	corrRules := make([]*rules.CorrelationRule, 0, len(corrModels))
	for _, cm := range corrModels {
		cond, err := s.parseCondition(cm.Filter, cache)
		if err != nil {
			s.log.Error("skipping malformed correlation rule", "rule_id", cm.ID, "error", err)
			continue
		}
		corrRules = append(corrRules, &rules.CorrelationRule{
			ID:     cm.ID,
			Filter: cond,
			Tags:   cm.Tags,
			Order:  cm.Order,
		})
	}

	return &enrichment.Snapshot{
		Rulesets:         rulesets,
		Tables:           tables,
		Windows:          windows,
		CorrelationRules: corrRules,
	}, nil
}

// parseRule converts a storage-shaped RuleModel into its domain form,
// parsing the BPQL text fields and warming the regex cache as it goes.
func (s *Store) parseRule(rm repository.RuleModel, cache *condition.RegexCache) (*rules.Rule, error) {
	when, err := s.parseCondition(rm.When, cache)
	if err != nil {
		return nil, fmt.Errorf("parse when condition: %w", err)
	}

	rule := &rules.Rule{
		ID:                   rm.ID,
		Order:                rm.Order,
		Kind:                 rm.Kind,
		When:                 when,
		SelectedSourceSystem: rm.SelectedSourceSystem,
	}

	switch rm.Kind {
	case rules.KindMapping:
		rule.Mapping = &rules.MappingRule{Table: rm.MappingTable, Fields: rm.Fields}
	case rules.KindComposition:
		rule.Composition = &rules.CompositionRule{Targets: rm.CompositionTargets}
	case rules.KindExtraction:
		regexAtom := condition.NewRegexAtom(rm.ExtractionRegex)
		s.warmAtom(regexAtom, cache)
		rule.Extraction = &rules.ExtractionRule{
			Source:      rm.ExtractionSource,
			Regex:       regexAtom,
			Template:    rm.ExtractionTemplate,
			Destination: rm.ExtractionDestination,
		}
	default:
		return nil, fmt.Errorf("unknown rule kind %q", rm.Kind)
	}

	return rule, nil
}

func (s *Store) parseCondition(bpql string, cache *condition.RegexCache) (*condition.Condition, error) {
	if bpql == "" {
		return nil, nil
	}
	cond, err := condition.Parse(bpql)
	if err != nil {
		return nil, err
	}
	s.warmCache(cond, cache)
	return cond, nil
}

// warmCache compiles every regex/formal-regex atom in cond up front so the
// §4.3 autofix rewrite, if any, is logged now instead of at match time.
func (s *Store) warmCache(cond *condition.Condition, cache *condition.RegexCache) {
	if cond == nil {
		return
	}
	for _, child := range cond.Children {
		s.warmCache(child, cache)
	}
	s.warmAtom(cond.Value, cache)
	for _, v := range cond.List {
		s.warmAtom(v, cache)
	}
}

func (s *Store) warmAtom(atom condition.Atom, cache *condition.RegexCache) {
	switch atom.Kind {
	case condition.AtomRegex:
		before := atom.Pattern
		if _, err := cache.Compile(atom, true); err != nil {
			s.log.Error("regex atom failed to compile even after autofix", "pattern", before, "error", err)
			return
		}
		if fixed := condition.NormalizeBrokenRegex(before); fixed != before {
			s.log.Info("rewrote broken regex pattern", "original", before, "rewritten", fixed)
		}
	case condition.AtomFormalRegex:
		if _, err := cache.Compile(atom, false); err != nil {
			s.log.Error("formal-regex atom failed to compile", "pattern", atom.Pattern, "error", err)
		}
	}
}
