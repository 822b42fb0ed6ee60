package plugin

import (
	"context"
	"time"

	"github.com/pdaltagent/pdgateway/internal/application/rulestore"
	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/enrichment"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

// EnrichmentPlugin runs the C5/C6/C7 enrichment pipeline (mapping rules,
// maintenance windows, correlation tagging) as the first filter_event
// plugin in the chain, at order 0: the rule engine is not a hard-coded
// pipeline stage, it is this ordinary plugin wired in ahead of everything
// else a deployment registers.
type EnrichmentPlugin struct {
	store         *rulestore.Store
	regexCacheCap int
	prefix        string
	debug         bool
	now           func() time.Time
}

// EnrichmentOption configures an EnrichmentPlugin.
type EnrichmentOption func(*EnrichmentPlugin)

// WithPrefix sets the prepend-prefix subtree enrichment writes under
// (e.g. "custom_details.").
func WithPrefix(prefix string) EnrichmentOption {
	return func(p *EnrichmentPlugin) { p.prefix = prefix }
}

// WithDebugTraces turns on the enrichments.<destination> debug trace (§6 DEBUG).
func WithDebugTraces(debug bool) EnrichmentOption {
	return func(p *EnrichmentPlugin) { p.debug = debug }
}

// WithRegexCacheCapacity overrides the per-call regex cache size.
func WithRegexCacheCapacity(n int) EnrichmentOption {
	return func(p *EnrichmentPlugin) { p.regexCacheCap = n }
}

// NewEnrichmentPlugin wraps a rule store as a filter_event plugin.
func NewEnrichmentPlugin(store *rulestore.Store, opts ...EnrichmentOption) *EnrichmentPlugin {
	p := &EnrichmentPlugin{
		store:         store,
		regexCacheCap: 256,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Plugin.
func (p *EnrichmentPlugin) Name() string { return "pb_enrich_plugin" }

// Order implements OrderedPlugin: always first.
func (p *EnrichmentPlugin) Order() int { return 0 }

// FilterEvent implements EventFilterPlugin by running enrichment.Enrich
// in place over event and returning it unchanged in shape.
func (p *EnrichmentPlugin) FilterEvent(ctx context.Context, event record.Map, routingKey, destinationType string) (interface{}, error) {
	snap := p.store.Snapshot()
	if snap == nil {
		return event, nil
	}

	enrichment.Enrich(event, snap, enrichment.Options{
		Prefix: p.prefix,
		Debug:  p.debug,
		Now:    p.now(),
		Cache:  condition.NewRegexCache(p.regexCacheCap),
	})

	return event, nil
}
