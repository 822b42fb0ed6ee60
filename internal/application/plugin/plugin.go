// Package plugin implements the plugin chain (C8, §4.8): an ordered series
// of user-supplied filters applied to an event or webhook before dispatch,
// plus the scheduled event-fetch plugins driven by C11.
//
// A plugin is any Go value implementing Plugin; it opts into the three
// plugin operations (filter_event, filter_webhook, fetch_events) by also
// implementing EventFilterPlugin, WebhookFilterPlugin and/or
// EventFetcherPlugin. This mirrors the source system's dynamic dispatch
// (§9 design notes: "explicit capability interfaces per plugin op") while
// keeping the loosely-typed return value a plugin author can still get
// wrong; returns are validated at the chain boundary, not trusted.
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// Plugin is the minimal capability every registered plugin must have.
type Plugin interface {
	Name() string
}

// OrderedPlugin lets a plugin declare its position in the chain (§4.8):
// default 100, a negative value is treated as absent/invalid and falls
// back to 999. Ties are broken by load order.
type OrderedPlugin interface {
	Plugin
	Order() int
}

// EventFilterPlugin participates in filter_event.
type EventFilterPlugin interface {
	Plugin
	// FilterEvent returns a value conforming to the filter_event contract
	// (§4.8): nil suppresses the event, a record.Map (or map[string]any)
	// is the rewritten event, or a 1-4 element slice
	// (event, routing_key, destination_type, stop).
	FilterEvent(ctx context.Context, event record.Map, routingKey, destinationType string) (interface{}, error)
}

// WebhookFilterPlugin participates in filter_webhook.
type WebhookFilterPlugin interface {
	Plugin
	// FilterWebhook returns a value conforming to the filter_webhook
	// contract (§4.8): nil suppresses, a map is the rewritten webhook, or
	// a 1-3 element slice (webhook, url, stop).
	FilterWebhook(ctx context.Context, webhook record.Map, url string) (interface{}, error)
}

// EventFetcherPlugin participates in fetch_events (C11).
type EventFetcherPlugin interface {
	Plugin
	// FetchEvents returns a sequence of event maps to enqueue, or an
	// error. The returned value must be a []interface{}/[]record.Map of
	// maps; malformed elements are skipped by the caller with a warning.
	FetchEvents(ctx context.Context) (interface{}, error)
}

// ScheduledPlugin lets a fetch_events plugin declare its own schedule
// (§4.11): a cron expression, a plain integer of seconds, or "" to take
// the host's default interval.
type ScheduledPlugin interface {
	EventFetcherPlugin
	FetchInterval() string
}

type entry struct {
	plugin Plugin
	order  int
	seq    int
}

// Host holds the registered plugin chain and evaluates filter_event /
// filter_webhook against it. It is safe for concurrent use; Register and
// Unregister may run concurrently with FilterEvent/FilterWebhook.
type Host struct {
	mu            sync.RWMutex
	byName        map[string]*entry
	entries       []*entry
	nextSeq       int
	defaultOrder  int
	fallbackOrder int
	log           *logger.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) HostOption {
	return func(h *Host) { h.log = l }
}

// NewHost creates an empty plugin Host.
func NewHost(cfg config.PluginHostConfig, opts ...HostOption) *Host {
	h := &Host{
		byName:        make(map[string]*entry),
		defaultOrder:  cfg.DefaultOrder,
		fallbackOrder: cfg.FallbackOrder,
		log:           logger.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a plugin to the chain. Registering a name that is already
// present replaces it in place (keeping its original load-order tiebreak).
func (h *Host) Register(p Plugin) error {
	if p.Name() == "" {
		return errPluginNoName
	}

	order := h.defaultOrder
	if op, ok := p.(OrderedPlugin); ok {
		if o := op.Order(); o >= 0 {
			order = o
		} else {
			order = h.fallbackOrder
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byName[p.Name()]; ok {
		existing.plugin = p
		existing.order = order
		return nil
	}

	e := &entry{plugin: p, order: order, seq: h.nextSeq}
	h.nextSeq++
	h.byName[p.Name()] = e
	h.entries = append(h.entries, e)
	return nil
}

// Unregister removes a plugin by name.
func (h *Host) Unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.byName[name]
	if !ok {
		return false
	}
	delete(h.byName, name)
	for i, cur := range h.entries {
		if cur == e {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether a plugin with the given name is registered.
func (h *Host) Has(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byName[name]
	return ok
}

// List returns the registered plugin names in chain order.
func (h *Host) List() []string {
	ordered := h.sorted()
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.plugin.Name()
	}
	return names
}

// sorted returns a stable, order-then-load-order snapshot of the chain.
func (h *Host) sorted() []*entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*entry, len(h.entries))
	copy(out, h.entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Fetchers returns every registered fetch_events plugin in chain order,
// for the scheduler (C11) to register one cron/interval job per plugin.
func (h *Host) Fetchers() []FetcherRegistration {
	var out []FetcherRegistration
	for _, e := range h.sorted() {
		fp, ok := e.plugin.(EventFetcherPlugin)
		if !ok {
			continue
		}
		interval := ""
		if sp, ok := e.plugin.(ScheduledPlugin); ok {
			interval = sp.FetchInterval()
		}
		out = append(out, FetcherRegistration{
			Name:     fp.Name(),
			Interval: interval,
			Fetch:    fp.FetchEvents,
		})
	}
	return out
}

// FetcherRegistration is one plugin's fetch_events binding, handed to the
// scheduler (C11).
type FetcherRegistration struct {
	Name     string
	Interval string
	Fetch    func(ctx context.Context) (interface{}, error)
}
