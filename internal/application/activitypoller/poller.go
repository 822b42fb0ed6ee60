// Package activitypoller implements the activity poller (C10): a periodic
// task that pulls new log entries from the incident-management service,
// deduplicates them, reconstructs webhook payloads, and schedules
// per-incident webhook delivery chains through the dispatcher.
package activitypoller

import (
	"context"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/repository"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/imsclient"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// WebhookSender is the subset of the dispatcher this poller depends on.
type WebhookSender interface {
	SendWebhook(ctx context.Context, url string, payload map[string]interface{}, incidentKey string) error
}

// Poller runs the periodic activity-poll tick.
type Poller struct {
	cfg        config.PollingConfig
	ims        *imsclient.Client
	dedupe     repository.DedupeRepository
	cursor     repository.ActivityCursorRepository
	sender     WebhookSender
	log        *logger.Logger
	now        func() time.Time
	sweepEvery int
	tickCount  int
}

// Option customizes a Poller.
type Option func(*Poller)

// WithLogger overrides the poller's logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// New builds a Poller. ims, dedupe, cursor, and sender must be non-nil;
// construction does not validate cfg.Enabled(); callers decide whether to
// run the poller at all.
func New(cfg config.PollingConfig, ims *imsclient.Client, dedupe repository.DedupeRepository, cursor repository.ActivityCursorRepository, sender WebhookSender, opts ...Option) *Poller {
	p := &Poller{
		cfg:        cfg,
		ims:        ims,
		dedupe:     dedupe,
		cursor:     cursor,
		sender:     sender,
		log:        logger.Default(),
		now:        time.Now,
		sweepEvery: 60,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks, ticking every IntervalSeconds until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.IntervalSeconds) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick executes one poll cycle (§4.10). It never returns an error: every
// failure is logged and the tick completes, leaving the cursor unadvanced
// on fetch failure so the next tick retries the same window.
func (p *Poller) tick(ctx context.Context) {
	interval := time.Duration(p.cfg.IntervalSeconds) * time.Second
	until := p.now()

	since, ok, err := p.cursor.LatestCreatedAt(ctx)
	if err != nil {
		p.log.ErrorContext(ctx, "activity poller: read cursor failed", "error", err)
		return
	}
	sinceTime := until.Add(-interval)
	if ok {
		sinceTime = time.UnixMilli(since)
	}

	entries, err := p.ims.FetchAll(ctx, imsclient.ListParams{
		Since:         sinceTime,
		Until:         until,
		IsOverview:    true,
		AllLogEntries: p.cfg.GetAllLogEntries,
		Include:       []string{"incidents", "services"},
	})
	if err != nil {
		p.log.ErrorContext(ctx, "activity poller: fetch failed", "error", err)
		return
	}
	if len(entries) == 0 {
		p.maybeSweep(ctx)
		return
	}

	p.processEntries(ctx, entries, until)
	p.maybeSweep(ctx)
}

// processEntries reverses a feed page (newest-first) to chronological
// order, dedupes against the store, dispatches each new entry's webhook,
// and advances the cursor to the newest new entry, including entries that
// the service allow-list then keeps from being dispatched.
func (p *Poller) processEntries(ctx context.Context, entries []imsclient.LogEntry, until time.Time) {
	reversed := make([]imsclient.LogEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	ids := make([]string, len(reversed))
	for i, e := range reversed {
		id, _ := e["id"].(string)
		ids[i] = id
	}

	newIDs, err := p.dedupe.FilterNew(ctx, ids, until.UnixMilli())
	if err != nil {
		p.log.ErrorContext(ctx, "activity poller: dedupe check failed", "error", err)
		return
	}
	isNew := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		isNew[id] = true
	}

	var latestCreatedAt int64
	for _, ile := range reversed {
		id, _ := ile["id"].(string)
		if id == "" || !isNew[id] {
			continue
		}
		if createdAt, ok := parseCreatedAt(ile); ok && createdAt > latestCreatedAt {
			latestCreatedAt = createdAt
		}
		p.dispatchEntry(ctx, ile)
	}

	if latestCreatedAt > 0 {
		if err := p.cursor.SetLatestCreatedAt(ctx, latestCreatedAt); err != nil {
			p.log.ErrorContext(ctx, "activity poller: advance cursor failed", "error", err)
		}
	}
}

func (p *Poller) dispatchEntry(ctx context.Context, ile imsclient.LogEntry) {
	svcID := serviceID(ile)
	if !allowedByServiceList(svcID, p.cfg.WebhookServicesList) {
		return
	}

	payload := buildWebhookPayload(ile, p.cfg.WebhookConfigJSON)
	incKey := incidentID(ile)

	if err := p.sender.SendWebhook(ctx, p.cfg.WebhookDestURL, payload, incKey); err != nil {
		p.log.ErrorContext(ctx, "activity poller: schedule webhook failed", "incident_id", incKey, "error", err)
	}
}

func (p *Poller) maybeSweep(ctx context.Context) {
	p.tickCount++
	if p.tickCount%p.sweepEvery != 0 {
		return
	}
	cutoff := p.now().Add(-time.Duration(p.cfg.KeepActivitySeconds) * time.Second).UnixMilli()
	if _, err := p.dedupe.Sweep(ctx, cutoff); err != nil {
		p.log.ErrorContext(ctx, "activity poller: dedupe sweep failed", "error", err)
	}
}

func parseCreatedAt(ile imsclient.LogEntry) (int64, bool) {
	raw, ok := ile["created_at"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case string:
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
