package plugin

import (
	"context"
	"fmt"

	"github.com/pdaltagent/pdgateway/internal/domain/derrors"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/routingkey"
)

// EventOutcome is the result of running the filter_event chain over one
// event (§4.8).
type EventOutcome struct {
	Suppressed      bool
	Event           record.Map
	RoutingKey      string
	DestinationType string
}

// WebhookOutcome is the result of running the filter_webhook chain over
// one webhook payload (§4.8).
type WebhookOutcome struct {
	Suppressed bool
	Webhook    record.Map
	URL        string
}

// eventReturn is one plugin's parsed, not-yet-merged filter_event return.
type eventReturn struct {
	suppressed      bool
	event           record.Map
	eventSet        bool
	routingKey      string
	routingKeySet   bool
	destinationType string
	destSet         bool
	stop            bool
}

func parseEventReturn(raw interface{}) (eventReturn, error) {
	if raw == nil {
		return eventReturn{suppressed: true}, nil
	}

	if m, ok := asRecordMap(raw); ok {
		return eventReturn{event: m, eventSet: true}, nil
	}

	tuple, ok := raw.([]interface{})
	if !ok {
		return eventReturn{}, fmt.Errorf("%w: filter_event returned %T, want nil, map or tuple", derrors.ErrPluginBadReturn, raw)
	}
	if len(tuple) < 1 || len(tuple) > 4 {
		return eventReturn{}, fmt.Errorf("%w: filter_event tuple has %d elements, want 1-4", derrors.ErrPluginBadReturn, len(tuple))
	}

	out := eventReturn{}

	if len(tuple) >= 1 && tuple[0] != nil {
		m, ok := asRecordMap(tuple[0])
		if !ok {
			return eventReturn{}, fmt.Errorf("%w: filter_event tuple[0] (event) must be a map or null", derrors.ErrPluginBadReturn)
		}
		out.event = m
		out.eventSet = true
	}

	if len(tuple) >= 2 && tuple[1] != nil {
		rk, ok := tuple[1].(string)
		if !ok || !routingkey.Valid(rk) {
			return eventReturn{}, fmt.Errorf("%w: filter_event tuple[1] (routing_key) is not a valid integration key", derrors.ErrPluginBadReturn)
		}
		out.routingKey = rk
		out.routingKeySet = true
	}

	if len(tuple) >= 3 && tuple[2] != nil {
		dt, ok := tuple[2].(string)
		if !ok || dt == "" {
			return eventReturn{}, fmt.Errorf("%w: filter_event tuple[2] (destination_type) must be a non-empty string or null", derrors.ErrPluginBadReturn)
		}
		out.destinationType = dt
		out.destSet = true
	}

	if len(tuple) >= 4 && tuple[3] != nil {
		stop, ok := tuple[3].(bool)
		if !ok {
			return eventReturn{}, fmt.Errorf("%w: filter_event tuple[3] (stop) must be a bool or null", derrors.ErrPluginBadReturn)
		}
		out.stop = stop
	}

	return out, nil
}

// webhookReturn is one plugin's parsed, not-yet-merged filter_webhook return.
type webhookReturn struct {
	suppressed bool
	webhook    record.Map
	webhookSet bool
	url        string
	urlSet     bool
	stop       bool
}

func parseWebhookReturn(raw interface{}) (webhookReturn, error) {
	if raw == nil {
		return webhookReturn{suppressed: true}, nil
	}

	if m, ok := asRecordMap(raw); ok {
		return webhookReturn{webhook: m, webhookSet: true}, nil
	}

	tuple, ok := raw.([]interface{})
	if !ok {
		return webhookReturn{}, fmt.Errorf("%w: filter_webhook returned %T, want nil, map or tuple", derrors.ErrPluginBadReturn, raw)
	}
	if len(tuple) < 1 || len(tuple) > 3 {
		return webhookReturn{}, fmt.Errorf("%w: filter_webhook tuple has %d elements, want 1-3", derrors.ErrPluginBadReturn, len(tuple))
	}

	out := webhookReturn{}

	if len(tuple) >= 1 && tuple[0] != nil {
		m, ok := asRecordMap(tuple[0])
		if !ok {
			return webhookReturn{}, fmt.Errorf("%w: filter_webhook tuple[0] (webhook) must be a map or null", derrors.ErrPluginBadReturn)
		}
		out.webhook = m
		out.webhookSet = true
	}

	if len(tuple) >= 2 && tuple[1] != nil {
		url, ok := tuple[1].(string)
		if !ok || !routingkey.ValidURL(url) {
			return webhookReturn{}, fmt.Errorf("%w: filter_webhook tuple[1] (url) is not a well-formed URL", derrors.ErrPluginBadReturn)
		}
		out.url = url
		out.urlSet = true
	}

	if len(tuple) >= 3 && tuple[2] != nil {
		stop, ok := tuple[2].(bool)
		if !ok {
			return webhookReturn{}, fmt.Errorf("%w: filter_webhook tuple[2] (stop) must be a bool or null", derrors.ErrPluginBadReturn)
		}
		out.stop = stop
	}

	return out, nil
}

func asRecordMap(v interface{}) (record.Map, bool) {
	switch m := v.(type) {
	case record.Map:
		return m, true
	default:
		return nil, false
	}
}

// FilterEvent runs event through every registered EventFilterPlugin in
// chain order (§4.8). A plugin error, or a return value that fails
// validation, is logged and treated as a no-op: the chain continues with
// the pre-filter value. A bare nil return suppresses the event outright.
func (h *Host) FilterEvent(ctx context.Context, event record.Map, routingKey, destinationType string) EventOutcome {
	out := EventOutcome{Event: event, RoutingKey: routingKey, DestinationType: destinationType}

	for _, e := range h.sorted() {
		fp, ok := e.plugin.(EventFilterPlugin)
		if !ok {
			continue
		}

		raw, err := fp.FilterEvent(ctx, out.Event, out.RoutingKey, out.DestinationType)
		if err != nil {
			h.log.Error("plugin filter_event failed", "plugin", fp.Name(), "error", err)
			continue
		}

		parsed, err := parseEventReturn(raw)
		if err != nil {
			h.log.Error("plugin filter_event returned invalid shape", "plugin", fp.Name(), "error", err)
			continue
		}

		if parsed.suppressed {
			out.Suppressed = true
			return out
		}
		if parsed.eventSet {
			out.Event = parsed.event
		}
		if parsed.routingKeySet {
			out.RoutingKey = parsed.routingKey
		}
		if parsed.destSet {
			out.DestinationType = parsed.destinationType
		}
		if parsed.stop {
			break
		}
	}

	return out
}

// FilterWebhook runs webhook through every registered WebhookFilterPlugin
// in chain order (§4.8), with the same error/shape isolation as FilterEvent.
func (h *Host) FilterWebhook(ctx context.Context, webhook record.Map, url string) WebhookOutcome {
	out := WebhookOutcome{Webhook: webhook, URL: url}

	for _, e := range h.sorted() {
		fp, ok := e.plugin.(WebhookFilterPlugin)
		if !ok {
			continue
		}

		raw, err := fp.FilterWebhook(ctx, out.Webhook, out.URL)
		if err != nil {
			h.log.Error("plugin filter_webhook failed", "plugin", fp.Name(), "error", err)
			continue
		}

		parsed, err := parseWebhookReturn(raw)
		if err != nil {
			h.log.Error("plugin filter_webhook returned invalid shape", "plugin", fp.Name(), "error", err)
			continue
		}

		if parsed.suppressed {
			out.Suppressed = true
			return out
		}
		if parsed.webhookSet {
			out.Webhook = parsed.webhook
		}
		if parsed.urlSet {
			out.URL = parsed.url
		}
		if parsed.stop {
			break
		}
	}

	return out
}

// ParseFetchedEvents validates a fetch_events return value (§4.11): it
// must be a sequence of event maps ([]interface{} or []record.Map); a
// single event map is also accepted and treated as a one-element
// sequence. Elements that are not maps are skipped and counted, not
// returned as an error, matching §7's "malformed entries skipped with
// warning" policy.
func ParseFetchedEvents(raw interface{}) (events []record.Map, skipped int, err error) {
	if maps, ok := raw.([]record.Map); ok {
		return maps, 0, nil
	}
	seq, ok := raw.([]interface{})
	if !ok {
		if m, ok := asRecordMap(raw); ok {
			return []record.Map{m}, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: fetch_events returned %T, want an array of event maps", derrors.ErrPluginBadReturn, raw)
	}

	for _, item := range seq {
		m, ok := asRecordMap(item)
		if !ok {
			skipped++
			continue
		}
		events = append(events, m)
	}
	return events, skipped, nil
}
