// Package dispatch implements the dispatcher (C9, §4.9): a persistent,
// Redis-backed task queue plus a worker pool that performs outbound HTTP
// delivery for send_event and send_webhook, with per-incident ordering,
// plugin pre-filtering, and the §7 retry policy.
package dispatch

import "github.com/pdaltagent/pdgateway/internal/domain/record"

// Kind distinguishes the two dispatch operations (§4.9).
type Kind string

const (
	KindSendEvent   Kind = "send_event"
	KindSendWebhook Kind = "send_webhook"
)

// Task is the persisted, JSON-serializable unit of work on the dispatch
// queue. A zero IncidentKey means the task has no per-incident ordering
// requirement and runs independently of every other task.
type Task struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	IncidentKey string `json:"incident_key,omitempty"`
	Attempt     int    `json:"attempt"`

	RoutingKey      string     `json:"routing_key,omitempty"`
	BaseURL         string     `json:"base_url,omitempty"`
	DestinationType string     `json:"destination_type,omitempty"`
	Payload         record.Map `json:"payload,omitempty"`

	URL            string     `json:"url,omitempty"`
	WebhookPayload record.Map `json:"webhook_payload,omitempty"`
}
