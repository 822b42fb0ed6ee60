// Package ingress validates and routes inbound events, shared by the HTTP
// ingress adapter (C12) and the scheduled fetcher wrapper (C11): both turn
// an untrusted event map into a validated dispatch task (§6).
package ingress

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/routingkey"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("pdroutingkey", func(fl validator.FieldLevel) bool {
		return routingkey.Valid(fl.Field().String())
	})
	v.RegisterStructValidation(validateV2Event, v2Event{})
	return v
}

// v2Event mirrors the strict PD events v2 envelope (§6) as a validator
// struct: event_action and routing_key are always required, payload's
// fields are conditionally required by the struct-level rule below.
type v2Event struct {
	EventAction string     `json:"event_action" validate:"required,oneof=trigger acknowledge resolve"`
	RoutingKey  string     `json:"routing_key" validate:"required,pdroutingkey"`
	Payload     *v2Payload `json:"payload"`
}

type v2Payload struct {
	Severity string `json:"severity" validate:"omitempty,oneof=info warning error critical"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
}

// validateV2Event enforces the trigger-only payload requirement that a
// plain struct tag can't express across the parent/child boundary.
func validateV2Event(sl validator.StructLevel) {
	event := sl.Current().Interface().(v2Event)
	if event.EventAction != "trigger" {
		return
	}
	if event.Payload == nil {
		sl.ReportError(event.Payload, "Payload", "Payload", "required", "")
		return
	}
	if event.Payload.Severity == "" {
		sl.ReportError(event.Payload.Severity, "Payload.Severity", "Severity", "required", "")
	}
	if event.Payload.Summary == "" {
		sl.ReportError(event.Payload.Summary, "Payload.Summary", "Summary", "required", "")
	}
	if event.Payload.Source == "" {
		sl.ReportError(event.Payload.Source, "Payload.Source", "Source", "required", "")
	}
}

// ValidateV2 validates a strict PD events v2 payload (§6) and returns its
// routing key.
func ValidateV2(event record.Map) (routingKeyOut string, err error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("invalid PD events v2 payload: %w", err)
	}

	var env v2Event
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("invalid PD events v2 payload: %w", err)
	}

	if err := validate.Struct(env); err != nil {
		return "", fmt.Errorf("invalid PD events v2 payload: %w", err)
	}

	return env.RoutingKey, nil
}

// ValidateKeyedPayload validates a v1/x-ere style payload, where the routing
// key arrives in the URL path rather than the body: any non-empty JSON body
// is accepted, gated only on the key itself matching an integration-key
// pattern (§6).
func ValidateKeyedPayload(key string, body record.Map) error {
	if err := validate.Var(key, "pdroutingkey"); err != nil {
		return fmt.Errorf("invalid routing key")
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	return nil
}
