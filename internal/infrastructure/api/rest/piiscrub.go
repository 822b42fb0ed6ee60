package rest

import (
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

// piiScrubber applies a jq filter to an inbound event, e.g. to redact
// sensitive fields before the event reaches the dispatcher.
type piiScrubber struct {
	code *gojq.Code
}

// newPIIScrubber compiles filterStr once at startup; an empty filter
// disables scrubbing.
func newPIIScrubber(filterStr string) (*piiScrubber, error) {
	if filterStr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(filterStr)
	if err != nil {
		return nil, fmt.Errorf("pii scrub: parse jq filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("pii scrub: compile jq filter: %w", err)
	}
	return &piiScrubber{code: code}, nil
}

// Scrub runs the compiled filter over event and returns the (possibly
// rewritten) result. A filter producing a non-map value is rejected as a
// misconfiguration rather than silently corrupting the event shape.
func (p *piiScrubber) Scrub(event record.Map) (record.Map, error) {
	if p == nil {
		return event, nil
	}

	iter := p.code.Run(map[string]interface{}(event))
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("pii scrub: filter produced no output")
	}
	if err, ok := v.(error); ok {
		return nil, fmt.Errorf("pii scrub: filter execution error: %w", err)
	}

	out, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("pii scrub: filter must return an object")
	}
	return record.Map(out), nil
}
