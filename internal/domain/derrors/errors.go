// Package derrors collects the sentinel error values shared across the
// gateway's domain and application packages (§7 error taxonomy).
package derrors

import "errors"

var (
	// ErrUnsupportedOperator is returned by the condition evaluator when a
	// parsed AST node carries an operator outside {=, !=, IN, NOT IN, AND, OR}.
	ErrUnsupportedOperator = errors.New("bpql: unsupported operator")

	// ErrInvalidRegex is returned when a regex pattern still fails to
	// compile after the broken-regex autofix has been applied (§4.3), or
	// when a formal-regex pattern, which is never autofixed, fails to compile.
	ErrInvalidRegex = errors.New("bpql: invalid regex pattern")

	// ErrConditionSyntax is returned by the BPQL parser on malformed input.
	ErrConditionSyntax = errors.New("bpql: syntax error")

	// ErrRuleMalformed marks a rule, condition, or regex that could not be
	// parsed; the owning ruleset skips the rule and continues (§7).
	ErrRuleMalformed = errors.New("rule store: malformed rule")

	// ErrPluginBadReturn marks a plugin invocation whose return value does
	// not match the filter_event/filter_webhook contract (§4.8, §7).
	ErrPluginBadReturn = errors.New("plugin chain: invalid return shape")

	// ErrPathNotAMap is also re-exported here for callers that only import
	// derrors. record.Set returns its own *record.ErrPathNotAMap type, which
	// does not wrap this value: errors.Is against it reports false, so match
	// record.Set failures with errors.As on the record type.
	ErrPathNotAMap = errors.New("path accessor: path does not address a map")

	// ErrInvalidPayload marks an ingress validation failure (§6, §7).
	ErrInvalidPayload = errors.New("ingress: invalid payload")

	// ErrInvalidRoutingKey marks a routing key that matches neither the
	// classic nor routing-engine integration-key pattern (§6).
	ErrInvalidRoutingKey = errors.New("ingress: invalid routing key")

	// ErrThrottled marks an HTTP 429 response from an egress endpoint (§7).
	ErrThrottled = errors.New("dispatch: throttled")

	// ErrClientInvalid marks a non-429 4xx response; permanent, not retried.
	ErrClientInvalid = errors.New("dispatch: client error")

	// ErrServerError marks a 5xx response; retried with backoff up to the
	// component-specific cap.
	ErrServerError = errors.New("dispatch: server error")

	// ErrTransport marks a network failure or timeout reaching an egress
	// or polling endpoint; retried with backoff.
	ErrTransport = errors.New("dispatch: transport error")
)
