// Package routingkey validates PagerDuty integration keys and webhook URLs
// (§6): the same two checks are needed by the ingress adapter (C12, on the
// way in) and the plugin chain (C8, on a filter's rewritten routing key).
package routingkey

import (
	"net/url"
	"regexp"
)

var (
	classicPattern       = regexp.MustCompile(`(?i)^[0-9a-f]{32}$`)
	routingEnginePattern = regexp.MustCompile(`(?i)^R[0-9A-Z]{31}$`)
)

// Valid reports whether key matches the classic or routing-engine
// integration-key pattern (§6).
func Valid(key string) bool {
	return classicPattern.MatchString(key) || routingEnginePattern.MatchString(key)
}

// ValidURL reports whether raw is a well-formed absolute URL, as required
// of a plugin-supplied webhook URL (§4.8) or WEBHOOK_DEST_URL (§6).
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
