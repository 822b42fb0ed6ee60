package activitypoller

import (
	"encoding/json"
	"strings"

	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/imsclient"
)

// shortIncidentReference trims a full incident object down to the 5-field
// reference shape used inside a reconstructed log entry (§6).
func shortIncidentReference(incident map[string]interface{}) record.Map {
	if incident == nil {
		return nil
	}
	return record.Map{
		"id":        incident["id"],
		"type":      "incident_reference",
		"summary":   incident["summary"],
		"self":      incident["self"],
		"html_url":  incident["html_url"],
	}
}

// longIncident returns a copy of incident with its service sub-object
// replaced by the fully sideloaded service, if one was returned alongside
// the log entry via include[]=services.
func longIncident(ile imsclient.LogEntry, incident map[string]interface{}) record.Map {
	if incident == nil {
		return nil
	}
	out := record.Map{}
	for k, v := range incident {
		out[k] = v
	}

	svcRef, _ := incident["service"].(map[string]interface{})
	if svcRef == nil {
		return out
	}
	svcID, _ := svcRef["id"].(string)
	if svcID == "" {
		return out
	}

	sideloaded, _ := ile["services"].([]interface{})
	for _, s := range sideloaded {
		svc, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		if id, _ := svc["id"].(string); id == svcID {
			out["service"] = svc
			return out
		}
	}
	return out
}

// eventName derives the webhook event name from a log entry's type, e.g.
// "trigger_log_entry" becomes "incident.trigger".
func eventName(ile imsclient.LogEntry) string {
	t, _ := ile["type"].(string)
	head := strings.SplitN(t, "_", 2)[0]
	return "incident." + head
}

// incidentID extracts the owning incident's id, used as the per-incident
// chain key for the send-webhook task. Dedupe is keyed on the log entry's
// own id, not on this value.
func incidentID(ile imsclient.LogEntry) string {
	incident, _ := ile["incident"].(map[string]interface{})
	if incident == nil {
		return ""
	}
	id, _ := incident["id"].(string)
	return id
}

// serviceID extracts the owning incident's service id, used for the
// optional services allow-list filter.
func serviceID(ile imsclient.LogEntry) string {
	incident, _ := ile["incident"].(map[string]interface{})
	if incident == nil {
		return ""
	}
	svc, _ := incident["service"].(map[string]interface{})
	if svc == nil {
		return ""
	}
	id, _ := svc["id"].(string)
	return id
}

// buildWebhookPayload reconstructs the PagerDuty-style webhook payload for a
// single activity log entry (§6). webhookConfigJSON, if non-empty and valid
// JSON, is decoded and embedded under messages[0].webhook.config.
func buildWebhookPayload(ile imsclient.LogEntry, webhookConfigJSON string) record.Map {
	incident, _ := ile["incident"].(map[string]interface{})

	entryCopy := record.Map{}
	for k, v := range ile {
		entryCopy[k] = v
	}
	entryCopy["incident"] = shortIncidentReference(incident)
	delete(entryCopy, "services")

	message := record.Map{
		"event":       eventName(ile),
		"log_entries": []interface{}{entryCopy},
		"incident":    longIncident(ile, incident),
	}

	if webhookConfigJSON != "" {
		var cfg interface{}
		if err := json.Unmarshal([]byte(webhookConfigJSON), &cfg); err == nil {
			message["webhook"] = record.Map{"config": cfg}
		}
	}

	return record.Map{"messages": []interface{}{message}}
}

// allowedByServiceList reports whether svcID passes the optional allow-list.
// An empty allow-list permits everything.
func allowedByServiceList(svcID string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, id := range allowList {
		if id == svcID {
			return true
		}
	}
	return false
}
