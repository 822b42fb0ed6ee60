// pdsend - queue a trigger, acknowledge, or resolve event to a pdgateway
// ingress adapter, for smoke-testing rules and routing from the command
// line.
package main

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pdaltagent/pdgateway/internal/domain/routingkey"
)

const usage = `pdsend - queue a trigger, acknowledge, or resolve event

USAGE:
    pdsend -k <routing-key> -t <trigger|acknowledge|resolve> [options]

OPTIONS:
    -k, -routing-key   Event routing key (required)
    -t, -event-type    trigger, acknowledge, or resolve (required)
    -s, -severity      critical, error, warning, or info (trigger only, default critical)
    -o, -source        Source (trigger only, default "pdsend")
    -m, -component     Component (trigger only)
    -g, -group         Group (trigger only)
    -l, -class         Class (trigger only)
    -d, -description   Short description of the problem (required for trigger)
    -i, -incident-key  Dedup/incident key (required for acknowledge/resolve)
    -c, -client        Client name (trigger only)
    -u, -client-url    Client URL (trigger only)
    -f, -field         KEY=VALUE pair added to payload.custom_details; repeatable
    -q, -quiet         Suppress response output
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pdsend:", err)
		os.Exit(1)
	}
}

type fieldList []string

func (f *fieldList) String() string { return strings.Join(*f, ",") }
func (f *fieldList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("pdsend", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var (
		routingKey  string
		eventType   string
		severity    string
		source      string
		component   string
		group       string
		class       string
		description string
		incidentKey string
		client      string
		clientURL   string
		fields      fieldList
		quiet       bool
		baseURL     string
		skipVerify  bool
	)

	fs.StringVar(&routingKey, "k", "", "")
	fs.StringVar(&routingKey, "routing-key", "", "")
	fs.StringVar(&eventType, "t", "", "")
	fs.StringVar(&eventType, "event-type", "", "")
	fs.StringVar(&severity, "s", "critical", "")
	fs.StringVar(&severity, "severity", "critical", "")
	fs.StringVar(&source, "o", "pdsend", "")
	fs.StringVar(&source, "source", "pdsend", "")
	fs.StringVar(&component, "m", "", "")
	fs.StringVar(&component, "component", "", "")
	fs.StringVar(&group, "g", "", "")
	fs.StringVar(&group, "group", "", "")
	fs.StringVar(&class, "l", "", "")
	fs.StringVar(&class, "class", "", "")
	fs.StringVar(&description, "d", "", "")
	fs.StringVar(&description, "description", "", "")
	fs.StringVar(&incidentKey, "i", "", "")
	fs.StringVar(&incidentKey, "incident-key", "", "")
	fs.StringVar(&client, "c", "", "")
	fs.StringVar(&client, "client", "", "")
	fs.StringVar(&clientURL, "u", "", "")
	fs.StringVar(&clientURL, "client-url", "", "")
	fs.Var(&fields, "f", "")
	fs.Var(&fields, "field", "")
	fs.BoolVar(&quiet, "q", false, "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.StringVar(&baseURL, "base-url", envOr("PDSEND_EVENTS_BASE_URL", "https://events.pagerduty.com"), "")
	fs.BoolVar(&skipVerify, "skip-cert-verify", envOr("PDSEND_SKIP_CERT_VERIFY", "") != "" && envOr("PDSEND_SKIP_CERT_VERIFY", "") != "false", "")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if routingKey == "" || !routingkey.Valid(routingKey) {
		return fmt.Errorf("please supply a valid routing key with -k")
	}

	switch eventType {
	case "trigger", "acknowledge", "resolve":
	default:
		return fmt.Errorf("event type must be one of trigger, acknowledge, resolve")
	}

	if eventType == "trigger" {
		if strings.TrimSpace(description) == "" {
			return fmt.Errorf("event type 'trigger' requires -d/-description")
		}
	} else if incidentKey == "" {
		return fmt.Errorf("event type '%s' requires -i/-incident-key", eventType)
	}

	body := map[string]interface{}{
		"routing_key":  routingKey,
		"event_action": eventType,
	}
	if incidentKey != "" {
		body["dedup_key"] = incidentKey
	}

	if eventType == "trigger" {
		customDetails, err := parseFields(fields)
		if err != nil {
			return err
		}
		payload := map[string]interface{}{
			"summary":        description,
			"severity":       severity,
			"custom_details": customDetails,
		}
		if source != "" {
			payload["source"] = source
		}
		if component != "" {
			payload["component"] = component
		}
		if group != "" {
			payload["group"] = group
		}
		if class != "" {
			payload["class"] = class
		}
		body["payload"] = payload
		if client != "" {
			body["client"] = client
		}
		if clientURL != "" {
			body["client_url"] = clientURL
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	if skipVerify {
		httpClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}

	resp, err := httpClient.Post(strings.TrimRight(baseURL, "/")+"/v2/enqueue", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if !quiet {
		fmt.Println(string(respBody))
	}
	return nil
}

func parseFields(fields []string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid -f/-field value %q, expected KEY=VALUE", f)
		}
		out[k] = v
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
