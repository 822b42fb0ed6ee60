package dispatch

import (
	"fmt"
	"strings"
)

// eventEndpoint resolves the egress URL family for a destination type
// (§4.9, §6): v2 goes to the generic enqueue endpoint, v1/cet/raw and
// x-ere/routing/ger are routing-key-scoped.
func eventEndpoint(baseURL, routingKey, destinationType string) (string, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	switch strings.ToLower(destinationType) {
	case "v2":
		return baseURL + "/v2/enqueue", nil
	case "v1", "cet", "raw":
		return fmt.Sprintf("%s/integration/%s/enqueue", baseURL, routingKey), nil
	case "x-ere", "routing", "ger":
		return fmt.Sprintf("%s/x-ere/%s", baseURL, routingKey), nil
	default:
		return "", fmt.Errorf("dispatch: unknown destination type %q", destinationType)
	}
}
