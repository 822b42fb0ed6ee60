package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdaltagent/pdgateway/internal/application/ingress"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// EventSender is the subset of the dispatcher the ingress adapter needs.
type EventSender interface {
	SendEvent(ctx context.Context, routingKey string, payload record.Map, baseURL, destinationType string) error
}

// IngressHandlers implements the HTTP ingress adapter (C12): the three
// event-submission routes distinguished by integration type.
type IngressHandlers struct {
	sender  EventSender
	scrub   *piiScrubber
	baseURL string
	log     *logger.Logger
}

// NewIngressHandlers builds IngressHandlers. pii may be empty to disable
// scrubbing.
func NewIngressHandlers(sender EventSender, baseURL, piiFilter string, log *logger.Logger) (*IngressHandlers, error) {
	scrub, err := newPIIScrubber(piiFilter)
	if err != nil {
		return nil, err
	}
	return &IngressHandlers{sender: sender, scrub: scrub, baseURL: baseURL, log: log}, nil
}

// HandleV1Enqueue handles POST /integration/:key/enqueue.
func (h *IngressHandlers) HandleV1Enqueue(c *gin.Context) {
	h.handleKeyedEnqueue(c, "v1")
}

// HandleRoutingEnqueue handles POST /x-ere/:key.
func (h *IngressHandlers) HandleRoutingEnqueue(c *gin.Context) {
	h.handleKeyedEnqueue(c, "x-ere")
}

func (h *IngressHandlers) handleKeyedEnqueue(c *gin.Context, destinationType string) {
	key := c.Param("key")

	var body record.Map
	_ = c.ShouldBindJSON(&body)

	if err := ingress.ValidateKeyedPayload(key, body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	scrubbed, err := h.scrub.Scrub(body)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "ingress: pii scrub failed", "error", err)
		respondError(c, http.StatusBadRequest, "payload rejected by scrub filter")
		return
	}

	if err := h.sender.SendEvent(c.Request.Context(), key, scrubbed, h.baseURL, destinationType); err != nil {
		h.log.ErrorContext(c.Request.Context(), "ingress: enqueue failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to enqueue event")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}

// HandleV2Enqueue handles POST /v2/enqueue.
func (h *IngressHandlers) HandleV2Enqueue(c *gin.Context) {
	var body record.Map
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		respondError(c, http.StatusBadRequest, "Invalid PD events v2 payload")
		return
	}

	routingKey, err := ingress.ValidateV2(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	scrubbed, err := h.scrub.Scrub(body)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "ingress: pii scrub failed", "error", err)
		respondError(c, http.StatusBadRequest, "payload rejected by scrub filter")
		return
	}

	if err := h.sender.SendEvent(c.Request.Context(), routingKey, scrubbed, h.baseURL, "v2"); err != nil {
		h.log.ErrorContext(c.Request.Context(), "ingress: enqueue failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to enqueue event")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message enqueued"})
}
