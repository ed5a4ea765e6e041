package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/model"
	"github.com/ATR1285/Procure/pkg/store/postgres"
)

type EventHandler struct {
	db     *postgres.Store
	logger *zap.Logger
}

func NewEventHandler(db *postgres.Store, logger *zap.Logger) *EventHandler {
	return &EventHandler{db: db, logger: logger}
}

type simulateRequest struct {
	InvoiceNumber string  `json:"invoiceNumber" binding:"required"`
	VendorName    string  `json:"vendorName" binding:"required"`
	InvoiceAmount float64 `json:"invoiceAmount"`
	RawText       string  `json:"raw_text"`
}

type eventResponse struct {
	ID          string      `json:"id"`
	EventType   string      `json:"event_type"`
	Status      string      `json:"status"`
	Payload     model.JSONB `json:"payload"`
	CreatedAt   string      `json:"created_at"`
	ProcessedAt *string     `json:"processed_at,omitempty"`
}

// Simulate enqueues an INVOICE_RECEIVED event as if a document had just
// arrived. The worker picks it up on its next cycle; nothing is matched
// inline.
func (h *EventHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	payload := model.InvoicePayload{
		InvoiceNumber: req.InvoiceNumber,
		VendorName:    req.VendorName,
		InvoiceAmount: req.InvoiceAmount,
		RawText:       req.RawText,
		Source:        "Simulation",
	}

	event, err := model.NewEvent(model.EventInvoiceReceived, payload)
	if err != nil {
		h.logger.Error("failed to build event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue event"})
		return
	}

	repo := postgres.NewEventRepository(h.db.DB())
	if err := repo.Enqueue(c.Request.Context(), event); err != nil {
		h.logger.Error("failed to enqueue event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_id": event.ID.String(),
		"status":   string(event.Status),
	})
}

func (h *EventHandler) List(c *gin.Context) {
	var status *model.EventStatus
	if statusValue := strings.TrimSpace(c.Query("status")); statusValue != "" {
		parsed := model.EventStatus(statusValue)
		if !isValidEventStatus(parsed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &parsed
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	repo := postgres.NewEventRepository(h.db.DB())
	events, err := repo.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	response := make([]eventResponse, 0, len(events))
	for i := range events {
		response = append(response, mapEvent(&events[i]))
	}

	c.JSON(http.StatusOK, response)
}

func mapEvent(event *model.Event) eventResponse {
	return eventResponse{
		ID:          event.ID.String(),
		EventType:   string(event.EventType),
		Status:      string(event.Status),
		Payload:     event.Payload,
		CreatedAt:   event.CreatedAt.UTC().Format(timeRFC3339Nano),
		ProcessedAt: formatTime(event.ProcessedAt),
	}
}

func isValidEventStatus(status model.EventStatus) bool {
	switch status {
	case model.EventPending, model.EventProcessing, model.EventDone, model.EventFailed:
		return true
	default:
		return false
	}
}
