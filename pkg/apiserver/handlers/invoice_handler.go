package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ATR1285/Procure/pkg/auth"
	"github.com/ATR1285/Procure/pkg/eventbus"
	"github.com/ATR1285/Procure/pkg/match"
	"github.com/ATR1285/Procure/pkg/model"
	"github.com/ATR1285/Procure/pkg/store/postgres"
)

type InvoiceHandler struct {
	db      *postgres.Store
	learner *match.Learner
	tokens  *auth.ApprovalTokenManager
	logger  *zap.Logger
	bus     *eventbus.Bus
}

func NewInvoiceHandler(db *postgres.Store, learner *match.Learner, tokens *auth.ApprovalTokenManager, logger *zap.Logger, bus *eventbus.Bus) *InvoiceHandler {
	return &InvoiceHandler{db: db, learner: learner, tokens: tokens, logger: logger, bus: bus}
}

type decisionRequest struct {
	Note string `json:"note"`
}

type tokenDecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

type invoiceResponse struct {
	ID              string  `json:"id"`
	InvoiceNumber   string  `json:"invoice_number"`
	VendorID        *uint   `json:"vendor_id,omitempty"`
	TotalAmount     float64 `json:"total_amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	ConfidenceScore *int    `json:"confidence_score,omitempty"`
	Reasoning       string  `json:"reasoning,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type invoiceDetailResponse struct {
	invoiceResponse
	ExtractedData model.JSONB      `json:"extracted_data"`
	AuditTrail    model.AuditTrail `json:"audit_trail"`
}

func (h *InvoiceHandler) List(c *gin.Context) {
	var status *model.InvoiceStatus
	if statusValue := strings.TrimSpace(c.Query("status")); statusValue != "" {
		parsed := model.InvoiceStatus(statusValue)
		if !isValidInvoiceStatus(parsed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &parsed
	}

	limit := parseLimit(c.Query("limit"), 20)
	offset := parseOffset(c.Query("offset"))

	repo := postgres.NewInvoiceRepository(h.db.DB())
	invoices, total, err := repo.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices"})
		return
	}

	response := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		response = append(response, mapInvoice(&invoices[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"invoices": response,
		"total":    total,
	})
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	repo := postgres.NewInvoiceRepository(h.db.DB())
	invoice, err := repo.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		h.logger.Error("failed to get invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get invoice"})
		return
	}

	detail := invoiceDetailResponse{
		invoiceResponse: mapInvoice(invoice),
		ExtractedData:   invoice.ExtractedData,
		AuditTrail:      invoice.AuditTrail,
	}

	c.JSON(http.StatusOK, detail)
}

func (h *InvoiceHandler) Approve(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	h.decide(c, invoiceID, model.InvoiceApproved, req.Note)
}

func (h *InvoiceHandler) Reject(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	h.decide(c, invoiceID, model.InvoiceRejected, req.Note)
}

// DecideByToken acts on a single invoice through a signed approval link,
// without a dashboard session. The token is minted when the invoice goes
// to review and scopes exactly one invoice.
func (h *InvoiceHandler) DecideByToken(c *gin.Context) {
	claims, err := h.tokens.ValidateApprovalToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired approval token"})
		return
	}

	var req tokenDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var status model.InvoiceStatus
	var scope string
	switch req.Decision {
	case "approve":
		status, scope = model.InvoiceApproved, "approve"
	case "reject":
		status, scope = model.InvoiceRejected, "reject"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approve or reject"})
		return
	}

	if !claims.HasScope(scope) {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not allow " + scope})
		return
	}

	invoiceID, err := uuid.Parse(claims.InvoiceID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid approval token"})
		return
	}

	h.decide(c, invoiceID, status, req.Note)
}

func (h *InvoiceHandler) decide(c *gin.Context, invoiceID uuid.UUID, status model.InvoiceStatus, note string) {
	ctx := c.Request.Context()
	repo := postgres.NewInvoiceRepository(h.db.DB())

	invoice, err := repo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		h.logger.Error("failed to load invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	if invoice.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "invoice already decided", "status": string(invoice.Status)})
		return
	}

	if status == model.InvoiceApproved {
		// An approval confirms the vendor match, so capture the raw
		// name as a learned alias. Learning failures never block the
		// decision itself.
		if _, err := h.learner.LearnIfDivergent(ctx, invoice); err != nil {
			h.logger.Warn("alias learning failed", zap.Error(err), zap.String("invoice_number", invoice.InvoiceNumber))
		}
	}

	entryType := "approved"
	if status == model.InvoiceRejected {
		entryType = "rejected"
	}
	invoice.AppendAudit(model.AuditEntry{Type: entryType, Note: note})

	if err := repo.SetDecision(ctx, invoiceID, status, invoice.AuditTrail); err != nil {
		if errors.Is(err, postgres.ErrInvoiceTerminal) {
			c.JSON(http.StatusConflict, gin.H{"error": "invoice already decided"})
			return
		}
		h.logger.Error("failed to record decision", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record decision"})
		return
	}
	invoice.Status = status

	h.publishInvoiceEvent(c, invoice)

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (h *InvoiceHandler) publishInvoiceEvent(c *gin.Context, invoice *model.Invoice) {
	if h.bus == nil {
		return
	}
	invoiceEvent := eventbus.InvoiceEvent{
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		Confidence:    invoice.ConfidenceScore,
	}
	if event, err := eventbus.NewEvent("invoice_decided", invoiceEvent); err == nil {
		_ = h.bus.Publish(c.Request.Context(), eventbus.ChannelInvoice, event)
	}
}

func mapInvoice(invoice *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:              invoice.ID.String(),
		InvoiceNumber:   invoice.InvoiceNumber,
		VendorID:        invoice.VendorID,
		TotalAmount:     invoice.TotalAmount,
		Currency:        invoice.Currency,
		Status:          string(invoice.Status),
		ConfidenceScore: invoice.ConfidenceScore,
		Reasoning:       invoice.Reasoning,
		CreatedAt:       invoice.CreatedAt.UTC().Format(timeRFC3339Nano),
		UpdatedAt:       invoice.UpdatedAt.UTC().Format(timeRFC3339Nano),
	}
}

func isValidInvoiceStatus(status model.InvoiceStatus) bool {
	switch status {
	case model.InvoiceProcessing, model.InvoicePendingReview, model.InvoiceApproved, model.InvoiceRejected:
		return true
	default:
		return false
	}
}
