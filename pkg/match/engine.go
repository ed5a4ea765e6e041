package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/ai"
	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/metrics"
	"github.com/ATR1285/Procure/pkg/model"
)

// Confidence recorded when the AI capability is unreachable and no alias
// exists: the match is degraded, never fatal.
const degradedConfidence = 40

// InvoiceStore is the persistence the engine needs: find-or-create by
// invoice number and a full write-back.
type InvoiceStore interface {
	FindOrCreate(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error)
	Save(ctx context.Context, invoice *model.Invoice) error
}

// Publisher fans decision outcomes out to interactive collaborators.
type Publisher interface {
	InvoiceUpdated(ctx context.Context, invoice *model.Invoice)
}

// Engine runs one invoice-match decision: learned alias first, AI
// fallback second, then three-way purchase order and receipt evidence.
// The engine never approves anything itself; every invoice it touches
// ends in PENDING_REVIEW for a human decision.
type Engine struct {
	invoices InvoiceStore
	erp      erp.Client
	analyzer ai.Analyzer
	policy   POMatchPolicy
	pub      Publisher
	logger   *zap.Logger
}

func NewEngine(invoices InvoiceStore, erpClient erp.Client, analyzer ai.Analyzer, policy POMatchPolicy, pub Publisher, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = AmountFirstFallbackPolicy{}
	}
	return &Engine{
		invoices: invoices,
		erp:      erpClient,
		analyzer: analyzer,
		policy:   policy,
		pub:      pub,
		logger:   logger,
	}
}

// ProcessInvoiceMatch computes and persists one match decision. Calling
// it twice with the same invoice number continues the same record. Only
// storage failures return an error; AI or ERP outages degrade the score
// instead.
func (e *Engine) ProcessInvoiceMatch(ctx context.Context, payload *model.InvoicePayload) error {
	invoice, err := e.findOrCreateInvoice(ctx, payload)
	if err != nil {
		return err
	}
	if invoice.Terminal() {
		e.logger.Info("invoice already decided, skipping re-match",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("status", string(invoice.Status)),
		)
		return nil
	}

	score, reasoning, vendorID := e.identifyVendor(ctx, invoice, payload)

	score, reasoning = e.gatherEvidence(ctx, invoice, vendorID, score, reasoning)

	invoice.Status = model.InvoicePendingReview
	invoice.ConfidenceScore = &score
	invoice.Reasoning = reasoning
	invoice.VendorID = vendorID
	invoice.AppendAudit(model.AuditEntry{Type: "match_attempt", Score: &score, Note: reasoning})
	invoice.AppendAudit(model.AuditEntry{
		Type:    "ready_for_review",
		Message: fmt.Sprintf("Match confidence %d%%. Queued for reviewer decision.", score),
	})

	if err := e.invoices.Save(ctx, invoice); err != nil {
		return fmt.Errorf("persist match outcome for %s: %w", invoice.InvoiceNumber, err)
	}

	metrics.MatchConfidence.Observe(float64(score))
	if e.pub != nil {
		e.pub.InvoiceUpdated(ctx, invoice)
	}

	e.logger.Info("match decision recorded",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int("confidence", score),
		zap.Any("vendor_id", vendorID),
	)
	return nil
}

func (e *Engine) findOrCreateInvoice(ctx context.Context, payload *model.InvoicePayload) (*model.Invoice, error) {
	source := "Simulation"
	if payload.RawText != "" {
		source = "Document"
	}
	fresh := &model.Invoice{
		InvoiceNumber: payload.InvoiceNumber,
		TotalAmount:   payload.InvoiceAmount,
		Status:        model.InvoiceProcessing,
		ExtractedData: model.JSONB{
			"raw_vendor": payload.VendorName,
			"raw_text":   payload.RawText,
		},
	}
	fresh.AppendAudit(model.AuditEntry{Type: "received", Message: "Source: " + source})

	invoice, err := e.invoices.FindOrCreate(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("find or create invoice %s: %w", payload.InvoiceNumber, err)
	}
	return invoice, nil
}

// identifyVendor runs the alias fast path and, only when it misses, the
// AI fallback. Returns the score, reasoning, and the identified vendor.
func (e *Engine) identifyVendor(ctx context.Context, invoice *model.Invoice, payload *model.InvoicePayload) (int, string, *uint) {
	hit, err := e.erp.GetVendorAlias(ctx, payload.VendorName)
	if err != nil {
		e.logger.Warn("alias lookup failed, continuing without it",
			zap.String("raw_vendor", payload.VendorName),
			zap.Error(err),
		)
	}
	if hit != nil {
		metrics.AliasHits.Inc()
		reasoning := fmt.Sprintf("Learned alias %q resolved autonomously (confidence=%d%%).", payload.VendorName, hit.Confidence)
		invoice.AppendAudit(model.AuditEntry{Type: "alias_hit", Message: reasoning})
		vendorID := hit.VendorID
		return hit.Confidence, reasoning, &vendorID
	}

	vendors, err := e.erp.GetVendors(ctx)
	if err != nil {
		e.logger.Warn("vendor list unavailable", zap.Error(err))
	}
	candidates := make([]ai.Candidate, 0, len(vendors))
	for _, v := range vendors {
		candidates = append(candidates, ai.Candidate{ID: v.ID, Name: v.Name})
	}

	result, err := e.analyzer.AnalyzeInvoice(ctx, ai.Request{
		RawVendor:  payload.VendorName,
		Amount:     payload.InvoiceAmount,
		RawText:    payload.RawText,
		Candidates: candidates,
	})
	if err != nil {
		e.logger.Warn("ai analysis failed, using degraded confidence",
			zap.String("raw_vendor", payload.VendorName),
			zap.Error(err),
		)
		reasoning := "AI service unavailable; match could not be verified automatically."
		invoice.AppendAudit(model.AuditEntry{Type: "ai_unavailable", Message: reasoning})
		return degradedConfidence, reasoning, nil
	}

	// The model may extract a cleaner vendor name and amount from raw
	// document text the payload lacked.
	if payload.RawText != "" {
		if result.ExtractedAmount != 0 {
			invoice.TotalAmount = result.ExtractedAmount
		}
		if result.ExtractedVendor != "" {
			// Rows created before any extraction ran scan back with a
			// nil map.
			if invoice.ExtractedData == nil {
				invoice.ExtractedData = model.JSONB{}
			}
			invoice.ExtractedData["raw_vendor"] = result.ExtractedVendor
		}
	}

	invoice.AppendAudit(model.AuditEntry{
		Type:    "ai_match",
		Message: fmt.Sprintf("AI analysis: confidence=%d%%. %s", result.Confidence, result.Reasoning),
	})
	return result.Confidence, result.Reasoning, result.BestMatchID
}

// gatherEvidence fetches purchase order and goods receipt evidence and
// merges the resulting three-way score into the running confidence. The
// three-way score can only raise the confidence, never lower it; an ERP
// outage here leaves the identification score untouched.
func (e *Engine) gatherEvidence(ctx context.Context, invoice *model.Invoice, vendorID *uint, score int, reasoning string) (int, string) {
	if vendorID == nil {
		return score, reasoning
	}

	poMatched := false
	receiptFound := false

	pos, err := e.erp.GetPurchaseOrders(ctx, vendorID)
	if err != nil {
		e.logger.Warn("purchase order lookup failed, keeping identification score",
			zap.Uint("vendor_id", *vendorID),
			zap.Error(err),
		)
		invoice.AppendAudit(model.AuditEntry{Type: "evidence_unavailable", Message: "ERP backend unreachable; PO evidence skipped."})
		return score, reasoning
	}

	if po := e.policy.SelectPO(pos, invoice.TotalAmount); po != nil {
		poMatched = true
		invoice.AppendAudit(model.AuditEntry{Type: "po_match", Message: "Matched PO: " + po.PONumber})

		receipts, err := e.erp.GetGoodsReceipts(ctx, po.ID)
		if err != nil {
			e.logger.Warn("goods receipt lookup failed",
				zap.Uint("po_id", po.ID),
				zap.Error(err),
			)
			invoice.AppendAudit(model.AuditEntry{Type: "evidence_unavailable", Message: "ERP backend unreachable; receipt evidence skipped."})
		} else if len(receipts) > 0 {
			receiptFound = true
			invoice.AppendAudit(model.AuditEntry{
				Type:    "receipt_verified",
				Message: fmt.Sprintf("Receipt confirmed: %d delivery record(s) found", len(receipts)),
			})
		} else {
			invoice.AppendAudit(model.AuditEntry{Type: "receipt_missing", Message: "No goods receipt found for matched PO"})
		}
	}

	threeWay := ThreeWayScore(true, poMatched, receiptFound)
	if threeWay > score {
		reasoning = fmt.Sprintf("%s | Three-way match: vendor=true, PO=%t, receipt=%t", reasoning, poMatched, receiptFound)
		score = threeWay
	}
	return score, reasoning
}
