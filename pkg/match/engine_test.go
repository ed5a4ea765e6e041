package match

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/ai"
	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/model"
)

type fakeInvoiceStore struct {
	byNumber map[string]*model.Invoice
	saves    int
	saveErr  error
}

func newFakeInvoiceStore() *fakeInvoiceStore {
	return &fakeInvoiceStore{byNumber: map[string]*model.Invoice{}}
}

func (s *fakeInvoiceStore) FindOrCreate(_ context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	if existing, ok := s.byNumber[invoice.InvoiceNumber]; ok {
		return existing, nil
	}
	invoice.ID = uuid.New()
	s.byNumber[invoice.InvoiceNumber] = invoice
	return invoice, nil
}

func (s *fakeInvoiceStore) Save(_ context.Context, invoice *model.Invoice) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.byNumber[invoice.InvoiceNumber] = invoice
	return nil
}

type stubERP struct {
	aliasFn      func(rawName string) (*erp.AliasHit, error)
	vendors      []model.Vendor
	vendorsErr   error
	posFn        func(vendorID *uint) ([]model.PurchaseOrder, error)
	receiptsFn   func(poID uint) ([]model.GoodsReceipt, error)
	vendorByIDFn func(id uint) (*model.Vendor, error)
	storeFn      func(alias string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error)
	storedCalls  int
}

func (s *stubERP) GetVendors(context.Context) ([]model.Vendor, error) {
	return s.vendors, s.vendorsErr
}

func (s *stubERP) GetVendorByID(_ context.Context, id uint) (*model.Vendor, error) {
	if s.vendorByIDFn != nil {
		return s.vendorByIDFn(id)
	}
	return nil, nil
}

func (s *stubERP) GetVendorAlias(_ context.Context, rawName string) (*erp.AliasHit, error) {
	if s.aliasFn != nil {
		return s.aliasFn(rawName)
	}
	return nil, nil
}

func (s *stubERP) StoreVendorAlias(_ context.Context, alias string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error) {
	s.storedCalls++
	if s.storeFn != nil {
		return s.storeFn(alias, vendorID, fromInvoiceID)
	}
	return true, nil
}

func (s *stubERP) GetPurchaseOrders(_ context.Context, vendorID *uint) ([]model.PurchaseOrder, error) {
	if s.posFn != nil {
		return s.posFn(vendorID)
	}
	return nil, nil
}

func (s *stubERP) GetGoodsReceipts(_ context.Context, poID uint) ([]model.GoodsReceipt, error) {
	if s.receiptsFn != nil {
		return s.receiptsFn(poID)
	}
	return nil, nil
}

func (s *stubERP) TestConnection(context.Context) erp.ConnStatus {
	return erp.ConnStatus{OK: true}
}

type analyzerFunc func(ctx context.Context, req ai.Request) (*ai.Result, error)

func (f analyzerFunc) AnalyzeInvoice(ctx context.Context, req ai.Request) (*ai.Result, error) {
	return f(ctx, req)
}

func hasAuditEntry(invoice *model.Invoice, entryType string) bool {
	for _, entry := range invoice.AuditTrail {
		if entry.Type == entryType {
			return true
		}
	}
	return false
}

func TestAliasFastPathSkipsAI(t *testing.T) {
	store := newFakeInvoiceStore()
	erpStub := &stubERP{
		aliasFn: func(string) (*erp.AliasHit, error) {
			return &erp.AliasHit{VendorID: 7, Confidence: 96}, nil
		},
	}
	analyzer := analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		t.Fatal("analyzer must not be called when an alias resolves")
		return nil, nil
	})

	engine := NewEngine(store, erpStub, analyzer, nil, nil, zap.NewNop())
	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-100",
		VendorName:    "acme gmbh",
		InvoiceAmount: 250.00,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invoice := store.byNumber["INV-100"]
	if invoice.Status != model.InvoicePendingReview {
		t.Fatalf("expected PENDING_REVIEW, got %s", invoice.Status)
	}
	if invoice.ConfidenceScore == nil || *invoice.ConfidenceScore != 96 {
		t.Fatalf("expected alias confidence 96, got %v", invoice.ConfidenceScore)
	}
	if invoice.VendorID == nil || *invoice.VendorID != 7 {
		t.Fatalf("expected vendor 7, got %v", invoice.VendorID)
	}
	if !hasAuditEntry(invoice, "alias_hit") {
		t.Fatalf("expected alias_hit audit entry, got %+v", invoice.AuditTrail)
	}
}

func TestAIUnavailableDegradesConfidence(t *testing.T) {
	store := newFakeInvoiceStore()
	erpStub := &stubERP{vendors: []model.Vendor{{ID: 1, Name: "ACME Corp"}}}
	analyzer := analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		return nil, errors.New("connection refused")
	})

	engine := NewEngine(store, erpStub, analyzer, nil, nil, zap.NewNop())
	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-101",
		VendorName:    "Unknown Vendor Ltd",
		InvoiceAmount: 99.00,
	})
	if err != nil {
		t.Fatalf("an AI outage must not fail the match: %v", err)
	}

	invoice := store.byNumber["INV-101"]
	if invoice.Status != model.InvoicePendingReview {
		t.Fatalf("expected PENDING_REVIEW, got %s", invoice.Status)
	}
	if invoice.ConfidenceScore == nil || *invoice.ConfidenceScore != 40 {
		t.Fatalf("expected degraded confidence 40, got %v", invoice.ConfidenceScore)
	}
	if invoice.VendorID != nil {
		t.Fatalf("expected no vendor identified, got %v", *invoice.VendorID)
	}
	if !strings.Contains(invoice.Reasoning, "AI service unavailable") {
		t.Fatalf("reasoning should mention the outage, got %q", invoice.Reasoning)
	}
	if !hasAuditEntry(invoice, "ai_unavailable") {
		t.Fatalf("expected ai_unavailable audit entry, got %+v", invoice.AuditTrail)
	}
}

func TestThreeWayEvidenceRaisesScore(t *testing.T) {
	store := newFakeInvoiceStore()
	vendorID := uint(3)
	erpStub := &stubERP{
		vendors: []model.Vendor{{ID: 3, Name: "Globex Corporation"}},
		posFn: func(id *uint) ([]model.PurchaseOrder, error) {
			if id == nil || *id != vendorID {
				t.Fatalf("expected PO lookup for vendor 3, got %v", id)
			}
			return []model.PurchaseOrder{{ID: 11, PONumber: "PO-500", VendorID: 3, TotalAmount: 500.00}}, nil
		},
		receiptsFn: func(poID uint) ([]model.GoodsReceipt, error) {
			if poID != 11 {
				t.Fatalf("expected receipt lookup for PO 11, got %d", poID)
			}
			return []model.GoodsReceipt{{ID: 1, PurchaseOrderID: 11, ReceivedQuantity: 10}}, nil
		},
	}
	analyzer := analyzerFunc(func(_ context.Context, req ai.Request) (*ai.Result, error) {
		id := vendorID
		return &ai.Result{
			BestMatchID: &id,
			Confidence:  70,
			Reasoning:   "Partial name match.",
		}, nil
	})

	engine := NewEngine(store, erpStub, analyzer, nil, nil, zap.NewNop())
	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-102",
		VendorName:    "Globex",
		InvoiceAmount: 500.00,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invoice := store.byNumber["INV-102"]
	if invoice.ConfidenceScore == nil || *invoice.ConfidenceScore != 95 {
		t.Fatalf("expected full three-way score 95, got %v", invoice.ConfidenceScore)
	}
	if !strings.Contains(invoice.Reasoning, "Three-way match") {
		t.Fatalf("reasoning should mention the three-way result, got %q", invoice.Reasoning)
	}
	for _, entry := range []string{"received", "ai_match", "po_match", "receipt_verified", "ready_for_review"} {
		if !hasAuditEntry(invoice, entry) {
			t.Fatalf("missing %q audit entry in %+v", entry, invoice.AuditTrail)
		}
	}
}

func TestRepeatMatchContinuesSameInvoice(t *testing.T) {
	store := newFakeInvoiceStore()
	erpStub := &stubERP{
		aliasFn: func(string) (*erp.AliasHit, error) {
			return &erp.AliasHit{VendorID: 2, Confidence: 98}, nil
		},
	}
	engine := NewEngine(store, erpStub, analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		return nil, errors.New("unused")
	}), nil, nil, zap.NewNop())

	payload := &model.InvoicePayload{InvoiceNumber: "INV-103", VendorName: "acme", InvoiceAmount: 10}
	if err := engine.ProcessInvoiceMatch(context.Background(), payload); err != nil {
		t.Fatalf("first match failed: %v", err)
	}
	firstID := store.byNumber["INV-103"].ID

	if err := engine.ProcessInvoiceMatch(context.Background(), payload); err != nil {
		t.Fatalf("second match failed: %v", err)
	}
	if len(store.byNumber) != 1 {
		t.Fatalf("expected a single invoice record, got %d", len(store.byNumber))
	}
	if store.byNumber["INV-103"].ID != firstID {
		t.Fatal("second match created a new invoice instead of continuing the first")
	}
}

func TestTerminalInvoiceNotRematched(t *testing.T) {
	store := newFakeInvoiceStore()
	decided := &model.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-104",
		Status:        model.InvoiceApproved,
	}
	store.byNumber["INV-104"] = decided

	engine := NewEngine(store, &stubERP{}, analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		t.Fatal("decided invoices must not be re-analyzed")
		return nil, nil
	}), nil, nil, zap.NewNop())

	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-104",
		VendorName:    "acme",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save for decided invoice, got %d", store.saves)
	}
	if decided.Status != model.InvoiceApproved {
		t.Fatalf("terminal status reverted to %s", decided.Status)
	}
}

func TestExtractionWritesIntoInvoiceLoadedWithoutData(t *testing.T) {
	store := newFakeInvoiceStore()
	// A row persisted before extraction ran scans back with a nil map.
	store.byNumber["INV-106"] = &model.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-106",
		Status:        model.InvoiceProcessing,
		ExtractedData: nil,
	}

	vendorID := uint(4)
	erpStub := &stubERP{vendors: []model.Vendor{{ID: 4, Name: "Initech"}}}
	analyzer := analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		id := vendorID
		return &ai.Result{
			BestMatchID:     &id,
			Confidence:      85,
			Reasoning:       "Name extracted from document text.",
			ExtractedVendor: "Initech LLC",
			ExtractedAmount: 120.00,
		}, nil
	})

	engine := NewEngine(store, erpStub, analyzer, nil, nil, zap.NewNop())
	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-106",
		VendorName:    "initech",
		RawText:       "Invoice from Initech LLC, total 120.00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invoice := store.byNumber["INV-106"]
	if got, _ := invoice.ExtractedData["raw_vendor"].(string); got != "Initech LLC" {
		t.Fatalf("expected extracted vendor stored, got %q", got)
	}
	if invoice.TotalAmount != 120.00 {
		t.Fatalf("expected extracted amount 120.00, got %v", invoice.TotalAmount)
	}
}

func TestERPOutageKeepsIdentificationScore(t *testing.T) {
	store := newFakeInvoiceStore()
	erpStub := &stubERP{
		aliasFn: func(string) (*erp.AliasHit, error) {
			return &erp.AliasHit{VendorID: 5, Confidence: 97}, nil
		},
		posFn: func(*uint) ([]model.PurchaseOrder, error) {
			return nil, errors.New("erp timeout")
		},
	}
	engine := NewEngine(store, erpStub, analyzerFunc(func(context.Context, ai.Request) (*ai.Result, error) {
		return nil, errors.New("unused")
	}), nil, nil, zap.NewNop())

	err := engine.ProcessInvoiceMatch(context.Background(), &model.InvoicePayload{
		InvoiceNumber: "INV-105",
		VendorName:    "acme",
		InvoiceAmount: 75.00,
	})
	if err != nil {
		t.Fatalf("an ERP outage must not fail the match: %v", err)
	}

	invoice := store.byNumber["INV-105"]
	if invoice.ConfidenceScore == nil || *invoice.ConfidenceScore != 97 {
		t.Fatalf("expected alias score kept at 97, got %v", invoice.ConfidenceScore)
	}
	if !hasAuditEntry(invoice, "evidence_unavailable") {
		t.Fatalf("expected evidence_unavailable audit entry, got %+v", invoice.AuditTrail)
	}
}
