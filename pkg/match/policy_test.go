package match

import (
	"testing"

	"github.com/ATR1285/Procure/pkg/model"
)

func TestSelectPOPrefersAmountMatch(t *testing.T) {
	pos := []model.PurchaseOrder{
		{ID: 1, PONumber: "PO-001", TotalAmount: 1200.00},
		{ID: 2, PONumber: "PO-002", TotalAmount: 500.00},
	}

	po := AmountFirstFallbackPolicy{}.SelectPO(pos, 500.00)
	if po == nil || po.PONumber != "PO-002" {
		t.Fatalf("expected PO-002 for exact amount, got %+v", po)
	}

	// Within epsilon still counts as a match.
	po = AmountFirstFallbackPolicy{}.SelectPO(pos, 500.005)
	if po == nil || po.PONumber != "PO-002" {
		t.Fatalf("expected PO-002 within epsilon, got %+v", po)
	}
}

func TestSelectPOFallsBackToFirst(t *testing.T) {
	pos := []model.PurchaseOrder{
		{ID: 1, PONumber: "PO-001", TotalAmount: 1200.00},
		{ID: 2, PONumber: "PO-002", TotalAmount: 800.00},
	}

	po := AmountFirstFallbackPolicy{}.SelectPO(pos, 42.00)
	if po == nil || po.PONumber != "PO-001" {
		t.Fatalf("expected fallback to first PO, got %+v", po)
	}
}

func TestSelectPOIgnoresZeroAmounts(t *testing.T) {
	pos := []model.PurchaseOrder{
		{ID: 1, PONumber: "PO-001", TotalAmount: 0},
		{ID: 2, PONumber: "PO-002", TotalAmount: 10.00},
	}

	// A zero-amount PO never counts as an amount match, even for a
	// zero-amount invoice.
	po := AmountFirstFallbackPolicy{}.SelectPO(pos, 0)
	if po == nil || po.PONumber != "PO-001" {
		t.Fatalf("expected fallback to first PO, got %+v", po)
	}
}

func TestSelectPOEmpty(t *testing.T) {
	if po := (AmountFirstFallbackPolicy{}).SelectPO(nil, 100.00); po != nil {
		t.Fatalf("expected nil for empty PO list, got %+v", po)
	}
}
