package match

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/model"
)

func approvedInvoice(rawVendor string, vendorID uint) *model.Invoice {
	id := vendorID
	return &model.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-200",
		VendorID:      &id,
		Status:        model.InvoiceApproved,
		ExtractedData: model.JSONB{"raw_vendor": rawVendor},
	}
}

func TestLearnDivergentAlias(t *testing.T) {
	known := map[string]bool{}
	erpStub := &stubERP{
		vendorByIDFn: func(id uint) (*model.Vendor, error) {
			return &model.Vendor{ID: id, Name: "ACME Corporation"}, nil
		},
		storeFn: func(alias string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error) {
			if fromInvoiceID == nil {
				t.Fatal("expected alias provenance to carry the invoice id")
			}
			if known[alias] {
				return false, nil
			}
			known[alias] = true
			return true, nil
		},
	}

	learner := NewLearner(erpStub, zap.NewNop())
	invoice := approvedInvoice("acme corp gmbh", 4)

	stored, err := learner.LearnIfDivergent(context.Background(), invoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Fatal("expected a new alias to be stored")
	}
	if !hasAuditEntry(invoice, "learned") {
		t.Fatalf("expected learned audit entry, got %+v", invoice.AuditTrail)
	}

	// A second approval of the same raw name is a no-op.
	stored, err = learner.LearnIfDivergent(context.Background(), approvedInvoice("acme corp gmbh", 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Fatal("an already-known alias must not be stored twice")
	}
}

func TestNoLearnWhenNamesAgree(t *testing.T) {
	erpStub := &stubERP{
		vendorByIDFn: func(id uint) (*model.Vendor, error) {
			return &model.Vendor{ID: id, Name: "ACME Corporation"}, nil
		},
	}

	learner := NewLearner(erpStub, zap.NewNop())
	stored, err := learner.LearnIfDivergent(context.Background(), approvedInvoice("  acme corporation ", 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Fatal("identical names after normalization must not produce an alias")
	}
	if erpStub.storedCalls != 0 {
		t.Fatalf("expected no StoreVendorAlias call, got %d", erpStub.storedCalls)
	}
}

func TestNoLearnWithoutVendor(t *testing.T) {
	learner := NewLearner(&stubERP{}, zap.NewNop())

	invoice := approvedInvoice("acme", 1)
	invoice.VendorID = nil
	stored, err := learner.LearnIfDivergent(context.Background(), invoice)
	if err != nil || stored {
		t.Fatalf("expected no-op without a matched vendor, got stored=%t err=%v", stored, err)
	}

	invoice = approvedInvoice("", 1)
	stored, err = learner.LearnIfDivergent(context.Background(), invoice)
	if err != nil || stored {
		t.Fatalf("expected no-op without a raw vendor name, got stored=%t err=%v", stored, err)
	}
}

func TestNoLearnWhenVendorGone(t *testing.T) {
	erpStub := &stubERP{
		vendorByIDFn: func(uint) (*model.Vendor, error) { return nil, nil },
	}
	learner := NewLearner(erpStub, zap.NewNop())

	stored, err := learner.LearnIfDivergent(context.Background(), approvedInvoice("acme gmbh", 9))
	if err != nil || stored {
		t.Fatalf("expected no-op for a vanished vendor, got stored=%t err=%v", stored, err)
	}
}
