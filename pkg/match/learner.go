package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/erp"
	"github.com/ATR1285/Procure/pkg/metrics"
	"github.com/ATR1285/Procure/pkg/model"
)

// Learner grows the alias table from human decisions. It is the only
// write path into aliases outside seed data: an alias is stored only
// when a reviewer approved the invoice, so autonomous guesses are never
// reinforced on their own.
type Learner struct {
	erp    erp.Client
	logger *zap.Logger
}

func NewLearner(erpClient erp.Client, logger *zap.Logger) *Learner {
	return &Learner{erp: erpClient, logger: logger}
}

// LearnIfDivergent stores the invoice's raw vendor string as an alias
// for its matched vendor when the two names differ after normalization.
// Returns true when a new alias was stored; an already-known alias is a
// no-op. On success it appends a "learned" entry to the invoice's audit
// trail; persisting the invoice stays with the caller.
func (l *Learner) LearnIfDivergent(ctx context.Context, invoice *model.Invoice) (bool, error) {
	raw := invoice.RawVendor()
	if raw == "" || invoice.VendorID == nil {
		return false, nil
	}

	vendor, err := l.erp.GetVendorByID(ctx, *invoice.VendorID)
	if err != nil {
		return false, fmt.Errorf("learn alias for invoice %s: %w", invoice.InvoiceNumber, err)
	}
	if vendor == nil {
		l.logger.Warn("matched vendor no longer exists, nothing to learn",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Uint("vendor_id", *invoice.VendorID),
		)
		return false, nil
	}

	if normalizeName(raw) == normalizeName(vendor.Name) {
		return false, nil
	}

	stored, err := l.erp.StoreVendorAlias(ctx, raw, vendor.ID, &invoice.ID)
	if err != nil {
		return false, fmt.Errorf("learn alias for invoice %s: %w", invoice.InvoiceNumber, err)
	}
	if !stored {
		l.logger.Debug("alias already known", zap.String("alias", raw))
		return false, nil
	}

	metrics.AliasesLearned.Inc()
	invoice.AppendAudit(model.AuditEntry{
		Type:    "learned",
		Message: fmt.Sprintf("Learned alias %q -> %q for future autonomous matching", raw, vendor.Name),
	})
	l.logger.Info("learned vendor alias",
		zap.String("alias", raw),
		zap.String("canonical", vendor.Name),
		zap.Uint("vendor_id", vendor.ID),
	)
	return true, nil
}
