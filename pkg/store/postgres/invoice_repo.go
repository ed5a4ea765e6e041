package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ATR1285/Procure/pkg/model"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindOrCreate returns the invoice for the given number, creating it if
// none exists. First-seen wins: when two match attempts race on the same
// invoice number, the unique index decides and both callers continue the
// surviving record.
func (r *InvoiceRepository) FindOrCreate(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	var existing model.Invoice
	err := r.db.WithContext(ctx).
		Where("invoice_number = ?", invoice.InvoiceNumber).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_number"}},
			DoNothing: true,
		}).
		Create(invoice).Error; err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("invoice_number = ?", invoice.InvoiceNumber).
		First(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("invoice %s vanished after create: %w", invoice.InvoiceNumber, err)
	}
	return &existing, nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "invoice_number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Save writes the full mutable state of an invoice back. The audit trail
// is replaced with the in-memory slice, which callers only ever append to.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]interface{}{
			"vendor_id":        invoice.VendorID,
			"total_amount":     invoice.TotalAmount,
			"status":           invoice.Status,
			"confidence_score": invoice.ConfidenceScore,
			"reasoning":        invoice.Reasoning,
			"extracted_data":   invoice.ExtractedData,
			"audit_trail":      invoice.AuditTrail,
		}).Error
}

var ErrInvoiceTerminal = errors.New("invoice already approved or rejected")

// SetDecision moves an invoice to APPROVED or REJECTED. Terminal states
// never revert: a decision on an already-decided invoice is refused.
func (r *InvoiceRepository) SetDecision(ctx context.Context, id uuid.UUID, status model.InvoiceStatus, trail model.AuditTrail) error {
	result := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ? AND status NOT IN ?", id,
			[]model.InvoiceStatus{model.InvoiceApproved, model.InvoiceRejected}).
		Updates(map[string]interface{}{
			"status":      status,
			"audit_trail": trail,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceTerminal
	}
	return nil
}

func (r *InvoiceRepository) List(ctx context.Context, status *model.InvoiceStatus, limit, offset int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Invoice{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	return invoices, total, err
}
