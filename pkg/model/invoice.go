package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceProcessing    InvoiceStatus = "PROCESSING"
	InvoicePendingReview InvoiceStatus = "PENDING_REVIEW"
	InvoiceApproved      InvoiceStatus = "APPROVED"
	InvoiceRejected      InvoiceStatus = "REJECTED"
)

// AuditEntry is one timestamped line in an invoice's narrative audit
// trail. The trail is append-only: entries are never rewritten.
type AuditEntry struct {
	Type    string `json:"t"`
	Message string `json:"m,omitempty"`
	Score   *int   `json:"score,omitempty"`
	Note    string `json:"note,omitempty"`
	At      string `json:"at"`
}

type AuditTrail []AuditEntry

func (a AuditTrail) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(AuditTrail{})
	}
	return json.Marshal(a)
}

func (a *AuditTrail) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan AuditTrail: %v", value)
	}
	return json.Unmarshal(bytes, a)
}

func (AuditTrail) GormDataType() string {
	return "jsonb"
}

// Invoice is a procurement document under reconciliation. The invoice
// number is the natural key: the first record created for a number wins
// and later match attempts continue it.
type Invoice struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InvoiceNumber   string    `gorm:"not null;uniqueIndex"`
	VendorID        *uint     `gorm:"index"`
	TotalAmount     float64
	Currency        string        `gorm:"default:'USD'"`
	Status          InvoiceStatus `gorm:"type:varchar(20);default:'PROCESSING';index"`
	ConfidenceScore *int
	Reasoning       string     `gorm:"type:text"`
	ExtractedData   JSONB      `gorm:"type:jsonb;default:'{}'"`
	AuditTrail      AuditTrail `gorm:"type:jsonb;default:'[]'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Invoice) TableName() string {
	return "invoices"
}

// Terminal reports whether the invoice has reached a human decision.
// APPROVED and REJECTED never revert.
func (i *Invoice) Terminal() bool {
	return i.Status == InvoiceApproved || i.Status == InvoiceRejected
}

func (i *Invoice) AppendAudit(entry AuditEntry) {
	if entry.At == "" {
		entry.At = time.Now().UTC().Format(time.RFC3339)
	}
	i.AuditTrail = append(i.AuditTrail, entry)
}

// RawVendor returns the raw vendor string captured at ingestion time,
// used by the alias learner on approval.
func (i *Invoice) RawVendor() string {
	if i.ExtractedData == nil {
		return ""
	}
	raw, _ := i.ExtractedData["raw_vendor"].(string)
	return raw
}
