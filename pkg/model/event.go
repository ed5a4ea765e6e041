package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInvoiceReceived EventType = "INVOICE_RECEIVED"
	EventStockAlert      EventType = "STOCK_ALERT"
	EventAgentError      EventType = "AGENT_ERROR"
)

type EventStatus string

const (
	EventPending    EventStatus = "PENDING"
	EventProcessing EventStatus = "PROCESSING"
	EventDone       EventStatus = "DONE"
	EventFailed     EventStatus = "FAILED"
)

// Event is one unit of asynchronous work. Rows are claimed by flipping
// status PENDING -> PROCESSING inside a single transaction; the payload
// is immutable once created.
type Event struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType   EventType   `gorm:"type:varchar(50);not null;index"`
	Payload     JSONB       `gorm:"type:jsonb;not null"`
	Status      EventStatus `gorm:"type:varchar(20);default:'PENDING';index"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;not null"`
	ProcessedAt *time.Time
}

func (Event) TableName() string {
	return "events"
}

// InvoicePayload is the schema of INVOICE_RECEIVED events. Field names
// match the wire format used by all ingestion producers.
type InvoicePayload struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	VendorName    string  `json:"vendorName"`
	InvoiceAmount float64 `json:"invoiceAmount,omitempty"`
	RawText       string  `json:"raw_text,omitempty"`
	Source        string  `json:"source,omitempty"`
	EmailSubject  string  `json:"email_subject,omitempty"`
	EmailFrom     string  `json:"email_from,omitempty"`
}

type StockAlertPayload struct {
	ItemID          uint    `json:"item_id"`
	ItemName        string  `json:"item_name"`
	CurrentStock    int     `json:"current_stock"`
	Threshold       int     `json:"threshold"`
	ReorderQuantity int     `json:"reorder_quantity"`
	SKU             string  `json:"sku,omitempty"`
	UnitPrice       float64 `json:"unit_price,omitempty"`
}

type AgentErrorPayload struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	doc, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   doc,
		Status:    EventPending,
	}, nil
}

func encodePayload(payload interface{}) (JSONB, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	var doc JSONB
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return doc, nil
}

// DecodeInvoicePayload validates the payload of an INVOICE_RECEIVED event.
// A missing invoice number or vendor name is a data inconsistency, not a
// transient failure: the caller marks the event FAILED.
func DecodeInvoicePayload(e *Event) (*InvoicePayload, error) {
	if e.EventType != EventInvoiceReceived {
		return nil, fmt.Errorf("event %s is %s, not %s", e.ID, e.EventType, EventInvoiceReceived)
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode invoice payload: %w", err)
	}
	var payload InvoicePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode invoice payload: %w", err)
	}
	if payload.InvoiceNumber == "" {
		return nil, fmt.Errorf("event %s payload has no invoiceNumber", e.ID)
	}
	if payload.VendorName == "" {
		return nil, fmt.Errorf("event %s payload has no vendorName", e.ID)
	}
	return &payload, nil
}
