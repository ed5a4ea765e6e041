package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// NotificationEvent is an outbox row for external notification senders.
// The worker and the API only ever write rows here; the notification
// relay publishes them to Kafka and marks them published.
type NotificationEvent struct {
	EventID     uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType   string         `gorm:"not null"` // stock_alert, invoice_review_needed
	Payload     JSONB          `gorm:"type:jsonb;not null"`
	Channels    pq.StringArray `gorm:"type:text[]"` // email, sms, whatsapp
	Status      string         `gorm:"not null;default:'pending'"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;not null"`
	PublishedAt *time.Time
}

func (NotificationEvent) TableName() string {
	return "notification_events"
}
