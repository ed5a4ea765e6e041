package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ATR1285/Procure/pkg/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Enqueue(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ClaimPending atomically flips every PENDING event to PROCESSING and
// returns the claimed batch. The select and the status write happen in
// one transaction with row locks, so two concurrent workers never claim
// the same event; SKIP LOCKED keeps them from blocking each other.
func (r *EventRepository) ClaimPending(ctx context.Context) ([]model.Event, error) {
	var claimed []model.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.EventPending).
			Order("created_at ASC").
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].ID)
		}
		if err := tx.Model(&model.Event{}).
			Where("id IN ?", ids).
			Update("status", model.EventProcessing).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = model.EventProcessing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks an event DONE. A no-op if the event already reached a
// terminal status.
func (r *EventRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return r.terminate(ctx, id, model.EventDone)
}

// Fail marks an event FAILED. Idempotent like Complete.
func (r *EventRepository) Fail(ctx context.Context, id uuid.UUID) error {
	return r.terminate(ctx, id, model.EventFailed)
}

func (r *EventRepository) terminate(ctx context.Context, id uuid.UUID, status model.EventStatus) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ? AND status NOT IN ?", id, []model.EventStatus{model.EventDone, model.EventFailed}).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": &now,
		}).Error
}

func (r *EventRepository) List(ctx context.Context, status *model.EventStatus, limit, offset int) ([]model.Event, error) {
	var events []model.Event
	query := r.db.WithContext(ctx).Model(&model.Event{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}
