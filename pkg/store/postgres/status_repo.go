package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ATR1285/Procure/pkg/model"
)

type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Heartbeat upserts the service's status row with the current time.
func (r *StatusRepository) Heartbeat(ctx context.Context, serviceName, status string) error {
	row := &model.ServiceStatus{
		ServiceName:   serviceName,
		Status:        status,
		LastHeartbeat: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "last_heartbeat"}),
		}).
		Create(row).Error
}

func (r *StatusRepository) Get(ctx context.Context, serviceName string) (*model.ServiceStatus, error) {
	var row model.ServiceStatus
	err := r.db.WithContext(ctx).First(&row, "service_name = ?", serviceName).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
