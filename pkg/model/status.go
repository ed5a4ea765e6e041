package model

import "time"

// ServiceStatus tracks background service heartbeats. The worker upserts
// its row at the top of every cycle.
type ServiceStatus struct {
	ID            uint   `gorm:"primary_key"`
	ServiceName   string `gorm:"not null;uniqueIndex"`
	Status        string `gorm:"type:varchar(20)"` // healthy, degraded, offline
	LastHeartbeat time.Time
	Version       string
}

func (ServiceStatus) TableName() string {
	return "service_status"
}
