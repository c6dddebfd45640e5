package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeliveryStatus tracks redelivery of a lifecycle event to the webhook
type DeliveryStatus string

const (
	DeliveryStatusPending           DeliveryStatus = "pending"
	DeliveryStatusResolved          DeliveryStatus = "resolved"
	DeliveryStatusPermanentlyFailed DeliveryStatus = "permanently_failed"
)

// FailedDelivery represents a lifecycle event the webhook did not accept
type FailedDelivery struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventID      string         `json:"event_id" gorm:"not null;index"`
	EventType    string         `json:"event_type" gorm:"not null"`
	PropertyID   string         `json:"property_id" gorm:"index"`
	Payload      datatypes.JSON `json:"payload" gorm:"not null"`
	ErrorMessage string         `json:"error_message" gorm:"type:text;not null"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	Status       DeliveryStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	NextRetryAt  *time.Time     `json:"next_retry_at,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

func (FailedDelivery) TableName() string {
	return "failed_deliveries"
}

func (d *FailedDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
