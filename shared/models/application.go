package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationStatus is the closed set of application states
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

// PENDING is the only state with outgoing edges
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending: {
		ApplicationStatusApproved,
		ApplicationStatusRejected,
		ApplicationStatusWithdrawn,
	},
}

// ParseApplicationStatus validates a status string
func ParseApplicationStatus(value string) (ApplicationStatus, error) {
	s := ApplicationStatus(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", value)
	}
	return s, nil
}

func (s ApplicationStatus) String() string {
	return string(s)
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusWithdrawn:
		return true
	}
	return false
}

func (s ApplicationStatus) IsTerminal() bool {
	return len(applicationTransitions[s]) == 0
}

// CanTransitionTo checks the application status table
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsDecision reports whether a manager may set this status
func (s ApplicationStatus) IsDecision() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Application represents a tenant's request to rent a property
type Application struct {
	ID              uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID      uuid.UUID         `json:"property_id" gorm:"type:uuid;not null;index:idx_applications_property_tenant"`
	TenantCognitoID string            `json:"tenant_cognito_id" gorm:"type:varchar(255);not null;index:idx_applications_property_tenant"`
	Name            string            `json:"name" gorm:"not null"`
	Email           string            `json:"email" gorm:"not null"`
	PhoneNumber     string            `json:"phone_number" gorm:"not null"`
	Message         string            `json:"message" gorm:"type:text"`
	Status          ApplicationStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ApplicationDate time.Time         `json:"application_date" gorm:"not null"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Tenant   *Tenant   `json:"tenant,omitempty" gorm:"foreignKey:TenantCognitoID;references:CognitoID"`
}

func (Application) TableName() string {
	return "applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.ApplicationDate.IsZero() {
		a.ApplicationDate = time.Now().UTC()
	}
	return nil
}
