package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LeaseStatus is the closed set of lease states
type LeaseStatus string

const (
	LeaseStatusPendingSignature LeaseStatus = "PENDING_SIGNATURE"
	LeaseStatusActive           LeaseStatus = "ACTIVE"
	LeaseStatusTerminated       LeaseStatus = "TERMINATED"
	LeaseStatusCompleted        LeaseStatus = "COMPLETED"
)

// A lease must be activated before it can complete; ended leases never reopen.
var leaseTransitions = map[LeaseStatus][]LeaseStatus{
	LeaseStatusPendingSignature: {LeaseStatusActive, LeaseStatusTerminated},
	LeaseStatusActive:           {LeaseStatusTerminated, LeaseStatusCompleted},
}

// ParseLeaseStatus validates a status string
func ParseLeaseStatus(value string) (LeaseStatus, error) {
	s := LeaseStatus(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown lease status %q", value)
	}
	return s, nil
}

func (s LeaseStatus) String() string {
	return string(s)
}

func (s LeaseStatus) Valid() bool {
	switch s {
	case LeaseStatusPendingSignature, LeaseStatusActive, LeaseStatusTerminated, LeaseStatusCompleted:
		return true
	}
	return false
}

func (s LeaseStatus) IsTerminal() bool {
	return len(leaseTransitions[s]) == 0
}

// CanTransitionTo checks the lease status table
func (s LeaseStatus) CanTransitionTo(next LeaseStatus) bool {
	for _, allowed := range leaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lease represents a binding tenancy agreement. Leases are never deleted.
type Lease struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID        uuid.UUID       `json:"property_id" gorm:"type:uuid;not null;index"`
	TenantCognitoID   string          `json:"tenant_cognito_id" gorm:"type:varchar(255);not null;index"`
	ApplicationID     *uuid.UUID      `json:"application_id,omitempty" gorm:"type:uuid;uniqueIndex"`
	StartDate         time.Time       `json:"start_date" gorm:"type:date;not null"`
	EndDate           time.Time       `json:"end_date" gorm:"type:date;not null"`
	Rent              decimal.Decimal `json:"rent" gorm:"type:numeric(12,2);not null"`
	Deposit           decimal.Decimal `json:"deposit" gorm:"type:numeric(12,2);not null"`
	PaymentDueDay     int             `json:"payment_due_day" gorm:"not null;default:1"`
	AgreementDocument *string         `json:"agreement_document,omitempty"`
	Status            LeaseStatus     `json:"status" gorm:"type:varchar(20);not null;default:'PENDING_SIGNATURE';index"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Property    *Property    `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Tenant      *Tenant      `json:"tenant,omitempty" gorm:"foreignKey:TenantCognitoID;references:CognitoID"`
	Application *Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
}

func (Lease) TableName() string {
	return "leases"
}

func (l *Lease) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Overlaps applies the inclusive-bounds test existing.start <= end && existing.end >= start
func (l *Lease) Overlaps(start, end time.Time) bool {
	return !l.StartDate.After(end) && !l.EndDate.Before(start)
}

// Covers reports whether the lease term includes the given day
func (l *Lease) Covers(day time.Time) bool {
	return l.Overlaps(day, day)
}
