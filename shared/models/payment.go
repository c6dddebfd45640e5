package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentType categorises a recorded transaction
type PaymentType string

const (
	PaymentTypeRent              PaymentType = "RENT"
	PaymentTypeSecurityDeposit   PaymentType = "SECURITY_DEPOSIT"
	PaymentTypeApplicationFee    PaymentType = "APPLICATION_FEE"
	PaymentTypeLateFee           PaymentType = "LATE_FEE"
	PaymentTypeMaintenanceCharge PaymentType = "MAINTENANCE_CHARGE"
	PaymentTypeRefund            PaymentType = "REFUND"
)

// ParsePaymentType validates a payment type
func ParsePaymentType(value string) (PaymentType, error) {
	switch PaymentType(value) {
	case PaymentTypeRent, PaymentTypeSecurityDeposit, PaymentTypeApplicationFee,
		PaymentTypeLateFee, PaymentTypeMaintenanceCharge, PaymentTypeRefund:
		return PaymentType(value), nil
	}
	return "", fmt.Errorf("unknown payment type %q", value)
}

// PaymentStatus has no transition table: the ledger accepts any move between states
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus validates a payment status
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	s := PaymentStatus(value)
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return s, nil
	}
	return "", fmt.Errorf("unknown payment status %q", value)
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is a recorded, not processed, financial transaction
type Payment struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantCognitoID string          `json:"tenant_cognito_id" gorm:"type:varchar(255);not null;index"`
	LeaseID         *uuid.UUID      `json:"lease_id,omitempty" gorm:"type:uuid;index"`
	PropertyID      *uuid.UUID      `json:"property_id,omitempty" gorm:"type:uuid;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency        string          `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`
	Type            PaymentType     `json:"type" gorm:"type:varchar(32);not null;index"`
	Status          PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Method          string          `json:"method" gorm:"type:varchar(50);not null"`
	PaymentDate     time.Time       `json:"payment_date" gorm:"not null"`
	ReferenceNumber *string         `json:"reference_number,omitempty"`
	ReceiptNumber   *string         `json:"receipt_number,omitempty"`
	Note            *string         `json:"note,omitempty" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Lease    *Lease    `json:"lease,omitempty" gorm:"foreignKey:LeaseID"`
	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
