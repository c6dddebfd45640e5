package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// PaymentInput describes a transaction to record. TenantCognitoID is only consulted when no lease is given.
type PaymentInput struct {
	LeaseID         *uuid.UUID
	PropertyID      *uuid.UUID
	TenantCognitoID string
	Amount          decimal.Decimal
	Currency        string
	Type            models.PaymentType
	Method          string
	PaymentDate     time.Time
	ReferenceNumber *string
	ReceiptNumber   *string
	Note            *string
}

func (in *PaymentInput) validate() error {
	if in.LeaseID == nil && in.PropertyID == nil {
		return apperrors.ValidationFailed("lease_id or property_id is required")
	}
	if !in.Amount.IsPositive() {
		return apperrors.ValidationFailed("amount must be greater than zero")
	}
	if _, err := models.ParsePaymentType(string(in.Type)); err != nil {
		return apperrors.ValidationFailed("%v", err)
	}
	in.Method = strings.TrimSpace(in.Method)
	if in.Method == "" {
		return apperrors.ValidationFailed("payment method is required")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if !currencyCode.MatchString(in.Currency) {
		return apperrors.ValidationFailed("currency must be an ISO-4217 code")
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = time.Now().UTC()
	}
	return nil
}

// PaymentStatusUpdate carries the optional identifiers set alongside a status change
type PaymentStatusUpdate struct {
	ReferenceNumber *string
	ReceiptNumber   *string
}

// PaymentFilter narrows List results
type PaymentFilter struct {
	LeaseID    *uuid.UUID
	PropertyID *uuid.UUID
	Status     models.PaymentStatus
	Type       models.PaymentType
}

// PaymentLedger records payments. It does not process them and never deletes them.
type PaymentLedger struct {
	base
}

func NewPaymentLedger(db *gorm.DB, publisher events.Publisher) *PaymentLedger {
	return &PaymentLedger{base: newBase(db, publisher, "payments")}
}

// Record stores a PENDING payment against a lease, or against a property for an explicit tenant
func (l *PaymentLedger) Record(ctx context.Context, managerID string, in PaymentInput) (*models.Payment, error) {
	if err := in.validate(); err != nil {
		return nil, l.fail("payment.record", err)
	}

	var payment models.Payment
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenantID, propertyID, err := resolvePayer(tx, managerID, in)
		if err != nil {
			return err
		}

		payment = models.Payment{
			TenantCognitoID: tenantID,
			LeaseID:         in.LeaseID,
			PropertyID:      &propertyID,
			Amount:          in.Amount,
			Currency:        in.Currency,
			Type:            in.Type,
			Status:          models.PaymentStatusPending,
			Method:          in.Method,
			PaymentDate:     in.PaymentDate,
			ReferenceNumber: in.ReferenceNumber,
			ReceiptNumber:   in.ReceiptNumber,
			Note:            in.Note,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, l.fail("payment.record", err)
	}

	l.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"tenant_id":  payment.TenantCognitoID,
		"type":       payment.Type,
		"amount":     payment.Amount.String(),
	}).Info("Payment recorded")
	metrics.ObserveTransition("payment", "", payment.Status.String())
	l.publish(ctx, events.New(events.PaymentRecorded, payment.PropertyID.String(), payment.ID.String(), managerID, payment).
		WithStatus("", payment.Status.String()))

	return &payment, nil
}

// resolvePayer finds the single tenant a payment belongs to and the property it is filed under
func resolvePayer(tx *gorm.DB, managerID string, in PaymentInput) (string, uuid.UUID, error) {
	if in.LeaseID != nil {
		var lease models.Lease
		err := tx.Where("id = ? AND property_id IN (?)", *in.LeaseID, ownedProperties(tx, managerID)).
			First(&lease).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", uuid.Nil, apperrors.NotFound("lease not found")
		}
		if err != nil {
			return "", uuid.Nil, err
		}
		if in.PropertyID != nil && *in.PropertyID != lease.PropertyID {
			return "", uuid.Nil, apperrors.ValidationFailed("property_id does not match the lease")
		}
		if in.TenantCognitoID != "" && in.TenantCognitoID != lease.TenantCognitoID {
			return "", uuid.Nil, apperrors.ValidationFailed("tenant does not match the lease")
		}
		return lease.TenantCognitoID, lease.PropertyID, nil
	}

	var owned int64
	if err := tx.Model(&models.Property{}).
		Where("id = ? AND manager_cognito_id = ?", *in.PropertyID, managerID).
		Count(&owned).Error; err != nil {
		return "", uuid.Nil, err
	}
	if owned == 0 {
		return "", uuid.Nil, apperrors.NotFound("property not found")
	}

	if in.TenantCognitoID == "" {
		return "", uuid.Nil, apperrors.ValidationFailed("tenant_cognito_id is required when no lease is given")
	}

	var related int64
	if err := tx.Model(&models.Application{}).
		Where("property_id = ? AND tenant_cognito_id = ?", *in.PropertyID, in.TenantCognitoID).
		Count(&related).Error; err != nil {
		return "", uuid.Nil, err
	}
	if related == 0 {
		if err := tx.Model(&models.Lease{}).
			Where("property_id = ? AND tenant_cognito_id = ?", *in.PropertyID, in.TenantCognitoID).
			Count(&related).Error; err != nil {
			return "", uuid.Nil, err
		}
	}
	if related == 0 {
		return "", uuid.Nil, apperrors.NotFound("tenant has no application or lease on this property")
	}

	return in.TenantCognitoID, *in.PropertyID, nil
}

// UpdateStatus sets any status; the ledger has no transition table
func (l *PaymentLedger) UpdateStatus(ctx context.Context, managerID string, paymentID uuid.UUID, status models.PaymentStatus, meta PaymentStatusUpdate) (*models.Payment, error) {
	if _, err := models.ParsePaymentStatus(string(status)); err != nil {
		return nil, l.fail("payment.status", apperrors.ValidationFailed("%v", err))
	}

	var payment models.Payment
	var previous models.PaymentStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := managedPayments(tx.Clauses(forUpdate()), managerID).
			Where("payments.id = ?", paymentID).
			First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("payment not found")
		}
		if err != nil {
			return err
		}

		previous = payment.Status
		updates := map[string]interface{}{"status": status}
		payment.Status = status
		if meta.ReferenceNumber != nil {
			updates["reference_number"] = *meta.ReferenceNumber
			payment.ReferenceNumber = meta.ReferenceNumber
		}
		if meta.ReceiptNumber != nil {
			updates["receipt_number"] = *meta.ReceiptNumber
			payment.ReceiptNumber = meta.ReceiptNumber
		}
		return tx.Model(&payment).Updates(updates).Error
	})
	if err != nil {
		return nil, l.fail("payment.status", err)
	}

	l.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"from":       previous,
		"to":         status,
	}).Info("Payment status changed")
	metrics.ObserveTransition("payment", previous.String(), status.String())
	l.publish(ctx, events.New(events.PaymentStatusChanged, propertyKey(&payment), payment.ID.String(), managerID, payment).
		WithStatus(previous.String(), status.String()))

	return &payment, nil
}

func propertyKey(p *models.Payment) string {
	if p.PropertyID != nil {
		return p.PropertyID.String()
	}
	return p.ID.String()
}

// Get returns one payment visible to the actor
func (l *PaymentLedger) Get(ctx context.Context, actor *models.UserInfo, id uuid.UUID) (*models.Payment, error) {
	if err := requireCapability(actor, models.CapReadPayments); err != nil {
		return nil, l.fail("payment.get", err)
	}

	var payment models.Payment
	err := l.db.WithContext(ctx).
		Scopes(paymentsVisibleTo(actor)).
		Where("payments.id = ?", id).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, l.fail("payment.get", apperrors.NotFound("payment not found"))
	}
	if err != nil {
		return nil, l.fail("payment.get", err)
	}
	return &payment, nil
}

// List returns a page of payments visible to the actor, latest payment date first
func (l *PaymentLedger) List(ctx context.Context, actor *models.UserInfo, filter PaymentFilter, page utils.Pagination) ([]models.Payment, int64, error) {
	if err := requireCapability(actor, models.CapReadPayments); err != nil {
		return nil, 0, l.fail("payment.list", err)
	}

	filtered := func() *gorm.DB {
		query := l.db.WithContext(ctx).Model(&models.Payment{}).Scopes(paymentsVisibleTo(actor))
		if filter.LeaseID != nil {
			query = query.Where("payments.lease_id = ?", *filter.LeaseID)
		}
		if filter.PropertyID != nil {
			query = query.Where("payments.property_id = ?", *filter.PropertyID)
		}
		if filter.Status != "" {
			query = query.Where("payments.status = ?", filter.Status)
		}
		if filter.Type != "" {
			query = query.Where("payments.type = ?", filter.Type)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, l.fail("payment.list", err)
	}

	payments := []models.Payment{}
	if err := filtered().
		Order("payments.payment_date DESC").
		Scopes(page.Scope()).
		Find(&payments).Error; err != nil {
		return nil, 0, l.fail("payment.list", err)
	}
	return payments, total, nil
}
