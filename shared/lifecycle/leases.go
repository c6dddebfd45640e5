package lifecycle

import (
	"context"
	"errors"
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

// LeaseTerms are the negotiated terms supplied when converting an application
type LeaseTerms struct {
	StartDate     time.Time
	EndDate       time.Time
	Rent          decimal.Decimal
	Deposit       decimal.Decimal
	PaymentDueDay int
}

// Validate normalises dates to calendar days and checks the terms
func (t *LeaseTerms) Validate() error {
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return apperrors.ValidationFailed("start and end dates are required")
	}
	t.StartDate = DateOnly(t.StartDate)
	t.EndDate = DateOnly(t.EndDate)
	if t.EndDate.Before(t.StartDate) {
		return apperrors.ValidationFailed("end date cannot be before start date")
	}
	if !t.Rent.IsPositive() {
		return apperrors.ValidationFailed("rent must be greater than zero")
	}
	if t.Deposit.IsNegative() {
		return apperrors.ValidationFailed("deposit cannot be negative")
	}
	if t.PaymentDueDay < 1 || t.PaymentDueDay > 28 {
		return apperrors.ValidationFailed("payment due day must be between 1 and 28")
	}
	return nil
}

// LeaseFilter narrows List results
type LeaseFilter struct {
	Status     models.LeaseStatus
	PropertyID *uuid.UUID
}

// LeaseManager converts approved applications into leases and drives the lease status table
type LeaseManager struct {
	base
}

func NewLeaseManager(db *gorm.DB, publisher events.Publisher) *LeaseManager {
	return &LeaseManager{base: newBase(db, publisher, "leases")}
}

// Create consumes an APPROVED application exactly once. The new lease starts in PENDING_SIGNATURE
// and must not overlap an ACTIVE lease on the same property.
func (m *LeaseManager) Create(ctx context.Context, managerID string, applicationID uuid.UUID, terms LeaseTerms) (*models.Lease, error) {
	if err := terms.Validate(); err != nil {
		return nil, m.fail("lease.create", err)
	}

	var lease models.Lease
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		err := tx.Where("id = ? AND status = ? AND property_id IN (?)",
			applicationID, models.ApplicationStatusApproved, ownedProperties(tx, managerID)).
			First(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("approved application not found")
		}
		if err != nil {
			return err
		}

		if _, err := lockProperty(tx, app.PropertyID); err != nil {
			return err
		}

		var consumed int64
		if err := tx.Model(&models.Lease{}).Where("application_id = ?", app.ID).Count(&consumed).Error; err != nil {
			return err
		}
		if consumed > 0 {
			return apperrors.Conflict("a lease already exists for this application")
		}

		if err := checkActiveOverlap(tx, app.PropertyID, uuid.Nil, terms.StartDate, terms.EndDate); err != nil {
			return err
		}

		lease = models.Lease{
			PropertyID:      app.PropertyID,
			TenantCognitoID: app.TenantCognitoID,
			ApplicationID:   &app.ID,
			StartDate:       terms.StartDate,
			EndDate:         terms.EndDate,
			Rent:            terms.Rent,
			Deposit:         terms.Deposit,
			PaymentDueDay:   terms.PaymentDueDay,
			Status:          models.LeaseStatusPendingSignature,
		}
		return tx.Create(&lease).Error
	})
	if err != nil {
		return nil, m.fail("lease.create", err)
	}

	m.log.WithFields(logrus.Fields{
		"lease_id":       lease.ID,
		"application_id": applicationID,
		"property_id":    lease.PropertyID,
	}).Info("Lease created")
	metrics.ObserveTransition("lease", "", lease.Status.String())
	m.publish(ctx, events.New(events.LeaseCreated, lease.PropertyID.String(), lease.ID.String(), managerID, lease).
		WithStatus("", lease.Status.String()))

	return &lease, nil
}

// checkActiveOverlap fails with Conflict when an ACTIVE lease on the property intersects [start, end].
// The caller must hold the property lock.
func checkActiveOverlap(tx *gorm.DB, propertyID, exclude uuid.UUID, start, end time.Time) error {
	query := tx.Where("property_id = ? AND status = ?", propertyID, models.LeaseStatusActive)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}

	var active []models.Lease
	if err := query.Find(&active).Error; err != nil {
		return err
	}

	for i := range active {
		if active[i].Overlaps(start, end) {
			return apperrors.Conflict("lease dates overlap an active lease on this property").
				WithDetail("conflicting_lease_id", active[i].ID.String())
		}
	}
	return nil
}

// Transition moves a lease along PENDING_SIGNATURE -> ACTIVE | TERMINATED, ACTIVE -> TERMINATED | COMPLETED.
// Activation re-checks the overlap rule against other ACTIVE leases.
func (m *LeaseManager) Transition(ctx context.Context, managerID string, leaseID uuid.UUID, next models.LeaseStatus) (*models.Lease, error) {
	if !next.Valid() {
		return nil, m.fail("lease.transition", apperrors.ValidationFailed("unknown lease status %q", next))
	}

	var lease models.Lease
	var previous models.LeaseStatus
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.lockOwned(tx, managerID, leaseID, &lease); err != nil {
			return err
		}

		previous = lease.Status
		if !previous.CanTransitionTo(next) {
			return apperrors.InvalidTransition("lease", previous, next)
		}

		if next == models.LeaseStatusActive {
			if _, err := lockProperty(tx, lease.PropertyID); err != nil {
				return err
			}
			if err := checkActiveOverlap(tx, lease.PropertyID, lease.ID, lease.StartDate, lease.EndDate); err != nil {
				return err
			}
		}

		lease.Status = next
		return tx.Model(&lease).Update("status", next).Error
	})
	if err != nil {
		return nil, m.fail("lease.transition", err)
	}

	m.log.WithFields(logrus.Fields{
		"lease_id": lease.ID,
		"from":     previous,
		"to":       next,
	}).Info("Lease status changed")
	metrics.ObserveTransition("lease", previous.String(), next.String())
	m.publish(ctx, events.New(events.LeaseStatusChanged, lease.PropertyID.String(), lease.ID.String(), managerID, lease).
		WithStatus(previous.String(), next.String()))

	return &lease, nil
}

// AttachAgreement records the storage key of the signed agreement document
func (m *LeaseManager) AttachAgreement(ctx context.Context, managerID string, leaseID uuid.UUID, documentKey string) (*models.Lease, error) {
	documentKey = strings.TrimSpace(documentKey)
	if documentKey == "" {
		return nil, m.fail("lease.agreement", apperrors.ValidationFailed("agreement document is required"))
	}

	var lease models.Lease
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.lockOwned(tx, managerID, leaseID, &lease); err != nil {
			return err
		}
		if lease.Status.IsTerminal() {
			return apperrors.ValidationFailed("agreements cannot be attached to a %s lease", lease.Status).
				WithDetail("current_status", lease.Status.String())
		}
		lease.AgreementDocument = &documentKey
		return tx.Model(&lease).Update("agreement_document", documentKey).Error
	})
	if err != nil {
		return nil, m.fail("lease.agreement", err)
	}

	m.log.WithField("lease_id", lease.ID).Info("Lease agreement attached")
	m.publish(ctx, events.New(events.LeaseAgreementAttached, lease.PropertyID.String(), lease.ID.String(), managerID, lease))
	return &lease, nil
}

// Owned returns a lease on one of the manager's properties
func (m *LeaseManager) Owned(ctx context.Context, managerID string, leaseID uuid.UUID) (*models.Lease, error) {
	var lease models.Lease
	db := m.db.WithContext(ctx)
	err := db.Where("id = ? AND property_id IN (?)", leaseID, ownedProperties(db, managerID)).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, m.fail("lease.owned", apperrors.NotFound("lease not found"))
	}
	if err != nil {
		return nil, m.fail("lease.owned", err)
	}
	return &lease, nil
}

func (m *LeaseManager) lockOwned(tx *gorm.DB, managerID string, leaseID uuid.UUID, lease *models.Lease) error {
	err := tx.Clauses(forUpdate()).
		Where("id = ? AND property_id IN (?)", leaseID, ownedProperties(tx, managerID)).
		First(lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("lease not found")
	}
	return err
}

// Get returns one lease visible to the actor
func (m *LeaseManager) Get(ctx context.Context, actor *models.UserInfo, id uuid.UUID) (*models.Lease, error) {
	if err := requireCapability(actor, models.CapReadLeases); err != nil {
		return nil, m.fail("lease.get", err)
	}

	var lease models.Lease
	err := m.db.WithContext(ctx).
		Scopes(leasesVisibleTo(actor)).
		Preload("Property").
		Where("leases.id = ?", id).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, m.fail("lease.get", apperrors.NotFound("lease not found"))
	}
	if err != nil {
		return nil, m.fail("lease.get", err)
	}
	return &lease, nil
}

// List returns a page of leases visible to the actor
func (m *LeaseManager) List(ctx context.Context, actor *models.UserInfo, filter LeaseFilter, page utils.Pagination) ([]models.Lease, int64, error) {
	if err := requireCapability(actor, models.CapReadLeases); err != nil {
		return nil, 0, m.fail("lease.list", err)
	}

	filtered := func() *gorm.DB {
		query := m.db.WithContext(ctx).Model(&models.Lease{}).Scopes(leasesVisibleTo(actor))
		if filter.Status != "" {
			query = query.Where("leases.status = ?", filter.Status)
		}
		if filter.PropertyID != nil {
			query = query.Where("leases.property_id = ?", *filter.PropertyID)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, m.fail("lease.list", err)
	}

	leases := []models.Lease{}
	if err := filtered().Preload("Property").
		Order("leases.start_date DESC").
		Scopes(page.Scope()).
		Find(&leases).Error; err != nil {
		return nil, 0, m.fail("lease.list", err)
	}
	return leases, total, nil
}
