package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApplicationContact is the contact snapshot taken when a tenant applies
type ApplicationContact struct {
	Name        string
	Email       string
	PhoneNumber string
	Message     string
}

// ApplicationFilter narrows List results
type ApplicationFilter struct {
	Status     models.ApplicationStatus
	PropertyID *uuid.UUID
}

// ApplicationManager drives applications through PENDING -> APPROVED | REJECTED | WITHDRAWN
type ApplicationManager struct {
	base
}

func NewApplicationManager(db *gorm.DB, publisher events.Publisher) *ApplicationManager {
	return &ApplicationManager{base: newBase(db, publisher, "applications")}
}

// Submit creates a PENDING application. A tenant may apply to a property only once, whatever
// happened to the earlier application.
func (m *ApplicationManager) Submit(ctx context.Context, tenantID string, propertyID uuid.UUID, contact ApplicationContact) (*models.Application, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.Name == "" || contact.Email == "" {
		return nil, m.fail("application.submit", apperrors.ValidationFailed("name and email are required"))
	}

	var app models.Application
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockProperty(tx, propertyID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("property_id = ? AND tenant_cognito_id = ?", propertyID, tenantID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.Conflict("an application for this property already exists")
		}

		app = models.Application{
			PropertyID:      propertyID,
			TenantCognitoID: tenantID,
			Name:            contact.Name,
			Email:           contact.Email,
			PhoneNumber:     contact.PhoneNumber,
			Message:         contact.Message,
			Status:          models.ApplicationStatusPending,
		}
		return tx.Create(&app).Error
	})
	if err != nil {
		return nil, m.fail("application.submit", err)
	}

	m.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"property_id":    propertyID,
		"tenant_id":      tenantID,
	}).Info("Application submitted")
	metrics.ObserveTransition("application", "", app.Status.String())
	m.publish(ctx, events.New(events.ApplicationSubmitted, propertyID.String(), app.ID.String(), tenantID, app).
		WithStatus("", app.Status.String()))

	return &app, nil
}

// Withdraw lets a tenant retract their own PENDING application
func (m *ApplicationManager) Withdraw(ctx context.Context, tenantID string, applicationID uuid.UUID) (*models.Application, error) {
	return m.move(ctx, "application.withdraw", tenantID, models.ApplicationStatusWithdrawn, events.ApplicationWithdrawn,
		func(tx *gorm.DB) *gorm.DB {
			return tx.Where("id = ? AND tenant_cognito_id = ?", applicationID, tenantID)
		})
}

// Decide approves or rejects a PENDING application for one of the manager's properties
func (m *ApplicationManager) Decide(ctx context.Context, managerID string, applicationID uuid.UUID, decision models.ApplicationStatus) (*models.Application, error) {
	if !decision.IsDecision() {
		return nil, m.fail("application.decide", apperrors.ValidationFailed("decision must be APPROVED or REJECTED"))
	}
	return m.move(ctx, "application.decide", managerID, decision, events.ApplicationDecided,
		func(tx *gorm.DB) *gorm.DB {
			return tx.Where("id = ? AND property_id IN (?)", applicationID, ownedProperties(tx, managerID))
		})
}

// move locks the application selected by find, checks the status table and applies next
func (m *ApplicationManager) move(ctx context.Context, operation, actorID string, next models.ApplicationStatus,
	eventType events.Type, find func(*gorm.DB) *gorm.DB) (*models.Application, error) {

	var app models.Application
	var previous models.ApplicationStatus
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := find(tx).Clauses(forUpdate()).First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return err
		}

		previous = app.Status
		if !previous.CanTransitionTo(next) {
			return apperrors.InvalidTransition("application", previous, next)
		}

		app.Status = next
		return tx.Model(&app).Update("status", next).Error
	})
	if err != nil {
		return nil, m.fail(operation, err)
	}

	m.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"from":           previous,
		"to":             next,
		"actor":          actorID,
	}).Info("Application status changed")
	metrics.ObserveTransition("application", previous.String(), next.String())
	m.publish(ctx, events.New(eventType, app.PropertyID.String(), app.ID.String(), actorID, app).
		WithStatus(previous.String(), next.String()))

	return &app, nil
}

// Get returns one application visible to the actor
func (m *ApplicationManager) Get(ctx context.Context, actor *models.UserInfo, id uuid.UUID) (*models.Application, error) {
	if err := requireCapability(actor, models.CapReadApplications); err != nil {
		return nil, m.fail("application.get", err)
	}

	var app models.Application
	err := m.db.WithContext(ctx).
		Scopes(applicationsVisibleTo(actor)).
		Preload("Property").
		Where("applications.id = ?", id).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, m.fail("application.get", apperrors.NotFound("application not found"))
	}
	if err != nil {
		return nil, m.fail("application.get", err)
	}
	return &app, nil
}

// List returns a page of applications visible to the actor, newest first
func (m *ApplicationManager) List(ctx context.Context, actor *models.UserInfo, filter ApplicationFilter, page utils.Pagination) ([]models.Application, int64, error) {
	if err := requireCapability(actor, models.CapReadApplications); err != nil {
		return nil, 0, m.fail("application.list", err)
	}

	filtered := func() *gorm.DB {
		query := m.db.WithContext(ctx).Model(&models.Application{}).Scopes(applicationsVisibleTo(actor))
		if filter.Status != "" {
			query = query.Where("applications.status = ?", filter.Status)
		}
		if filter.PropertyID != nil {
			query = query.Where("applications.property_id = ?", *filter.PropertyID)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, m.fail("application.list", err)
	}

	apps := []models.Application{}
	if err := filtered().Preload("Property").
		Order("applications.application_date DESC").
		Scopes(page.Scope()).
		Find(&apps).Error; err != nil {
		return nil, 0, m.fail("application.list", err)
	}
	return apps, total, nil
}
