// Package lifecycle owns the application, lease and payment state machines.
// Every check and the write it guards run in one transaction holding a row lock.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type base struct {
	db        *gorm.DB
	publisher events.Publisher
	log       *logrus.Entry
}

func newBase(db *gorm.DB, publisher events.Publisher, component string) base {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return base{
		db:        db,
		publisher: publisher,
		log:       logrus.WithField("component", component),
	}
}

// fail converts err into the taxonomy and counts refusals
func (b *base) fail(operation string, err error) error {
	appErr := apperrors.From(err)
	if appErr.Kind != apperrors.KindInternal {
		metrics.ObserveRejection(operation, string(appErr.Kind))
	}
	return appErr
}

func (b *base) publish(ctx context.Context, event events.Event) {
	b.publisher.Publish(ctx, event)
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// lockProperty serialises writers that check per-property invariants
func lockProperty(tx *gorm.DB, propertyID uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := tx.Clauses(forUpdate()).Where("id = ?", propertyID).First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("property not found")
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// ownedProperties is a subquery selecting the ids of a manager's properties
func ownedProperties(db *gorm.DB, managerID string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("properties").Select("id").Where("manager_cognito_id = ?", managerID)
}

// ownedLeases selects the ids of leases on a manager's properties
func ownedLeases(db *gorm.DB, managerID string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("leases").Select("id").Where("property_id IN (?)", ownedProperties(db, managerID))
}

// DateOnly truncates to midnight UTC; lease bounds are calendar days
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireCapability(actor *models.UserInfo, capability models.Capability) error {
	if actor == nil {
		return apperrors.AuthRequired("authentication required")
	}
	if !actor.Can(capability) {
		return apperrors.AccessDenied("role %s may not perform this action", actor.Role)
	}
	return nil
}
