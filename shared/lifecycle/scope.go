package lifecycle

import (
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"gorm.io/gorm"
)

type scopeFunc func(*gorm.DB) *gorm.DB

func nothing(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// applicationsVisibleTo: tenants see their own, managers see those for their properties, admins see all
func applicationsVisibleTo(actor *models.UserInfo) scopeFunc {
	return func(db *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin:
			return db
		case models.RoleTenant:
			return db.Where("applications.tenant_cognito_id = ?", actor.CognitoID)
		case models.RoleManager:
			return db.Where("applications.property_id IN (?)", ownedProperties(db, actor.CognitoID))
		}
		return nothing(db)
	}
}

func leasesVisibleTo(actor *models.UserInfo) scopeFunc {
	return func(db *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin:
			return db
		case models.RoleTenant:
			return db.Where("leases.tenant_cognito_id = ?", actor.CognitoID)
		case models.RoleManager:
			return db.Where("leases.property_id IN (?)", ownedProperties(db, actor.CognitoID))
		}
		return nothing(db)
	}
}

func paymentsVisibleTo(actor *models.UserInfo) scopeFunc {
	return func(db *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin:
			return db
		case models.RoleTenant:
			return db.Where("payments.tenant_cognito_id = ?", actor.CognitoID)
		case models.RoleManager:
			return managedPayments(db, actor.CognitoID)
		}
		return nothing(db)
	}
}

// managedPayments matches payments on the manager's properties directly or through a lease
func managedPayments(db *gorm.DB, managerID string) *gorm.DB {
	return db.Where("(payments.property_id IN (?) OR payments.lease_id IN (?))",
		ownedProperties(db, managerID), ownedLeases(db, managerID))
}
