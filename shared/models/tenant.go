package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a renter profile keyed by the identity-provider subject
type Tenant struct {
	CognitoID   string     `json:"cognito_id" gorm:"type:varchar(255);primaryKey"`
	Name        string     `json:"name" gorm:"not null"`
	Email       string     `json:"email" gorm:"not null;index"`
	PhoneNumber string     `json:"phone_number"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Favorites []Favorite `json:"favorites,omitempty" gorm:"foreignKey:TenantCognitoID;references:CognitoID"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Favorite marks a property saved by a tenant
type Favorite struct {
	TenantCognitoID string    `json:"tenant_cognito_id" gorm:"type:varchar(255);primaryKey"`
	PropertyID      uuid.UUID `json:"property_id" gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time `json:"created_at"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

func (Favorite) TableName() string {
	return "tenant_favorites"
}
