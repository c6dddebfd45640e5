package models

import (
	"fmt"
	"time"
)

// Role is the role claim carried by identity-provider tokens
type Role string

const (
	RoleTenant  Role = "tenant"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role claim
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleTenant, RoleManager, RoleAdmin:
		return Role(value), nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// Manager represents a property manager profile
type Manager struct {
	CognitoID   string     `json:"cognito_id" gorm:"type:varchar(255);primaryKey"`
	Name        string     `json:"name" gorm:"not null"`
	Email       string     `json:"email" gorm:"not null;index"`
	PhoneNumber string     `json:"phone_number"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Properties []Property `json:"properties,omitempty" gorm:"foreignKey:ManagerCognitoID;references:CognitoID"`
}

func (Manager) TableName() string {
	return "managers"
}

// UserInfo represents user information from verified JWT claims
type UserInfo struct {
	CognitoID     string `json:"cognito_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          Role   `json:"role"`
}

func (ui *UserInfo) IsAdmin() bool {
	return ui.Role == RoleAdmin
}

func (ui *UserInfo) IsManager() bool {
	return ui.Role == RoleManager
}

func (ui *UserInfo) IsTenant() bool {
	return ui.Role == RoleTenant
}

// CanAccessProfile allows users to read and edit their own profile; admins can reach all
func (ui *UserInfo) CanAccessProfile(cognitoID string) bool {
	return ui.IsAdmin() || ui.CognitoID == cognitoID
}
