package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PropertyType is the kind of dwelling listed
type PropertyType string

const (
	PropertyTypeRooms     PropertyType = "Rooms"
	PropertyTypeTinyhouse PropertyType = "Tinyhouse"
	PropertyTypeApartment PropertyType = "Apartment"
	PropertyTypeVilla     PropertyType = "Villa"
	PropertyTypeTownhouse PropertyType = "Townhouse"
	PropertyTypeCottage   PropertyType = "Cottage"
)

// ParsePropertyType validates a property type
func ParsePropertyType(value string) (PropertyType, error) {
	switch PropertyType(value) {
	case PropertyTypeRooms, PropertyTypeTinyhouse, PropertyTypeApartment,
		PropertyTypeVilla, PropertyTypeTownhouse, PropertyTypeCottage:
		return PropertyType(value), nil
	}
	return "", fmt.Errorf("unknown property type %q", value)
}

// Property represents a rental listing owned by exactly one manager
type Property struct {
	ID                uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	ManagerCognitoID  string                      `json:"manager_cognito_id" gorm:"type:varchar(255);not null;index"`
	Name              string                      `json:"name" gorm:"not null"`
	Description       string                      `json:"description" gorm:"type:text"`
	PricePerMonth     decimal.Decimal             `json:"price_per_month" gorm:"type:numeric(12,2);not null"`
	SecurityDeposit   decimal.Decimal             `json:"security_deposit" gorm:"type:numeric(12,2);not null"`
	ApplicationFee    decimal.Decimal             `json:"application_fee" gorm:"type:numeric(12,2);not null"`
	PhotoURLs         datatypes.JSONSlice[string] `json:"photo_urls"`
	Amenities         datatypes.JSONSlice[string] `json:"amenities"`
	Highlights        datatypes.JSONSlice[string] `json:"highlights"`
	IsPetsAllowed     bool                        `json:"is_pets_allowed" gorm:"default:false"`
	IsParkingIncluded bool                        `json:"is_parking_included" gorm:"default:false"`
	Beds              int                         `json:"beds" gorm:"not null"`
	Baths             float64                     `json:"baths" gorm:"not null"`
	SquareFeet        int                         `json:"square_feet" gorm:"not null"`
	PropertyType      PropertyType                `json:"property_type" gorm:"type:varchar(20);not null;index"`
	Location          Location                    `json:"location" gorm:"embedded"`
	PostedDate        time.Time                   `json:"posted_date"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`

	Manager *Manager `json:"manager,omitempty" gorm:"foreignKey:ManagerCognitoID;references:CognitoID"`
}

func (Property) TableName() string {
	return "properties"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PostedDate.IsZero() {
		p.PostedDate = time.Now().UTC()
	}
	return nil
}

// IsOwnedBy reports whether the manager owns the listing
func (p *Property) IsOwnedBy(managerID string) bool {
	return p.ManagerCognitoID == managerID
}
