package main

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/search"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// propertyCacheTTL bounds how stale a cached property detail may be
const propertyCacheTTL = 5 * time.Minute

// CreatePropertyRequest represents the create property request
type CreatePropertyRequest struct {
	Name              string          `json:"name" binding:"required"`
	Description       string          `json:"description"`
	PricePerMonth     decimal.Decimal `json:"price_per_month"`
	SecurityDeposit   decimal.Decimal `json:"security_deposit"`
	ApplicationFee    decimal.Decimal `json:"application_fee"`
	PhotoURLs         []string        `json:"photo_urls"`
	Amenities         []string        `json:"amenities"`
	Highlights        []string        `json:"highlights"`
	IsPetsAllowed     bool            `json:"is_pets_allowed"`
	IsParkingIncluded bool            `json:"is_parking_included"`
	Beds              int             `json:"beds" binding:"min=0"`
	Baths             float64         `json:"baths" binding:"min=0"`
	SquareFeet        int             `json:"square_feet" binding:"min=0"`
	PropertyType      string          `json:"property_type" binding:"required"`
	Address           string          `json:"address" binding:"required"`
	City              string          `json:"city" binding:"required"`
	State             string          `json:"state"`
	Country           string          `json:"country" binding:"required"`
	PostalCode        string          `json:"postal_code"`
	Latitude          float64         `json:"latitude" binding:"min=-90,max=90"`
	Longitude         float64         `json:"longitude" binding:"min=-180,max=180"`
}

// UpdatePropertyRequest carries the fields a manager may change; nil fields are left alone
type UpdatePropertyRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	PricePerMonth     *decimal.Decimal `json:"price_per_month"`
	SecurityDeposit   *decimal.Decimal `json:"security_deposit"`
	ApplicationFee    *decimal.Decimal `json:"application_fee"`
	PhotoURLs         *[]string        `json:"photo_urls"`
	Amenities         *[]string        `json:"amenities"`
	Highlights        *[]string        `json:"highlights"`
	IsPetsAllowed     *bool            `json:"is_pets_allowed"`
	IsParkingIncluded *bool            `json:"is_parking_included"`
	Beds              *int             `json:"beds" binding:"omitempty,min=0"`
	Baths             *float64         `json:"baths" binding:"omitempty,min=0"`
	SquareFeet        *int             `json:"square_feet" binding:"omitempty,min=0"`
	PropertyType      *string          `json:"property_type"`
}

func validateMoney(rent, deposit, fee decimal.Decimal) error {
	if !rent.IsPositive() {
		return apperrors.ValidationFailed("price_per_month must be greater than zero")
	}
	if deposit.IsNegative() || fee.IsNegative() {
		return apperrors.ValidationFailed("security_deposit and application_fee cannot be negative")
	}
	return nil
}

// handleCreateProperty lists a new property owned by the calling manager
func handleCreateProperty(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var req CreatePropertyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
			return
		}

		propertyType, err := models.ParsePropertyType(req.PropertyType)
		if err != nil {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("%v", err))
			return
		}
		if err := validateMoney(req.PricePerMonth, req.SecurityDeposit, req.ApplicationFee); err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		property := models.Property{
			ManagerCognitoID:  userInfo.CognitoID,
			Name:              strings.TrimSpace(req.Name),
			Description:       req.Description,
			PricePerMonth:     req.PricePerMonth,
			SecurityDeposit:   req.SecurityDeposit,
			ApplicationFee:    req.ApplicationFee,
			PhotoURLs:         datatypes.NewJSONSlice(nonNil(req.PhotoURLs)),
			Amenities:         datatypes.NewJSONSlice(nonNil(req.Amenities)),
			Highlights:        datatypes.NewJSONSlice(nonNil(req.Highlights)),
			IsPetsAllowed:     req.IsPetsAllowed,
			IsParkingIncluded: req.IsParkingIncluded,
			Beds:              req.Beds,
			Baths:             req.Baths,
			SquareFeet:        req.SquareFeet,
			PropertyType:      propertyType,
			Location: models.Location{
				Address:    req.Address,
				City:       req.City,
				State:      req.State,
				Country:    req.Country,
				PostalCode: req.PostalCode,
				Latitude:   req.Latitude,
				Longitude:  req.Longitude,
			},
		}

		if err := db.WithContext(c.Request.Context()).Create(&property).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"property_id": property.ID,
			"manager_id":  userInfo.CognitoID,
		}).Info("Property listed")

		utils.CreatedResponse(c, "Property created successfully", property)
	}
}

// handleListProperties is the public listing search
func handleListProperties(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := search.ParsePropertyFilter(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		page := utils.ParsePagination(c)

		filtered := func() *gorm.DB {
			return db.WithContext(c.Request.Context()).Model(&models.Property{}).Scopes(filter.Scope())
		}

		var total int64
		if err := filtered().Count(&total).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		properties := []models.Property{}
		if total > 0 {
			if err := filtered().Scopes(page.Scope()).Order("posted_date DESC").Find(&properties).Error; err != nil {
				utils.ErrorFromApp(c, err)
				return
			}
		}

		utils.OKResponse(c, "Properties retrieved successfully", page.Result(properties, total))
	}
}

// handleNearbyProperties runs the PostGIS radius search
func handleNearbyProperties(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := search.ParseNearbyQuery(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		page := utils.ParsePagination(c)

		results, total, err := search.Nearby(c.Request.Context(), db, query, page)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Nearby properties retrieved successfully", page.Result(results, total))
	}
}

// handleGetProperty serves a property detail, cached in Redis
func handleGetProperty(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		propertyID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("invalid property id"))
			return
		}

		ctx := c.Request.Context()
		cacheKey := utils.PropertyCacheKey(propertyID.String())

		var property models.Property
		if err := utils.CacheGetJSON(ctx, cacheKey, &property); err == nil {
			c.Header("X-Cache", "HIT")
			utils.OKResponse(c, "Property retrieved successfully", property)
			return
		}

		if err := db.WithContext(ctx).Preload("Manager").First(&property, "id = ?", propertyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.ErrorFromApp(c, apperrors.NotFound("property not found"))
				return
			}
			utils.ErrorFromApp(c, err)
			return
		}

		if err := utils.CacheSetJSON(ctx, cacheKey, property, propertyCacheTTL); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			logrus.WithError(err).Warn("Failed to cache property")
		}

		c.Header("X-Cache", "MISS")
		utils.OKResponse(c, "Property retrieved successfully", property)
	}
}

// handleUpdateProperty lets the owning manager change a listing
func handleUpdateProperty(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		propertyID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("invalid property id"))
			return
		}

		var req UpdatePropertyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
			return
		}

		ctx := c.Request.Context()
		var property models.Property
		err = db.WithContext(ctx).
			Where("id = ? AND manager_cognito_id = ?", propertyID, userInfo.CognitoID).
			First(&property).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.ErrorFromApp(c, apperrors.NotFound("property not found"))
				return
			}
			utils.ErrorFromApp(c, err)
			return
		}

		if err := applyPropertyUpdate(&property, &req); err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		if err := db.WithContext(ctx).Save(&property).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		if err := utils.CacheDelete(ctx, utils.PropertyCacheKey(property.ID.String())); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			logrus.WithError(err).Warn("Failed to invalidate property cache")
		}

		utils.OKResponse(c, "Property updated successfully", property)
	}
}

func applyPropertyUpdate(property *models.Property, req *UpdatePropertyRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return apperrors.ValidationFailed("name cannot be empty")
		}
		property.Name = name
	}
	if req.Description != nil {
		property.Description = *req.Description
	}
	if req.PricePerMonth != nil {
		property.PricePerMonth = *req.PricePerMonth
	}
	if req.SecurityDeposit != nil {
		property.SecurityDeposit = *req.SecurityDeposit
	}
	if req.ApplicationFee != nil {
		property.ApplicationFee = *req.ApplicationFee
	}
	if err := validateMoney(property.PricePerMonth, property.SecurityDeposit, property.ApplicationFee); err != nil {
		return err
	}
	if req.PhotoURLs != nil {
		property.PhotoURLs = datatypes.NewJSONSlice(nonNil(*req.PhotoURLs))
	}
	if req.Amenities != nil {
		property.Amenities = datatypes.NewJSONSlice(nonNil(*req.Amenities))
	}
	if req.Highlights != nil {
		property.Highlights = datatypes.NewJSONSlice(nonNil(*req.Highlights))
	}
	if req.IsPetsAllowed != nil {
		property.IsPetsAllowed = *req.IsPetsAllowed
	}
	if req.IsParkingIncluded != nil {
		property.IsParkingIncluded = *req.IsParkingIncluded
	}
	if req.Beds != nil {
		property.Beds = *req.Beds
	}
	if req.Baths != nil {
		property.Baths = *req.Baths
	}
	if req.SquareFeet != nil {
		property.SquareFeet = *req.SquareFeet
	}
	if req.PropertyType != nil {
		propertyType, err := models.ParsePropertyType(*req.PropertyType)
		if err != nil {
			return apperrors.ValidationFailed("%v", err)
		}
		property.PropertyType = propertyType
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
