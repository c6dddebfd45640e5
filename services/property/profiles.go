package main

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpdateProfileRequest represents the profile update request shared by tenants and managers
type UpdateProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
}

func (r *UpdateProfileRequest) changes() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, apperrors.ValidationFailed("name cannot be empty")
		}
		updates["name"] = name
	}
	if r.Email != nil {
		updates["email"] = strings.TrimSpace(*r.Email)
	}
	if r.PhoneNumber != nil {
		updates["phone_number"] = strings.TrimSpace(*r.PhoneNumber)
	}
	return updates, nil
}

// profileOwner resolves the caller and checks they may reach the profile in :cognitoId
func profileOwner(c *gin.Context) (string, bool) {
	userInfo, err := middleware.GetUserInfoFromContext(c)
	if err != nil {
		utils.ErrorFromApp(c, err)
		return "", false
	}

	cognitoID := c.Param("cognitoId")
	if !userInfo.CanAccessProfile(cognitoID) {
		utils.ErrorFromApp(c, apperrors.AccessDenied("cannot access another user's profile"))
		return "", false
	}
	return cognitoID, true
}

// handleGetTenant returns a tenant profile with its favorites
func handleGetTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}

		var tenant models.Tenant
		err := db.WithContext(c.Request.Context()).
			Preload("Favorites.Property").
			First(&tenant, "cognito_id = ?", cognitoID).Error
		if err != nil {
			utils.ErrorFromApp(c, notFound(err, "tenant not found"))
			return
		}

		utils.OKResponse(c, "Tenant retrieved successfully", tenant)
	}
}

// handleUpdateTenant updates a tenant profile
func handleUpdateTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}
		updateProfile(c, db, &models.Tenant{}, cognitoID, "tenant not found", "Tenant updated successfully")
	}
}

// handleGetManager returns a manager profile
func handleGetManager(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}

		var manager models.Manager
		if err := db.WithContext(c.Request.Context()).First(&manager, "cognito_id = ?", cognitoID).Error; err != nil {
			utils.ErrorFromApp(c, notFound(err, "manager not found"))
			return
		}

		utils.OKResponse(c, "Manager retrieved successfully", manager)
	}
}

// handleUpdateManager updates a manager profile
func handleUpdateManager(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}
		updateProfile(c, db, &models.Manager{}, cognitoID, "manager not found", "Manager updated successfully")
	}
}

func updateProfile(c *gin.Context, db *gorm.DB, profile interface{}, cognitoID, missing, done string) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format")
		return
	}
	updates, err := req.changes()
	if err != nil {
		utils.ErrorFromApp(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := db.WithContext(ctx).First(profile, "cognito_id = ?", cognitoID).Error; err != nil {
		utils.ErrorFromApp(c, notFound(err, missing))
		return
	}
	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
	}

	utils.OKResponse(c, done, profile)
}

// handleAddFavorite saves a property to the tenant's favorites; repeating it is a no-op
func handleAddFavorite(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, propertyID, ok := favoriteTarget(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		var count int64
		if err := db.WithContext(ctx).Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		if count == 0 {
			utils.ErrorFromApp(c, apperrors.NotFound("property not found"))
			return
		}

		favorite := models.Favorite{TenantCognitoID: cognitoID, PropertyID: propertyID}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&favorite).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Property added to favorites", favorite)
	}
}

// handleRemoveFavorite drops a property from the tenant's favorites
func handleRemoveFavorite(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, propertyID, ok := favoriteTarget(c)
		if !ok {
			return
		}

		result := db.WithContext(c.Request.Context()).
			Where("tenant_cognito_id = ? AND property_id = ?", cognitoID, propertyID).
			Delete(&models.Favorite{})
		if result.Error != nil {
			utils.ErrorFromApp(c, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			utils.ErrorFromApp(c, apperrors.NotFound("favorite not found"))
			return
		}

		utils.OKResponse(c, "Property removed from favorites", nil)
	}
}

func favoriteTarget(c *gin.Context) (string, uuid.UUID, bool) {
	userInfo, err := middleware.GetUserInfoFromContext(c)
	if err != nil {
		utils.ErrorFromApp(c, err)
		return "", uuid.Nil, false
	}

	// favorites are personal; admins read profiles but never edit them
	cognitoID := c.Param("cognitoId")
	if userInfo.CognitoID != cognitoID {
		utils.ErrorFromApp(c, apperrors.AccessDenied("cannot change another tenant's favorites"))
		return "", uuid.Nil, false
	}

	propertyID, err := uuid.Parse(c.Param("propertyId"))
	if err != nil {
		utils.ErrorFromApp(c, apperrors.ValidationFailed("invalid property id"))
		return "", uuid.Nil, false
	}
	return cognitoID, propertyID, true
}

// handleCurrentResidences lists properties where the tenant holds an ACTIVE lease
func handleCurrentResidences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}

		activeLeases := db.Session(&gorm.Session{NewDB: true}).
			Table("leases").Select("property_id").
			Where("tenant_cognito_id = ? AND status = ?", cognitoID, models.LeaseStatusActive)

		properties := []models.Property{}
		if err := db.WithContext(c.Request.Context()).
			Where("id IN (?)", activeLeases).
			Order("name").
			Find(&properties).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Current residences retrieved successfully", properties)
	}
}

// handleManagerProperties lists the properties a manager owns
func handleManagerProperties(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cognitoID, ok := profileOwner(c)
		if !ok {
			return
		}
		page := utils.ParsePagination(c)

		owned := func() *gorm.DB {
			return db.WithContext(c.Request.Context()).Model(&models.Property{}).
				Where("manager_cognito_id = ?", cognitoID)
		}

		var total int64
		if err := owned().Count(&total).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		properties := []models.Property{}
		if err := owned().Scopes(page.Scope()).Order("posted_date DESC").Find(&properties).Error; err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Manager properties retrieved successfully", page.Result(properties, total))
	}
}

func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("%s", message)
	}
	return err
}
