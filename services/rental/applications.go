package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/lifecycle"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
)

// SubmitApplicationRequest represents a tenant applying to a property
type SubmitApplicationRequest struct {
	PropertyID  uuid.UUID `json:"property_id" binding:"required"`
	Name        string    `json:"name"`
	Email       string    `json:"email" binding:"omitempty,email"`
	PhoneNumber string    `json:"phone_number"`
	Message     string    `json:"message"`
}

// StatusRequest carries a requested status for decide / transition / payment updates
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleSubmitApplication creates a PENDING application for the calling tenant
func handleSubmitApplication(apps *lifecycle.ApplicationManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var req SubmitApplicationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
			return
		}

		// contact defaults to the verified identity
		email := req.Email
		if email == "" {
			email = userInfo.Email
		}

		app, err := apps.Submit(c.Request.Context(), userInfo.CognitoID, req.PropertyID, lifecycle.ApplicationContact{
			Name:        req.Name,
			Email:       email,
			PhoneNumber: req.PhoneNumber,
			Message:     req.Message,
		})
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.CreatedResponse(c, "Application submitted successfully", app)
	}
}

// handleWithdrawApplication lets the applicant withdraw a PENDING application
func handleWithdrawApplication(apps *lifecycle.ApplicationManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		app, err := apps.Withdraw(c.Request.Context(), userInfo.CognitoID, id)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Application withdrawn successfully", app)
	}
}

// handleDecideApplication approves or rejects an application on one of the manager's properties
func handleDecideApplication(apps *lifecycle.ApplicationManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		app, err := apps.Decide(c.Request.Context(), userInfo.CognitoID, id, models.ApplicationStatus(req.Status))
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Application "+string(app.Status)+" successfully", app)
	}
}

// handleGetApplication returns an application visible to the caller
func handleGetApplication(apps *lifecycle.ApplicationManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		app, err := apps.Get(c.Request.Context(), userInfo, id)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Application retrieved successfully", app)
	}
}

// handleListApplications lists applications visible to the caller
func handleListApplications(apps *lifecycle.ApplicationManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var filter lifecycle.ApplicationFilter
		if v := c.Query("status"); v != "" {
			status, perr := models.ParseApplicationStatus(v)
			if perr != nil {
				utils.ErrorFromApp(c, apperrors.ValidationFailed("%v", perr))
				return
			}
			filter.Status = status
		}
		if filter.PropertyID, err = queryID(c, "property_id"); err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		page := utils.ParsePagination(c)
		items, total, err := apps.List(c.Request.Context(), userInfo, filter, page)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Applications retrieved successfully", page.Result(items, total))
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorFromApp(c, apperrors.ValidationFailed("invalid id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func queryID(c *gin.Context, key string) (*uuid.UUID, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperrors.ValidationFailed("invalid %s", key)
	}
	return &id, nil
}

// parseDay accepts YYYY-MM-DD or RFC 3339
func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse("2006-01-02", value); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.ValidationFailed("%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}
