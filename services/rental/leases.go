package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/lifecycle"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/storage"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateLeaseRequest converts an approved application into a lease
type CreateLeaseRequest struct {
	ApplicationID uuid.UUID       `json:"application_id" binding:"required"`
	StartDate     string          `json:"start_date" binding:"required"`
	EndDate       string          `json:"end_date" binding:"required"`
	Rent          decimal.Decimal `json:"rent"`
	Deposit       decimal.Decimal `json:"deposit"`
	PaymentDueDay int             `json:"payment_due_day"`
}

// AgreementUploadRequest asks for a presigned agreement upload
type AgreementUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// handleCreateLease creates a PENDING_SIGNATURE lease from an approved application
func handleCreateLease(leases *lifecycle.LeaseManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var req CreateLeaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
			return
		}

		start, err := parseDay("start_date", req.StartDate)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		end, err := parseDay("end_date", req.EndDate)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		dueDay := req.PaymentDueDay
		if dueDay == 0 {
			dueDay = 1
		}

		lease, err := leases.Create(c.Request.Context(), userInfo.CognitoID, req.ApplicationID, lifecycle.LeaseTerms{
			StartDate:     start,
			EndDate:       end,
			Rent:          req.Rent,
			Deposit:       req.Deposit,
			PaymentDueDay: dueDay,
		})
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.CreatedResponse(c, "Lease created successfully", lease)
	}
}

// handleTransitionLease moves a lease along its status table
func handleTransitionLease(leases *lifecycle.LeaseManager) gin.HandlerFunc {
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

		lease, err := leases.Transition(c.Request.Context(), userInfo.CognitoID, id, models.LeaseStatus(req.Status))
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Lease status updated successfully", lease)
	}
}

// handleAgreementUpload issues a presigned upload URL and records its key on the lease
func handleAgreementUpload(leases *lifecycle.LeaseManager, store storage.AgreementStore) gin.HandlerFunc {
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

		var req AgreementUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if !storage.IsSupportedAgreementType(req.ContentType) {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("unsupported content type %q", req.ContentType))
			return
		}

		ctx := c.Request.Context()
		lease, err := leases.Owned(ctx, userInfo.CognitoID, id)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		if lease.Status.IsTerminal() {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("agreements cannot be attached to a %s lease", lease.Status).
				WithDetail("current_status", lease.Status.String()))
			return
		}

		upload, err := store.PresignAgreementUpload(ctx, lease.ID, req.ContentType)
		if err != nil {
			utils.ErrorFromApp(c, apperrors.Internal(err, "failed to prepare agreement upload"))
			return
		}

		lease, err = leases.AttachAgreement(ctx, userInfo.CognitoID, lease.ID, upload.Key)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"lease_id": lease.ID,
			"key":      upload.Key,
		}).Info("Agreement upload issued")

		utils.CreatedResponse(c, "Agreement upload URL issued", gin.H{
			"lease":  lease,
			"upload": upload,
		})
	}
}

// handleGetLease returns a lease visible to the caller
func handleGetLease(leases *lifecycle.LeaseManager) gin.HandlerFunc {
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

		lease, err := leases.Get(c.Request.Context(), userInfo, id)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Lease retrieved successfully", lease)
	}
}

// handleListLeases lists leases visible to the caller
func handleListLeases(leases *lifecycle.LeaseManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var filter lifecycle.LeaseFilter
		if v := c.Query("status"); v != "" {
			status, perr := models.ParseLeaseStatus(v)
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
		items, total, err := leases.List(c.Request.Context(), userInfo, filter, page)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Leases retrieved successfully", page.Result(items, total))
	}
}
