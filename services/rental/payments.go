package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/lifecycle"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest represents a manager recording a received payment
type RecordPaymentRequest struct {
	LeaseID         *uuid.UUID      `json:"lease_id"`
	PropertyID      *uuid.UUID      `json:"property_id"`
	TenantCognitoID string          `json:"tenant_cognito_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentType     string          `json:"payment_type" binding:"required"`
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	PaymentDate     string          `json:"payment_date"`
	ReferenceNumber *string         `json:"reference_number"`
	ReceiptNumber   *string         `json:"receipt_number"`
	Note            *string         `json:"note"`
}

// UpdatePaymentStatusRequest changes a payment status
type UpdatePaymentStatusRequest struct {
	Status          string  `json:"status" binding:"required"`
	ReferenceNumber *string `json:"reference_number"`
	ReceiptNumber   *string `json:"receipt_number"`
}

// handleRecordPayment records a PENDING payment
func handleRecordPayment(payments *lifecycle.PaymentLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var req RecordPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
			return
		}

		paidOn, err := parseDay("payment_date", req.PaymentDate)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		payment, err := payments.Record(c.Request.Context(), userInfo.CognitoID, lifecycle.PaymentInput{
			LeaseID:         req.LeaseID,
			PropertyID:      req.PropertyID,
			TenantCognitoID: req.TenantCognitoID,
			Amount:          req.Amount,
			Currency:        req.Currency,
			Type:            models.PaymentType(req.PaymentType),
			Method:          req.PaymentMethod,
			PaymentDate:     paidOn,
			ReferenceNumber: req.ReferenceNumber,
			ReceiptNumber:   req.ReceiptNumber,
			Note:            req.Note,
		})
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.CreatedResponse(c, "Payment recorded successfully", payment)
	}
}

// handleUpdatePaymentStatus moves a payment to any status
func handleUpdatePaymentStatus(payments *lifecycle.PaymentLedger) gin.HandlerFunc {
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

		var req UpdatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		payment, err := payments.UpdateStatus(c.Request.Context(), userInfo.CognitoID, id, models.PaymentStatus(req.Status),
			lifecycle.PaymentStatusUpdate{ReferenceNumber: req.ReferenceNumber, ReceiptNumber: req.ReceiptNumber})
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Payment status updated successfully", payment)
	}
}

// handleGetPayment returns a payment visible to the caller
func handleGetPayment(payments *lifecycle.PaymentLedger) gin.HandlerFunc {
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

		payment, err := payments.Get(c.Request.Context(), userInfo, id)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Payment retrieved successfully", payment)
	}
}

// handleListPayments lists payments visible to the caller
func handleListPayments(payments *lifecycle.PaymentLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		var filter lifecycle.PaymentFilter
		if v := c.Query("status"); v != "" {
			status, perr := models.ParsePaymentStatus(v)
			if perr != nil {
				utils.ErrorFromApp(c, apperrors.ValidationFailed("%v", perr))
				return
			}
			filter.Status = status
		}
		if v := c.Query("payment_type"); v != "" {
			paymentType, perr := models.ParsePaymentType(v)
			if perr != nil {
				utils.ErrorFromApp(c, apperrors.ValidationFailed("%v", perr))
				return
			}
			filter.Type = paymentType
		}
		if filter.LeaseID, err = queryID(c, "lease_id"); err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		if filter.PropertyID, err = queryID(c, "property_id"); err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		page := utils.ParsePagination(c)
		items, total, err := payments.List(c.Request.Context(), userInfo, filter, page)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}

		utils.OKResponse(c, "Payments retrieved successfully", page.Result(items, total))
	}
}
