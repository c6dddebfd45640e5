package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rentInput() PaymentInput {
	return PaymentInput{
		Amount: decimal.RequireFromString("1500.00"),
		Type:   models.PaymentTypeRent,
		Method: "bank_transfer",
	}
}

func TestRecordAgainstLeaseResolvesTenant(t *testing.T) {
	f := newFixture(t)
	lease := f.activeLease(t, tenantID, "2024-01-01", "2024-12-31")

	in := rentInput()
	in.LeaseID = &lease.ID
	in.Currency = "eur"
	payment, err := f.payments.Record(context.Background(), managerID, in)

	require.NoError(t, err)
	assert.Equal(t, tenantID, payment.TenantCognitoID)
	require.NotNil(t, payment.PropertyID)
	assert.Equal(t, f.property.ID, *payment.PropertyID)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "EUR", payment.Currency)
	assert.False(t, payment.PaymentDate.IsZero())
	assert.Contains(t, f.events.types(), events.PaymentRecorded)
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)
	lease := f.activeLease(t, tenantID, "2024-01-01", "2024-12-31")

	tests := []struct {
		name   string
		mutate func(*PaymentInput)
	}{
		{"no lease or property", func(in *PaymentInput) { in.LeaseID = nil }},
		{"zero amount", func(in *PaymentInput) { in.Amount = decimal.Zero }},
		{"unknown type", func(in *PaymentInput) { in.Type = "TIP" }},
		{"missing method", func(in *PaymentInput) { in.Method = " " }},
		{"bad currency", func(in *PaymentInput) { in.Currency = "dollars" }},
		{"property mismatch", func(in *PaymentInput) { in.PropertyID = &f.otherProperty.ID }},
		{"tenant mismatch", func(in *PaymentInput) { in.TenantCognitoID = secondTenantID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := rentInput()
			in.LeaseID = &lease.ID
			tt.mutate(&in)

			_, err := f.payments.Record(context.Background(), managerID, in)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}

func TestRecordLeaseOfAnotherManager(t *testing.T) {
	f := newFixture(t)
	lease := f.activeLease(t, tenantID, "2024-01-01", "2024-12-31")

	in := rentInput()
	in.LeaseID = &lease.ID
	_, err := f.payments.Record(context.Background(), otherManagerID, in)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	missing := uuid.New()
	in.LeaseID = &missing
	_, err = f.payments.Record(context.Background(), managerID, in)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordAgainstPropertyOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.apps.Submit(ctx, tenantID, f.property.ID, contact(tenantID))
	require.NoError(t, err)

	in := rentInput()
	in.Type = models.PaymentTypeApplicationFee
	in.PropertyID = &f.property.ID

	_, err = f.payments.Record(ctx, managerID, in)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed, "tenant must be explicit without a lease")

	in.TenantCognitoID = strangerID
	_, err = f.payments.Record(ctx, managerID, in)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "tenant has no relationship with the property")

	in.TenantCognitoID = tenantID
	_, err = f.payments.Record(ctx, otherManagerID, in)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	payment, err := f.payments.Record(ctx, managerID, in)
	require.NoError(t, err)
	assert.Equal(t, tenantID, payment.TenantCognitoID)
	assert.Nil(t, payment.LeaseID)
}

func TestUpdateStatusAcceptsAnyMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lease := f.activeLease(t, tenantID, "2024-01-01", "2024-12-31")
	in := rentInput()
	in.LeaseID = &lease.ID
	payment, err := f.payments.Record(ctx, managerID, in)
	require.NoError(t, err)

	ref := "TX-991"
	path := []models.PaymentStatus{
		models.PaymentStatusCompleted,
		models.PaymentStatusRefunded,
		models.PaymentStatusPending,
		models.PaymentStatusFailed,
		models.PaymentStatusCompleted,
	}
	for _, status := range path {
		payment, err = f.payments.UpdateStatus(ctx, managerID, payment.ID, status, PaymentStatusUpdate{ReferenceNumber: &ref})
		require.NoError(t, err)
		assert.Equal(t, status, payment.Status)
	}

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.ReferenceNumber)
	assert.Equal(t, ref, *stored.ReferenceNumber)
	assert.Nil(t, stored.ReceiptNumber)

	_, err = f.payments.UpdateStatus(ctx, otherManagerID, payment.ID, models.PaymentStatusFailed, PaymentStatusUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.payments.UpdateStatus(ctx, managerID, payment.ID, "SETTLED", PaymentStatusUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestPaymentVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lease := f.activeLease(t, tenantID, "2024-01-01", "2024-12-31")
	in := rentInput()
	in.LeaseID = &lease.ID
	payment, err := f.payments.Record(ctx, managerID, in)
	require.NoError(t, err)
	page := utils.Pagination{Page: 1, Limit: 10}

	got, err := f.payments.Get(ctx, &models.UserInfo{CognitoID: tenantID, Role: models.RoleTenant}, payment.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(1500)))

	_, err = f.payments.Get(ctx, &models.UserInfo{CognitoID: secondTenantID, Role: models.RoleTenant}, payment.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, total, err := f.payments.List(ctx, &models.UserInfo{CognitoID: managerID, Role: models.RoleManager},
		PaymentFilter{LeaseID: &lease.ID, Type: models.PaymentTypeRent}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = f.payments.List(ctx, &models.UserInfo{CognitoID: managerID, Role: models.RoleManager},
		PaymentFilter{Status: models.PaymentStatusCompleted}, page)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = f.payments.List(ctx, &models.UserInfo{CognitoID: "admin", Role: models.RoleAdmin}, PaymentFilter{}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = f.payments.List(ctx, &models.UserInfo{CognitoID: "x", Role: "guest"}, PaymentFilter{}, page)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}
