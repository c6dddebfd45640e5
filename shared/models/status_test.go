package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationStatusTable(t *testing.T) {
	all := []ApplicationStatus{
		ApplicationStatusPending,
		ApplicationStatusApproved,
		ApplicationStatusRejected,
		ApplicationStatusWithdrawn,
	}

	for _, from := range all {
		for _, to := range all {
			want := from == ApplicationStatusPending && to != ApplicationStatusPending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, ApplicationStatusPending.IsTerminal())
	assert.True(t, ApplicationStatusApproved.IsTerminal())
	assert.True(t, ApplicationStatusRejected.IsTerminal())
	assert.True(t, ApplicationStatusWithdrawn.IsTerminal())
}

func TestApplicationDecisions(t *testing.T) {
	assert.True(t, ApplicationStatusApproved.IsDecision())
	assert.True(t, ApplicationStatusRejected.IsDecision())
	assert.False(t, ApplicationStatusWithdrawn.IsDecision())
	assert.False(t, ApplicationStatusPending.IsDecision())
}

func TestLeaseStatusTable(t *testing.T) {
	allowed := map[LeaseStatus]map[LeaseStatus]bool{
		LeaseStatusPendingSignature: {LeaseStatusActive: true, LeaseStatusTerminated: true},
		LeaseStatusActive:           {LeaseStatusTerminated: true, LeaseStatusCompleted: true},
	}
	all := []LeaseStatus{
		LeaseStatusPendingSignature,
		LeaseStatusActive,
		LeaseStatusTerminated,
		LeaseStatusCompleted,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, LeaseStatusTerminated.IsTerminal())
	assert.True(t, LeaseStatusCompleted.IsTerminal())
	assert.False(t, LeaseStatusActive.IsTerminal())
}

func TestParseStatuses(t *testing.T) {
	s, err := ParseApplicationStatus("APPROVED")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusApproved, s)

	_, err = ParseApplicationStatus("approved")
	assert.Error(t, err)

	ls, err := ParseLeaseStatus("PENDING_SIGNATURE")
	require.NoError(t, err)
	assert.Equal(t, LeaseStatusPendingSignature, ls)

	_, err = ParseLeaseStatus("EXPIRED")
	assert.Error(t, err)

	_, err = ParsePaymentStatus("REFUNDED")
	assert.NoError(t, err)
	_, err = ParsePaymentType("TIP")
	assert.Error(t, err)

	_, err = ParseRole("landlord")
	assert.Error(t, err)
}

func TestLeaseOverlapIsInclusive(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	lease := Lease{StartDate: day("2024-01-01"), EndDate: day("2024-12-31")}

	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"inside", "2024-06-01", "2024-06-30", true},
		{"touches end", "2024-12-31", "2025-06-30", true},
		{"touches start", "2023-06-01", "2024-01-01", true},
		{"covers", "2023-01-01", "2025-12-31", true},
		{"after", "2025-01-01", "2025-12-31", false},
		{"before", "2023-01-01", "2023-12-31", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lease.Overlaps(day(tt.start), day(tt.end)))
		})
	}

	assert.True(t, lease.Covers(day("2024-03-15")))
	assert.False(t, lease.Covers(day("2025-03-15")))
}

func TestRoleCapabilities(t *testing.T) {
	tenant := &UserInfo{CognitoID: "t1", Role: RoleTenant}
	manager := &UserInfo{CognitoID: "m1", Role: RoleManager}
	admin := &UserInfo{CognitoID: "a1", Role: RoleAdmin}

	assert.True(t, tenant.Can(CapSubmitApplication))
	assert.False(t, tenant.Can(CapDecideApplication))
	assert.True(t, manager.Can(CapCreateLease))
	assert.False(t, manager.Can(CapSubmitApplication))
	assert.True(t, admin.Can(CapReadLeases))
	assert.False(t, admin.Can(CapTransitionLease))

	assert.True(t, tenant.IsTenant())
	assert.False(t, tenant.IsManager())
	assert.True(t, manager.IsManager())
	assert.False(t, admin.IsTenant() || admin.IsManager())

	var nobody *UserInfo
	assert.False(t, nobody.Can(CapReadLeases))
}
