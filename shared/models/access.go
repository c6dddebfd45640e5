package models

// Capability is an action a role may attempt. Ownership of the target is checked by the lifecycle managers.
type Capability string

const (
	CapSubmitApplication   Capability = "application:submit"
	CapWithdrawApplication Capability = "application:withdraw"
	CapDecideApplication   Capability = "application:decide"
	CapReadApplications    Capability = "application:read"
	CapCreateLease         Capability = "lease:create"
	CapTransitionLease     Capability = "lease:transition"
	CapReadLeases          Capability = "lease:read"
	CapRecordPayment       Capability = "payment:record"
	CapUpdatePayment       Capability = "payment:update"
	CapReadPayments        Capability = "payment:read"
	CapManageProperties    Capability = "property:manage"
	CapManageFavorites     Capability = "favorite:manage"
)

var roleCapabilities = map[Role][]Capability{
	RoleTenant: {
		CapSubmitApplication, CapWithdrawApplication, CapReadApplications,
		CapReadLeases, CapReadPayments, CapManageFavorites,
	},
	RoleManager: {
		CapDecideApplication, CapReadApplications,
		CapCreateLease, CapTransitionLease, CapReadLeases,
		CapRecordPayment, CapUpdatePayment, CapReadPayments,
		CapManageProperties,
	},
	// admins can read everything but never act on behalf of a tenant or manager
	RoleAdmin: {CapReadApplications, CapReadLeases, CapReadPayments},
}

// Can reports whether the user's role grants the capability
func (ui *UserInfo) Can(capability Capability) bool {
	if ui == nil {
		return false
	}
	for _, c := range roleCapabilities[ui.Role] {
		if c == capability {
			return true
		}
	}
	return false
}
