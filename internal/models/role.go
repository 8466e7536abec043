package models

// Role is the closed set of account roles
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClient  Role = "client"
	RolePartner Role = "partner"
)

// Capability names an action guarded by role
type Capability string

const (
	CapManageUsers        Capability = "users:manage"
	CapManagePartners     Capability = "partners:manage"
	CapViewAdminStats     Capability = "stats:admin"
	CapManageReferrals    Capability = "referrals:manage"
	CapViewOwnReferrals   Capability = "referrals:own"
	CapViewAllProjects    Capability = "projects:all"
	CapManageProjects     Capability = "projects:manage"
	CapManagePortfolio    Capability = "portfolio:manage"
	CapManagePayments     Capability = "payments:manage"
	CapViewAllTickets     Capability = "tickets:all"
	CapConfigureGateway   Capability = "gateway:configure"
	CapCreateOwnProjects  Capability = "projects:create"
	CapCreateOwnPayments  Capability = "payments:create"
	CapViewPartnerProfile Capability = "partners:own"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapManageUsers:       true,
		CapManagePartners:    true,
		CapViewAdminStats:    true,
		CapManageReferrals:   true,
		CapViewAllProjects:   true,
		CapManageProjects:    true,
		CapManagePortfolio:   true,
		CapManagePayments:    true,
		CapViewAllTickets:    true,
		CapConfigureGateway:  true,
		CapCreateOwnProjects: true,
		CapCreateOwnPayments: true,
	},
	RoleClient: {
		CapCreateOwnProjects: true,
		CapCreateOwnPayments: true,
	},
	RolePartner: {
		CapViewOwnReferrals:   true,
		CapViewPartnerProfile: true,
	},
}

// ParseRole returns the role for s and whether it is known
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role holds the capability
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// SelfRegistrable reports whether the role may be chosen at sign-up
func (r Role) SelfRegistrable() bool {
	return r == RoleClient || r == RolePartner
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uint
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
