package enums

import "slices"

// MemberRole is what a back-office staff member may do.
type MemberRole string

const (
	// Everything, including store and warehouse setup.
	MemberRoleAdmin MemberRole = "admin"
	// Operator work plus return approvals and refunds.
	MemberRoleManager MemberRole = "manager"
	// Stock changes and fulfillment.
	MemberRoleWarehouse MemberRole = "warehouse"
	// Orders and return intake; no stock or approval changes.
	MemberRoleSupport MemberRole = "support"
)

var memberRoles = []MemberRole{MemberRoleAdmin, MemberRoleManager, MemberRoleWarehouse, MemberRoleSupport}

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool {
	return slices.Contains(memberRoles, m)
}
