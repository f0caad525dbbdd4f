package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Email       string    `json:"email"`
	Website     string    `json:"website"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role is a user's role inside one organization.
type Role string

const (
	RoleMember     Role = "member"
	RoleStaff      Role = "staff"
	RoleOrgAdmin   Role = "org_admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every role in ascending order of privilege.
var Roles = []Role{RoleMember, RoleStaff, RoleOrgAdmin, RoleSuperAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleStaff, RoleOrgAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// RoleAssignment links a user to an organization with a role.
// (user_id, organization_id) is unique; reassignment updates the row in place.
type RoleAssignment struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"is_active"`
	AssignedBy     *uuid.UUID `json:"assigned_by,omitempty"`
	AssignedAt     time.Time  `json:"assigned_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Member is a role assignment joined with its user, for directory listings.
type Member struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// OrganizationCounts summarizes organizations for the admin list.
type OrganizationCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// DirectoryStats summarizes users and role distribution across all organizations.
type DirectoryStats struct {
	TotalUsers        int          `json:"total_users"`
	UsersWithRoles    int          `json:"users_with_roles"`
	UsersWithoutRoles int          `json:"users_without_roles"`
	RoleDistribution  map[Role]int `json:"role_distribution"`
}

// OrganizationSummary is an organization with its member and event counts.
type OrganizationSummary struct {
	Organization
	MemberCount int `json:"member_count"`
	EventCount  int `json:"event_count"`
}
