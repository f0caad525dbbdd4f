// Package access decides what a caller may do. Every function is pure: it
// reads a Snapshot loaded once per request and performs no I/O.
package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/spherelink/backend/internal/models"
)

// Grant is one role assignment as seen by the authorization engine.
type Grant struct {
	AssignmentID       uuid.UUID
	OrganizationID     uuid.UUID
	OrganizationName   string
	OrganizationActive bool
	Role               models.Role
	Active             bool
	AssignedAt         time.Time
}

// Snapshot is the caller's identity and role assignments at request start.
// Grants are ordered by assigned_at, then id. A nil Snapshot is anonymous.
type Snapshot struct {
	UserID      uuid.UUID
	Username    string
	Email       string
	IsSuperuser bool
	Grants      []Grant
}

// Level is the effective privilege level of a caller.
type Level int

const (
	Anonymous Level = iota
	Member
	Staff
	OrgAdmin
	SuperAdmin
)

func (l Level) String() string {
	switch l {
	case Member:
		return "member"
	case Staff:
		return "staff"
	case OrgAdmin:
		return "org_admin"
	case SuperAdmin:
		return "super_admin"
	}
	return "anonymous"
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func authenticated(s *Snapshot) bool {
	return s != nil && s.UserID != uuid.Nil
}

func activeGrants(s *Snapshot) []Grant {
	if s == nil {
		return nil
	}
	out := make([]Grant, 0, len(s.Grants))
	for _, g := range s.Grants {
		if g.Active {
			out = append(out, g)
		}
	}
	return out
}

// IsSuperAdmin reports whether the caller is a superuser, or holds at least
// one active super_admin role and no other active role anywhere.
func IsSuperAdmin(s *Snapshot) bool {
	if !authenticated(s) {
		return false
	}
	if s.IsSuperuser {
		return true
	}
	supers, others := 0, 0
	for _, g := range activeGrants(s) {
		if g.Role == models.RoleSuperAdmin {
			supers++
		} else {
			others++
		}
	}
	return supers > 0 && others == 0
}

// IsStaffOrAbove reports whether the caller is a superuser or holds any active
// staff, org_admin or super_admin role.
func IsStaffOrAbove(s *Snapshot) bool {
	if !authenticated(s) {
		return false
	}
	if s.IsSuperuser {
		return true
	}
	for _, g := range activeGrants(s) {
		switch g.Role {
		case models.RoleStaff, models.RoleOrgAdmin, models.RoleSuperAdmin:
			return true
		}
	}
	return false
}

// EffectiveRole returns the caller's highest privilege level. A super_admin
// grant held alongside other roles ranks as OrgAdmin.
func EffectiveRole(s *Snapshot) Level {
	if !authenticated(s) {
		return Anonymous
	}
	if IsSuperAdmin(s) {
		return SuperAdmin
	}
	level := Member
	for _, g := range activeGrants(s) {
		var l Level
		switch g.Role {
		case models.RoleSuperAdmin, models.RoleOrgAdmin:
			l = OrgAdmin
		case models.RoleStaff:
			l = Staff
		default:
			l = Member
		}
		if l > level {
			level = l
		}
	}
	return level
}

// ActiveOrganization returns the first active grant whose organization is
// itself active, or false when there is none.
func ActiveOrganization(s *Snapshot) (Grant, bool) {
	for _, g := range activeGrants(s) {
		if g.OrganizationActive {
			return g, true
		}
	}
	return Grant{}, false
}

// HasActiveOrganization reports whether the caller may sign in as a
// non-superuser.
func HasActiveOrganization(s *Snapshot) bool {
	_, ok := ActiveOrganization(s)
	return ok
}

// EventScope restricts which events a caller sees.
// All wins; otherwise OrganizationID nil means organization-less events only.
type EventScope struct {
	All            bool
	OrganizationID *uuid.UUID
}

// Visibility returns the event scope for the caller.
func Visibility(s *Snapshot) EventScope {
	if authenticated(s) && s.IsSuperuser {
		return EventScope{All: true}
	}
	if g, ok := ActiveOrganization(s); ok {
		id := g.OrganizationID
		return EventScope{OrganizationID: &id}
	}
	return EventScope{}
}

// Allows reports whether an event with the given organization is in scope.
func (sc EventScope) Allows(organizationID *uuid.UUID) bool {
	if sc.All {
		return true
	}
	if sc.OrganizationID == nil {
		return organizationID == nil
	}
	return organizationID != nil && *organizationID == *sc.OrganizationID
}
