package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/spherelink/backend/internal/models"
)

func TestCan(t *testing.T) {
	creator := user(false, grant(models.RoleMember, true, true))
	author := user(false, grant(models.RoleMember, true, true))
	staff := user(false, grant(models.RoleStaff, true, true))
	member := user(false, grant(models.RoleMember, true, true))
	superAdmin := user(false, grant(models.RoleSuperAdmin, true, true))
	mixedAdmin := user(false, grant(models.RoleSuperAdmin, true, true), grant(models.RoleStaff, true, true))

	event := Resource{EventCreator: creator.UserID}
	comment := Resource{EventCreator: creator.UserID, AuthorID: author.UserID}

	tests := []struct {
		name   string
		s      *Snapshot
		action Action
		res    Resource
		want   bool
	}{
		{"anonymous cannot create", nil, EventCreate, Resource{}, false},
		{"member can create", member, EventCreate, Resource{}, true},
		{"creator can edit", creator, EventEdit, event, true},
		{"staff cannot edit others", staff, EventEdit, event, false},
		{"superuser cannot edit others", user(true), EventEdit, event, false},
		{"creator views registrations", creator, EventViewRegistrations, event, true},
		{"staff cannot view registrations", staff, EventViewRegistrations, event, false},
		{"creator deletes", creator, EventDelete, event, true},
		{"staff deletes", staff, EventDelete, event, true},
		{"member cannot delete", member, EventDelete, event, false},
		{"staff exports", staff, EventExport, event, true},
		{"member cannot export", member, EventExport, event, false},
		{"author deletes comment", author, CommentDelete, comment, true},
		{"event creator deletes comment", creator, CommentDelete, comment, true},
		{"staff deletes comment", staff, CommentDelete, comment, true},
		{"member cannot delete comment", member, CommentDelete, comment, false},
		{"super admin manages orgs", superAdmin, OrganizationManage, Resource{}, true},
		{"mixed super admin cannot manage orgs", mixedAdmin, OrganizationManage, Resource{}, false},
		{"superuser manages orgs", user(true), OrganizationManage, Resource{}, true},
		{"unknown action", superAdmin, Action("nope"), Resource{}, false},
		{"nil creator never matches", &Snapshot{UserID: uuid.New()}, EventEdit, Resource{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.s, tt.action, tt.res))
		})
	}
}

func TestSummarize(t *testing.T) {
	g := grant(models.RoleStaff, true, true)
	g.OrganizationName = "Acme"
	s := user(false, g)

	sum := Summarize(s)
	assert.Equal(t, Staff, sum.EffectiveRole)
	assert.True(t, sum.IsStaffOrAbove)
	assert.False(t, sum.IsSuperAdmin)
	assert.Equal(t, "Acme", sum.OrganizationName)
	assert.Equal(t, "staff", sum.OrganizationRole)

	assert.Equal(t, Anonymous, Summarize(nil).EffectiveRole)
}
