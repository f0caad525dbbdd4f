package profiles

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

type memProfiles map[uuid.UUID]*models.Profile

func (m memProfiles) Get(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := m[id]
	if !ok {
		p = &models.Profile{UserID: id}
		m[id] = p
	}
	cp := *p
	return &cp, nil
}

func (m memProfiles) SetBio(ctx context.Context, id uuid.UUID, bio string) (*models.Profile, error) {
	p, _ := m.Get(ctx, id)
	p.Bio = bio
	m[id] = p
	return p, nil
}

func (m memProfiles) SetPhotoKey(ctx context.Context, id uuid.UUID, key string) (*models.Profile, error) {
	p, _ := m.Get(ctx, id)
	p.PhotoKey = key
	m[id] = p
	return p, nil
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

type memSnapshots map[uuid.UUID]*access.Snapshot

func (m memSnapshots) LoadSnapshot(_ context.Context, id uuid.UUID) (*access.Snapshot, error) {
	s, ok := m[id]
	if !ok {
		return &access.Snapshot{UserID: id}, nil
	}
	return s, nil
}

type fakeSigner struct{ fail bool }

func (f fakeSigner) PresignImageUpload(_ context.Context, key, _ string) (string, error) {
	return "https://s3.example.com/put/" + key, nil
}

func (f fakeSigner) PresignImageDownload(_ context.Context, key string) (string, error) {
	if f.fail {
		return "", errors.New("signer down")
	}
	return "https://s3.example.com/get/" + key, nil
}

func (fakeSigner) PresignExpire() time.Duration { return 15 * time.Minute }

type fixture struct {
	svc      *Service
	profiles memProfiles
	users    memUsers
	snaps    memSnapshots
}

func newFixture(signer PhotoSigner) *fixture {
	f := &fixture{profiles: memProfiles{}, users: memUsers{}, snaps: memSnapshots{}}
	f.svc = NewService(f.profiles, f.users, f.snaps, signer, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) user(name string, grants ...access.Grant) *access.Snapshot {
	u := &models.User{ID: uuid.New(), Username: name, Email: name + "@example.com", IsActive: true}
	f.users[u.ID] = u
	s := &access.Snapshot{UserID: u.ID, Username: u.Username, Email: u.Email, Grants: grants}
	f.snaps[u.ID] = s
	return s
}

func TestStanding(t *testing.T) {
	orgID := uuid.New()
	tests := []struct {
		name string
		snap *access.Snapshot
		want Standing
	}{
		{"superuser", &access.Snapshot{UserID: uuid.New(), IsSuperuser: true}, Standing{Role: "Super Administrator", Organization: "System Platform", IsSuperuser: true}},
		{"staff", &access.Snapshot{UserID: uuid.New(), Grants: []access.Grant{
			{OrganizationID: orgID, OrganizationName: "Chess Club", OrganizationActive: true, Role: models.RoleStaff, Active: true},
		}}, Standing{Role: "Staff", Organization: "Chess Club"}},
		{"inactive organization", &access.Snapshot{UserID: uuid.New(), Grants: []access.Grant{
			{OrganizationID: orgID, OrganizationName: "Chess Club", Role: models.RoleMember, Active: true},
		}}, Standing{Role: "No Role Assigned", Organization: "No Organization"}},
		{"no roles", &access.Snapshot{UserID: uuid.New()}, Standing{Role: "No Role Assigned", Organization: "No Organization"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, standingOf(tt.snap))
		})
	}
}

func TestGetOtherProfile(t *testing.T) {
	f := newFixture(fakeSigner{})
	me := f.user("ana")
	other := f.user("ben", access.Grant{OrganizationID: uuid.New(), OrganizationName: "Rowing", OrganizationActive: true, Role: models.RoleOrgAdmin, Active: true})
	f.profiles[other.UserID] = &models.Profile{UserID: other.UserID, Bio: "Cox", PhotoKey: "profile_photos/x.png"}

	v, err := f.svc.Get(context.Background(), me, other.UserID)
	require.NoError(t, err)
	assert.False(t, v.IsOwn)
	assert.Equal(t, "ben", v.User.Username)
	assert.Equal(t, "Cox", v.Bio)
	assert.Equal(t, "https://s3.example.com/get/profile_photos/x.png", v.PhotoURL)
	assert.Equal(t, Standing{Role: "Organization Admin", Organization: "Rowing"}, v.Standing)

	_, err = f.svc.Get(context.Background(), me, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Get(context.Background(), nil, other.UserID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestMineCreatesEmptyProfile(t *testing.T) {
	f := newFixture(fakeSigner{fail: true})
	me := f.user("ana")

	v, err := f.svc.Mine(context.Background(), me)
	require.NoError(t, err)
	assert.True(t, v.IsOwn)
	assert.Empty(t, v.Bio)
	assert.Empty(t, v.PhotoURL)
	assert.Contains(t, f.profiles, me.UserID)
}

func TestUpdateBio(t *testing.T) {
	f := newFixture(nil)
	me := f.user("ana")

	v, err := f.svc.Update(context.Background(), me, UpdateInput{Bio: "  Trail runner  "})
	require.NoError(t, err)
	assert.Equal(t, "Trail runner", v.Bio)

	_, err = f.svc.Update(context.Background(), me, UpdateInput{Bio: strings.Repeat("é", MaxBioLength+1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Trail runner", f.profiles[me.UserID].Bio)
}

func TestPhotoUploadURL(t *testing.T) {
	f := newFixture(fakeSigner{})
	me := f.user("ana")

	up, err := f.svc.PhotoUploadURL(context.Background(), me, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "profile_photos/"+me.UserID.String()+"/"))
	assert.Equal(t, "https://s3.example.com/put/"+up.Key, up.URL)
	assert.Equal(t, time.Date(2026, 4, 1, 10, 15, 0, 0, time.UTC), up.ExpiresAt)
	assert.Equal(t, up.Key, f.profiles[me.UserID].PhotoKey)

	_, err = f.svc.PhotoUploadURL(context.Background(), me, "application/zip")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = newFixture(nil).svc.PhotoUploadURL(context.Background(), me, "image/png")
	assert.Error(t, err)
}
