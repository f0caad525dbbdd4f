// Package profiles serves user profiles: a bio, an optional photo kept in
// S3, and the role and organization the user currently acts in.
package profiles

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/storage"
)

// MaxBioLength caps the bio in characters.
const MaxBioLength = 2000

// Store is the profile persistence the service needs.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	SetBio(ctx context.Context, userID uuid.UUID, bio string) (*models.Profile, error)
	SetPhotoKey(ctx context.Context, userID uuid.UUID, key string) (*models.Profile, error)
}

// UserLookup loads accounts.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SnapshotLoader loads another user's role assignments.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, userID uuid.UUID) (*access.Snapshot, error)
}

// PhotoSigner issues presigned URLs for profile photos.
type PhotoSigner interface {
	PresignImageUpload(ctx context.Context, key, contentType string) (string, error)
	PresignImageDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// Service implements profile viewing and editing.
type Service struct {
	store  Store
	users  UserLookup
	snaps  SnapshotLoader
	photos PhotoSigner
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a profile service. photos may be nil when S3 is not configured.
func NewService(store Store, users UserLookup, snaps SnapshotLoader, photos PhotoSigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, snaps: snaps, photos: photos, logger: logger, now: time.Now}
}

// Standing is the role line shown on a profile.
type Standing struct {
	Role         string `json:"role"`
	Organization string `json:"organization"`
	IsSuperuser  bool   `json:"is_superuser"`
}

// View is a profile as shown to one caller.
type View struct {
	User     models.UserPublic `json:"user"`
	Bio      string            `json:"bio"`
	PhotoURL string            `json:"photo_url,omitempty"`
	Standing Standing          `json:"standing"`
	IsOwn    bool              `json:"is_own"`
}

var roleLabels = map[models.Role]string{
	models.RoleMember:     "Member",
	models.RoleStaff:      "Staff",
	models.RoleOrgAdmin:   "Organization Admin",
	models.RoleSuperAdmin: "Super Admin",
}

// standingOf describes the first active role of s in an active organization.
func standingOf(s *access.Snapshot) Standing {
	if s.IsSuperuser {
		return Standing{Role: "Super Administrator", Organization: "System Platform", IsSuperuser: true}
	}
	if g, ok := access.ActiveOrganization(s); ok {
		return Standing{Role: roleLabels[g.Role], Organization: g.OrganizationName}
	}
	return Standing{Role: "No Role Assigned", Organization: "No Organization"}
}

// Get returns the profile of userID. Any signed-in user may view any profile.
func (s *Service) Get(ctx context.Context, p *access.Snapshot, userID uuid.UUID) (*View, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	prof, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	snap := p
	if userID != p.UserID {
		if snap, err = s.snaps.LoadSnapshot(ctx, userID); err != nil {
			return nil, fmt.Errorf("load roles: %w", err)
		}
	}
	return s.view(ctx, u, prof, snap, userID == p.UserID), nil
}

// Mine returns the caller's own profile.
func (s *Service) Mine(ctx context.Context, p *access.Snapshot) (*View, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	return s.Get(ctx, p, p.UserID)
}

func (s *Service) view(ctx context.Context, u *models.User, prof *models.Profile, snap *access.Snapshot, own bool) *View {
	v := &View{User: u.ToPublic(), Bio: prof.Bio, Standing: standingOf(snap), IsOwn: own}
	if s.photos != nil && prof.PhotoKey != "" {
		if url, err := s.photos.PresignImageDownload(ctx, prof.PhotoKey); err == nil {
			v.PhotoURL = url
		} else {
			s.logger.Warn("presign profile photo", zap.String("user_id", u.ID.String()), zap.Error(err))
		}
	}
	return v
}

// UpdateInput edits the caller's profile.
type UpdateInput struct {
	Bio string `json:"bio"`
}

// Update replaces the caller's bio.
func (s *Service) Update(ctx context.Context, p *access.Snapshot, in UpdateInput) (*View, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	bio := strings.TrimSpace(in.Bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperr.NewValidation("bio", fmt.Sprintf("must be at most %d characters", MaxBioLength))
	}
	if _, err := s.store.SetBio(ctx, p.UserID, bio); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, p, p.UserID)
}

// PhotoUpload is a presigned upload target for a profile photo.
type PhotoUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PhotoUploadURL presigns a photo upload for the caller and records its key.
func (s *Service) PhotoUploadURL(ctx context.Context, p *access.Snapshot, contentType string) (*PhotoUpload, error) {
	if p == nil {
		return nil, apperr.ErrPermission
	}
	if s.photos == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}
	key, err := storage.ProfilePhotoKey(p.UserID, contentType)
	if err != nil {
		return nil, apperr.NewValidation("content_type", err.Error())
	}
	url, err := s.photos.PresignImageUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign photo upload: %w", err)
	}
	if _, err := s.store.SetPhotoKey(ctx, p.UserID, key); err != nil {
		return nil, fmt.Errorf("record photo key: %w", err)
	}
	s.logger.Info("profile photo upload issued", zap.String("user_id", p.UserID.String()), zap.String("key", key))
	return &PhotoUpload{URL: url, Key: key, ExpiresAt: s.now().Add(s.photos.PresignExpire())}, nil
}
