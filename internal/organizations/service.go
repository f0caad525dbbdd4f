package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/utils"
	"github.com/spherelink/backend/pkg/validation"
)

// Store is the persistence the organization service needs.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	CreateWithStaff(ctx context.Context, org *models.Organization, staff *auth.CreateUserParams, assignedBy uuid.UUID) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string) ([]models.OrganizationSummary, error)
	Counts(ctx context.Context) (models.OrganizationCounts, error)
	UpsertRole(ctx context.Context, p RoleParams) (*models.RoleAssignment, error)
	GetRole(ctx context.Context, id uuid.UUID) (*models.RoleAssignment, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	SetRoleActive(ctx context.Context, id uuid.UUID, active bool) (*models.RoleAssignment, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.Member, error)
	CreateUserWithRole(ctx context.Context, p auth.CreateUserParams, orgID uuid.UUID, role models.Role, assignedBy uuid.UUID) (*models.User, error)
	ImportMember(ctx context.Context, orgID uuid.UUID, email string, role models.Role, assignedBy uuid.UUID, newPasswordHash func() (string, error)) (ImportedMember, error)
	DirectoryStats(ctx context.Context) (models.DirectoryStats, error)
}

// Notifier is told about new members. Delivery is best effort.
type Notifier interface {
	MemberAdded(ctx context.Context, org *models.Organization, user *models.User, role models.Role)
}

type nopNotifier struct{}

func (nopNotifier) MemberAdded(context.Context, *models.Organization, *models.User, models.Role) {}

// Service manages organizations, role assignments and member imports.
// Every operation requires an effective super admin.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger

	tempPasswordHash func() (string, error)
}

// NewService creates an organization service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{store: store, notifier: notifier, logger: logger, tempPasswordHash: temporaryPasswordHash}
}

func temporaryPasswordHash() (string, error) {
	pw, err := utils.TemporaryPassword()
	if err != nil {
		return "", err
	}
	return utils.HashPassword(pw)
}

func authorize(p *access.Snapshot) error {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return apperr.ErrPermission
	}
	return nil
}

// NewUser describes an account created by an administrator.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"max=255"`
}

func (u *NewUser) normalize() {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.FullName = strings.TrimSpace(u.FullName)
}

func (u NewUser) params() (auth.CreateUserParams, error) {
	hash, err := utils.HashPassword(u.Password)
	if err != nil {
		return auth.CreateUserParams{}, err
	}
	return auth.CreateUserParams{Username: u.Username, Email: u.Email, PasswordHash: hash, FullName: u.FullName}, nil
}

// OrganizationInput holds the editable organization fields.
type OrganizationInput struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Website     string `json:"website" validate:"omitempty,url,max=200"`
	IsActive    *bool  `json:"is_active"`
}

func (in *OrganizationInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Website = strings.TrimSpace(in.Website)
}

// CreateInput creates an organization, optionally with its first staff user.
type CreateInput struct {
	OrganizationInput
	InitialStaff *NewUser `json:"initial_staff"`
}

// Created is the result of Create.
type Created struct {
	Organization *models.Organization `json:"organization"`
	Staff        *models.UserPublic   `json:"staff,omitempty"`
}

// Create adds an organization and, when requested, a staff user in the same transaction.
func (s *Service) Create(ctx context.Context, p *access.Snapshot, in CreateInput) (*Created, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := validation.Struct(in.OrganizationInput); err != nil {
		return nil, err
	}
	org := &models.Organization{Name: in.Name, Description: in.Description, Email: in.Email, Website: in.Website, IsActive: true}
	if in.IsActive != nil {
		org.IsActive = *in.IsActive
	}

	if in.InitialStaff == nil {
		if err := s.store.Create(ctx, org); err != nil {
			return nil, fmt.Errorf("create organization: %w", err)
		}
		s.logger.Info("organization created", zap.String("organization_id", org.ID.String()))
		return &Created{Organization: org}, nil
	}

	in.InitialStaff.normalize()
	if err := validation.Struct(in.InitialStaff); err != nil {
		return nil, err
	}
	params, err := in.InitialStaff.params()
	if err != nil {
		return nil, err
	}
	staff, err := s.store.CreateWithStaff(ctx, org, &params, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	s.logger.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("staff_user_id", staff.ID.String()))
	s.notifier.MemberAdded(ctx, org, staff, models.RoleStaff)
	pub := staff.ToPublic()
	return &Created{Organization: org, Staff: &pub}, nil
}

// Update replaces the editable fields of an organization.
func (s *Service) Update(ctx context.Context, p *access.Snapshot, id uuid.UUID, in OrganizationInput) (*models.Organization, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	org, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	org.Name, org.Description, org.Email, org.Website = in.Name, in.Description, in.Email, in.Website
	if in.IsActive != nil {
		org.IsActive = *in.IsActive
	}
	if err := s.store.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	return org, nil
}

// Delete removes an organization with its roles, invitations and events.
func (s *Service) Delete(ctx context.Context, p *access.Snapshot, id uuid.UUID) error {
	if err := authorize(p); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("organization deleted", zap.String("organization_id", id.String()))
	return nil
}

// Listing is the organization list with totals.
type Listing struct {
	Organizations []models.OrganizationSummary `json:"organizations"`
	Counts        models.OrganizationCounts    `json:"counts"`
}

// List returns organizations matching search plus overall totals.
func (s *Service) List(ctx context.Context, p *access.Snapshot, search string) (*Listing, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	orgs, err := s.store.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count organizations: %w", err)
	}
	if orgs == nil {
		orgs = []models.OrganizationSummary{}
	}
	return &Listing{Organizations: orgs, Counts: counts}, nil
}

// Detail is one organization with its members grouped by role.
type Detail struct {
	Organization *models.Organization `json:"organization"`
	Members      []models.Member      `json:"members"`
	RoleCounts   map[models.Role]int  `json:"role_counts"`
}

// Get returns an organization with its members and an active-role breakdown.
func (s *Service) Get(ctx context.Context, p *access.Snapshot, id uuid.UUID) (*Detail, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	org, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []models.Member{}
	}
	counts := make(map[models.Role]int, len(models.Roles))
	for _, r := range models.Roles {
		counts[r] = 0
	}
	for _, m := range members {
		if m.IsActive {
			counts[m.Role]++
		}
	}
	return &Detail{Organization: org, Members: members, RoleCounts: counts}, nil
}

// Members returns the role assignments of an organization.
func (s *Service) Members(ctx context.Context, p *access.Snapshot, id uuid.UUID) ([]models.Member, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, id)
}

// AssignRole gives userID the role in orgID, replacing and reactivating any
// existing assignment there.
func (s *Service) AssignRole(ctx context.Context, p *access.Snapshot, userID, orgID uuid.UUID, role models.Role) (*models.RoleAssignment, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.NewValidation("role", "unknown role")
	}
	ra, err := s.store.UpsertRole(ctx, RoleParams{UserID: userID, OrganizationID: orgID, Role: role, AssignedBy: &p.UserID})
	if err != nil {
		return nil, err
	}
	s.logger.Info("role assigned",
		zap.String("user_id", userID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("role", string(role)))
	return ra, nil
}

// RemoveRole deletes a role assignment. The user account stays.
func (s *Service) RemoveRole(ctx context.Context, p *access.Snapshot, assignmentID uuid.UUID) error {
	if err := authorize(p); err != nil {
		return err
	}
	if err := s.store.DeleteRole(ctx, assignmentID); err != nil {
		return err
	}
	s.logger.Info("role removed", zap.String("assignment_id", assignmentID.String()))
	return nil
}

// SetRoleActive activates or deactivates a role assignment.
func (s *Service) SetRoleActive(ctx context.Context, p *access.Snapshot, assignmentID uuid.UUID, active bool) (*models.RoleAssignment, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	return s.store.SetRoleActive(ctx, assignmentID, active)
}

// CreateUser creates an account holding role in orgID. Only member and staff
// may be granted this way.
func (s *Service) CreateUser(ctx context.Context, p *access.Snapshot, orgID uuid.UUID, in NewUser, role models.Role) (*models.User, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleStaff {
		return nil, apperr.NewValidation("role", "must be member or staff")
	}
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	org, err := s.store.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	params, err := in.params()
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUserWithRole(ctx, params, orgID, role, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created in organization",
		zap.String("user_id", u.ID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("role", string(role)))
	s.notifier.MemberAdded(ctx, org, u, role)
	return u, nil
}

// DirectoryStats returns user and role totals across all organizations.
func (s *Service) DirectoryStats(ctx context.Context, p *access.Snapshot) (models.DirectoryStats, error) {
	if err := authorize(p); err != nil {
		return models.DirectoryStats{}, err
	}
	return s.store.DirectoryStats(ctx)
}
