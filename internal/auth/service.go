package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/utils"
	"github.com/spherelink/backend/pkg/validation"
)

// Landing pages returned after login.
const (
	LandingOrganizations = "organizations"
	LandingEvents        = "events"
)

// UserStore is the user persistence the service needs.
type UserStore interface {
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	List(ctx context.Context) ([]models.UserPublic, error)
}

// SnapshotLoader loads a user's role assignments for authorization.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, userID uuid.UUID) (*access.Snapshot, error)
}

// Service implements sign-up, login gating and user listing.
type Service struct {
	users     UserStore
	snapshots SnapshotLoader
	jwt       *JWTService
	logger    *zap.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, snapshots SnapshotLoader, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, snapshots: snapshots, jwt: jwt, logger: logger}
}

// RegisterInput is a self sign-up request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"max=255"`
}

// RegisterResult carries the new account and a session token. The token lets
// a role-less account answer an invitation; login stays gated until a role exists.
type RegisterResult struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Register creates an account. The new user holds no role and cannot log in
// until an organization grants one.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, CreateUserParams{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	token, err := s.jwt.Generate(u.ID, u.Username, u.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("username", u.Username))
	return &RegisterResult{Token: token, User: u.ToPublic()}, nil
}

// LoginInput accepts a username or an email as Login.
type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token   string            `json:"token"`
	User    models.UserPublic `json:"user"`
	Landing string            `json:"landing"`
	Access  access.Summary    `json:"access"`
}

// Login authenticates credentials. Non-superusers must hold an active role in
// an active organization.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.users.GetByLogin(ctx, strings.TrimSpace(in.Login))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive || !utils.CheckPassword(in.Password, u.Password) {
		return nil, apperr.ErrInvalidCredentials
	}

	snap, err := s.snapshots.LoadSnapshot(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	if !snap.IsSuperuser && !access.HasActiveOrganization(snap) {
		s.logger.Info("login refused: no active organization", zap.String("user_id", u.ID.String()))
		return nil, apperr.ErrNoActiveOrg
	}

	token, err := s.jwt.Generate(u.ID, u.Username, u.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	landing := LandingEvents
	if access.IsSuperAdmin(snap) {
		landing = LandingOrganizations
	}
	return &LoginResult{
		Token:   token,
		User:    u.ToPublic(),
		Landing: landing,
		Access:  access.Summarize(snap),
	}, nil
}

// List returns every user. Super admins only.
func (s *Service) List(ctx context.Context, principal *access.Snapshot) ([]models.UserPublic, error) {
	if !access.Can(principal, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	return s.users.List(ctx)
}
