package invitations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/utils"
	"github.com/spherelink/backend/pkg/validation"
)

// tokenBytes is the entropy of an invitation token before encoding.
const tokenBytes = 32

// Store is the persistence the invitation service needs.
type Store interface {
	Create(ctx context.Context, inv *models.Invitation, tokenHash string) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error)
	ListForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Invitation, error)
	Accept(ctx context.Context, inv *models.Invitation, userID uuid.UUID, at time.Time) (*models.RoleAssignment, error)
	Decline(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// OrganizationLookup resolves the organization an invitation points at.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// Notifier sends the invitation email. Delivery is best effort.
type Notifier interface {
	InvitationSent(ctx context.Context, inv *models.Invitation, org *models.Organization, acceptURL string)
}

// Service runs the invitation lifecycle.
type Service struct {
	store    Store
	orgs     OrganizationLookup
	notifier Notifier
	expiry   time.Duration
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

// Options configures a Service.
type Options struct {
	Expiry  time.Duration
	BaseURL string
}

// NewService creates an invitation service.
func NewService(store Store, orgs OrganizationLookup, notifier Notifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 7 * 24 * time.Hour
	}
	return &Service{
		store:    store,
		orgs:     orgs,
		notifier: notifier,
		expiry:   opts.Expiry,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// HashToken returns the stored form of an invitation token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateInput is an invitation request.
type CreateInput struct {
	Email string      `json:"email" validate:"required,email,max=254"`
	Role  models.Role `json:"role" validate:"required"`
}

// Create invites an email address to orgID. The returned invitation carries
// the plain token; it is not retrievable afterwards.
func (s *Service) Create(ctx context.Context, p *access.Snapshot, orgID uuid.UUID, in CreateInput) (*models.Invitation, error) {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.NewValidation("role", "unknown role")
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}
	inv := &models.Invitation{
		Email:          in.Email,
		OrganizationID: orgID,
		Role:           in.Role,
		ExpiresAt:      s.now().Add(s.expiry),
		InvitedBy:      p.UserID,
	}
	if err := s.store.Create(ctx, inv, HashToken(token)); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	inv.Token = token
	metrics.InvitationsTotal.WithLabelValues(string(models.InvitationPending)).Inc()
	s.logger.Info("invitation created",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("role", string(in.Role)))

	if s.notifier != nil {
		s.notifier.InvitationSent(ctx, inv, org, s.baseURL+"/"+token)
	}
	return inv, nil
}

// pending loads the invitation for token and checks it can still be answered.
// An overdue pending invitation is flipped to expired on the way.
func (s *Service) pending(ctx context.Context, token string) (*models.Invitation, error) {
	if token == "" {
		return nil, apperr.ErrNotFound
	}
	inv, err := s.store.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if s.now().After(inv.ExpiresAt) {
		if inv.Status == models.InvitationPending {
			if err := s.store.MarkExpired(ctx, inv.ID); err != nil {
				s.logger.Warn("mark invitation expired", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
			}
		}
		return nil, apperr.ErrInvitationExpired
	}
	if inv.Status != models.InvitationPending {
		return nil, apperr.ErrInvitationProcessed
	}
	return inv, nil
}

// AcceptResult is returned by Accept.
type AcceptResult struct {
	Invitation *models.Invitation     `json:"invitation"`
	Assignment *models.RoleAssignment `json:"assignment"`
}

// Accept answers the invitation for token on behalf of p and grants p the
// invited role, assigned by the inviter. The token is the credential; the
// responder's email need not match the invited address.
func (s *Service) Accept(ctx context.Context, p *access.Snapshot, token string) (*AcceptResult, error) {
	if p == nil || p.UserID == uuid.Nil {
		return nil, apperr.ErrPermission
	}
	inv, err := s.pending(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ra, err := s.store.Accept(ctx, inv, p.UserID, now)
	if err != nil {
		return nil, err
	}
	inv.Status = models.InvitationAccepted
	inv.RespondedAt = &now
	metrics.InvitationsTotal.WithLabelValues(string(models.InvitationAccepted)).Inc()
	s.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.String("role", string(ra.Role)))
	return &AcceptResult{Invitation: inv, Assignment: ra}, nil
}

// Decline answers the invitation for token with a refusal.
func (s *Service) Decline(ctx context.Context, p *access.Snapshot, token string) (*models.Invitation, error) {
	if p == nil || p.UserID == uuid.Nil {
		return nil, apperr.ErrPermission
	}
	inv, err := s.pending(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.store.Decline(ctx, inv.ID, now); err != nil {
		return nil, err
	}
	inv.Status = models.InvitationDeclined
	inv.RespondedAt = &now
	metrics.InvitationsTotal.WithLabelValues(string(models.InvitationDeclined)).Inc()
	s.logger.Info("invitation declined",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("user_id", p.UserID.String()))
	return inv, nil
}

// ExpireStale marks overdue pending invitations expired and returns how many changed.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.ExpireStale(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	if n > 0 {
		metrics.InvitationsTotal.WithLabelValues(string(models.InvitationExpired)).Add(float64(n))
		s.logger.Info("invitations expired", zap.Int64("count", n))
	}
	return n, nil
}

// ListForOrganization returns the invitations of orgID.
func (s *Service) ListForOrganization(ctx context.Context, p *access.Snapshot, orgID uuid.UUID) ([]models.Invitation, error) {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	list, err := s.store.ListForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Invitation{}
	}
	return list, nil
}
