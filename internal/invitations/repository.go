package invitations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/internal/organizations"
	"github.com/spherelink/backend/pkg/database"
)

const invitationColumns = `id, email, organization_id, role, status, expires_at, invited_by, created_at, responded_at`

// Repository handles invitation persistence. Only the SHA-256 of a token is stored.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invitations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.OrganizationID, &inv.Role, &inv.Status, &inv.ExpiresAt, &inv.InvitedBy, &inv.CreatedAt, &inv.RespondedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Create inserts a pending invitation.
func (r *Repository) Create(ctx context.Context, inv *models.Invitation, tokenHash string) error {
	const q = `INSERT INTO invitations (email, organization_id, role, token_hash, expires_at, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at`
	err := r.pool.QueryRow(ctx, q, inv.Email, inv.OrganizationID, string(inv.Role), tokenHash, inv.ExpiresAt, inv.InvitedBy).
		Scan(&inv.ID, &inv.Status, &inv.CreatedAt)
	if database.IsForeignKeyViolation(err) {
		return apperr.ErrNotFound
	}
	return err
}

// GetByTokenHash returns the invitation whose token hashes to tokenHash.
func (r *Repository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	return scanInvitation(r.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token_hash = $1`, tokenHash))
}

// ListForOrganization returns an organization's invitations, newest first.
func (r *Repository) ListForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Invitation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	return list, rows.Err()
}

// respond moves a pending invitation to status. Zero rows means someone else
// already processed it.
func respond(ctx context.Context, db database.DBTX, id uuid.UUID, status models.InvitationStatus, at time.Time) error {
	tag, err := db.Exec(ctx, `UPDATE invitations SET status = $1, responded_at = $2 WHERE id = $3 AND status = 'pending'`,
		string(status), at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvitationProcessed
	}
	return nil
}

// Accept marks inv accepted and grants its role to userID in one transaction.
func (r *Repository) Accept(ctx context.Context, inv *models.Invitation, userID uuid.UUID, at time.Time) (*models.RoleAssignment, error) {
	var ra *models.RoleAssignment
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := respond(ctx, tx, inv.ID, models.InvitationAccepted, at); err != nil {
			return err
		}
		invitedBy := inv.InvitedBy
		var err error
		ra, err = organizations.UpsertRole(ctx, tx, organizations.RoleParams{
			UserID:         userID,
			OrganizationID: inv.OrganizationID,
			Role:           inv.Role,
			AssignedBy:     &invitedBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ra, nil
}

// Decline marks a pending invitation declined.
func (r *Repository) Decline(ctx context.Context, id uuid.UUID, at time.Time) error {
	return respond(ctx, r.pool, id, models.InvitationDeclined, at)
}

// MarkExpired flips one pending invitation to expired.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE invitations SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	return err
}

// ExpireStale marks every pending invitation past its expiry as expired.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
