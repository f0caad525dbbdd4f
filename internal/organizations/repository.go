package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

const orgColumns = `id, name, description, email, website, is_active, created_at, updated_at`

// Repository handles organization and role assignment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Description, &o.Email, &o.Website, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func orgWriteError(err error) error {
	if _, ok := database.UniqueViolation(err); ok {
		return apperr.NewValidation("name", "an organization with this name already exists")
	}
	return err
}

func insertOrg(ctx context.Context, db database.DBTX, org *models.Organization) error {
	const q = `INSERT INTO organizations (name, description, email, website, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := db.QueryRow(ctx, q, org.Name, org.Description, org.Email, org.Website, org.IsActive).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	return orgWriteError(err)
}

// Create inserts an organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	return insertOrg(ctx, r.pool, org)
}

// CreateWithStaff inserts an organization and, when staff is non-nil, a new
// user holding the staff role in it. Both writes share one transaction.
func (r *Repository) CreateWithStaff(ctx context.Context, org *models.Organization, staff *auth.CreateUserParams, assignedBy uuid.UUID) (*models.User, error) {
	var created *models.User
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertOrg(ctx, tx, org); err != nil {
			return err
		}
		if staff == nil {
			return nil
		}
		u, err := auth.InsertUser(ctx, tx, *staff)
		if err != nil {
			return err
		}
		if _, err := UpsertRole(ctx, tx, RoleParams{UserID: u.ID, OrganizationID: org.ID, Role: models.RoleStaff, AssignedBy: &assignedBy}); err != nil {
			return err
		}
		created = u
		return nil
	})
	return created, err
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// Update writes every editable field of org.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations SET name = $1, description = $2, email = $3, website = $4, is_active = $5, updated_at = NOW()
		WHERE id = $6 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, org.Name, org.Description, org.Email, org.Website, org.IsActive, org.ID).Scan(&org.UpdatedAt)
	if database.IsNoRows(err) {
		return apperr.ErrNotFound
	}
	return orgWriteError(err)
}

// Delete removes an organization. Role assignments, invitations and events cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// List returns organizations matching search (name, description or email,
// case-insensitive) with member and event counts, ordered by name.
func (r *Repository) List(ctx context.Context, search string) ([]models.OrganizationSummary, error) {
	const q = `SELECT o.id, o.name, o.description, o.email, o.website, o.is_active, o.created_at, o.updated_at,
			(SELECT COUNT(*) FROM role_assignments ra WHERE ra.organization_id = o.id AND ra.is_active),
			(SELECT COUNT(*) FROM events e WHERE e.organization_id = o.id)
		FROM organizations o
		WHERE $1 = '' OR o.name ILIKE '%' || $1 || '%' OR o.description ILIKE '%' || $1 || '%' OR o.email ILIKE '%' || $1 || '%'
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.OrganizationSummary
	for rows.Next() {
		var s models.OrganizationSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Email, &s.Website, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
			&s.MemberCount, &s.EventCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Counts returns total, active and inactive organization counts.
func (r *Repository) Counts(ctx context.Context) (models.OrganizationCounts, error) {
	var c models.OrganizationCounts
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COUNT(*) FILTER (WHERE NOT is_active) FROM organizations`).
		Scan(&c.Total, &c.Active, &c.Inactive)
	return c, err
}

// LoadSnapshot returns the user's identity and every role assignment ordered
// by assigned_at, id. Missing or inactive users yield ErrNotFound.
func (r *Repository) LoadSnapshot(ctx context.Context, userID uuid.UUID) (*access.Snapshot, error) {
	var s access.Snapshot
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT id, username, email, is_superuser, is_active FROM users WHERE id = $1`, userID).
		Scan(&s.UserID, &s.Username, &s.Email, &s.IsSuperuser, &active)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !active {
		return nil, apperr.ErrNotFound
	}

	const q = `SELECT ra.id, ra.organization_id, o.name, o.is_active, ra.role, ra.is_active, ra.assigned_at
		FROM role_assignments ra
		JOIN organizations o ON o.id = ra.organization_id
		WHERE ra.user_id = $1
		ORDER BY ra.assigned_at, ra.id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g access.Grant
		if err := rows.Scan(&g.AssignmentID, &g.OrganizationID, &g.OrganizationName, &g.OrganizationActive, &g.Role, &g.Active, &g.AssignedAt); err != nil {
			return nil, err
		}
		s.Grants = append(s.Grants, g)
	}
	return &s, rows.Err()
}

// RoleParams describes a role assignment upsert.
type RoleParams struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           models.Role
	AssignedBy     *uuid.UUID
}

const roleColumns = `id, user_id, organization_id, role, is_active, assigned_by, assigned_at, updated_at`

func scanRole(row pgx.Row) (*models.RoleAssignment, error) {
	var ra models.RoleAssignment
	if err := row.Scan(&ra.ID, &ra.UserID, &ra.OrganizationID, &ra.Role, &ra.IsActive, &ra.AssignedBy, &ra.AssignedAt, &ra.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &ra, nil
}

// UpsertRole assigns p.Role in one statement: an existing (user, organization)
// row is updated and reactivated instead of duplicated.
func UpsertRole(ctx context.Context, db database.DBTX, p RoleParams) (*models.RoleAssignment, error) {
	const q = `INSERT INTO role_assignments (user_id, organization_id, role, assigned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, organization_id) DO UPDATE
			SET role = EXCLUDED.role, is_active = TRUE, assigned_by = EXCLUDED.assigned_by, updated_at = NOW()
		RETURNING ` + roleColumns
	ra, err := scanRole(db.QueryRow(ctx, q, p.UserID, p.OrganizationID, string(p.Role), p.AssignedBy))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("upsert role: %w", err)
	}
	return ra, nil
}

// UpsertRole assigns a role using the pool.
func (r *Repository) UpsertRole(ctx context.Context, p RoleParams) (*models.RoleAssignment, error) {
	return UpsertRole(ctx, r.pool, p)
}

// GetRole returns a role assignment by ID.
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (*models.RoleAssignment, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM role_assignments WHERE id = $1`, id))
}

// DeleteRole removes a role assignment. The user is kept.
func (r *Repository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetRoleActive toggles a role assignment.
func (r *Repository) SetRoleActive(ctx context.Context, id uuid.UUID, active bool) (*models.RoleAssignment, error) {
	const q = `UPDATE role_assignments SET is_active = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + roleColumns
	return scanRole(r.pool.QueryRow(ctx, q, active, id))
}

// ListMembers returns role assignments of an organization joined with users.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.Member, error) {
	const q = `SELECT ra.id, ra.user_id, u.username, u.email, u.full_name, ra.role, ra.is_active, ra.assigned_at
		FROM role_assignments ra
		JOIN users u ON u.id = ra.user_id
		WHERE ra.organization_id = $1
		ORDER BY ra.assigned_at, ra.id`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.AssignmentID, &m.UserID, &m.Username, &m.Email, &m.FullName, &m.Role, &m.IsActive, &m.AssignedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CreateUserWithRole inserts a user and their role in one transaction.
func (r *Repository) CreateUserWithRole(ctx context.Context, p auth.CreateUserParams, orgID uuid.UUID, role models.Role, assignedBy uuid.UUID) (*models.User, error) {
	var created *models.User
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := auth.InsertUser(ctx, tx, p)
		if err != nil {
			return err
		}
		if _, err := UpsertRole(ctx, tx, RoleParams{UserID: u.ID, OrganizationID: orgID, Role: role, AssignedBy: &assignedBy}); err != nil {
			return err
		}
		created = u
		return nil
	})
	return created, err
}

// DirectoryStats counts users, users with and without active roles, and the
// active role distribution.
func (r *Repository) DirectoryStats(ctx context.Context) (models.DirectoryStats, error) {
	stats := models.DirectoryStats{RoleDistribution: make(map[models.Role]int)}
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM role_assignments ra WHERE ra.user_id = u.id AND ra.is_active))
		FROM users u`
	if err := r.pool.QueryRow(ctx, q).Scan(&stats.TotalUsers, &stats.UsersWithRoles); err != nil {
		return stats, err
	}
	stats.UsersWithoutRoles = stats.TotalUsers - stats.UsersWithRoles

	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM role_assignments WHERE is_active GROUP BY role`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for _, role := range models.Roles {
		stats.RoleDistribution[role] = 0
	}
	for rows.Next() {
		var role models.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return stats, err
		}
		stats.RoleDistribution[role] = n
	}
	return stats, rows.Err()
}
