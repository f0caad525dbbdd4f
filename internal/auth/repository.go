package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
)

const userColumns = `id, username, email, password_hash, full_name, is_superuser, is_active, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.IsSuperuser, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return GetUserByID(ctx, r.pool, id)
}

// GetUserByID loads a user through db, which may be a transaction.
func GetUserByID(ctx context.Context, db database.DBTX, id uuid.UUID) (*models.User, error) {
	return scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return GetUserByEmail(ctx, r.pool, email)
}

// GetUserByEmail loads a user by email through db.
func GetUserByEmail(ctx context.Context, db database.DBTX, email string) (*models.User, error) {
	return scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// GetByLogin returns a user by username or email.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR LOWER(email) = LOWER($1)
		ORDER BY (username = $1) DESC LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, login))
}

// List returns all users ordered by username.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, email, full_name, is_superuser, is_active, created_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.IsSuperuser, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateUserParams holds the fields for a new user. PasswordHash is already bcrypt-hashed.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	IsSuperuser  bool
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	return InsertUser(ctx, r.pool, p)
}

// InsertUser inserts a user through db so callers can pair it with other
// writes in one transaction. Duplicate username or email yields a
// ValidationError on that field.
func InsertUser(ctx context.Context, db database.DBTX, p CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (username, email, password_hash, full_name, is_superuser)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(db.QueryRow(ctx, q, p.Username, p.Email, p.PasswordHash, p.FullName, p.IsSuperuser))
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return nil, apperr.NewValidation("email", "a user with this email already exists")
			}
			return nil, apperr.NewValidation("username", "a user with this username already exists")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UsernameTaken reports whether username is in use.
func UsernameTaken(ctx context.Context, db database.DBTX, username string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// SetSuperuser grants or revokes the superuser flag.
func (r *Repository) SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_superuser = $1, updated_at = NOW() WHERE id = $2`, superuser, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetActive activates or deactivates an account. Users are never deleted.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
