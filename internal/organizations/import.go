package organizations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/database"
	"github.com/spherelink/backend/pkg/validation"
)

// maxReportErrors caps the error lines returned by BulkImport.
const maxReportErrors = 20

// ImportOutcome is the result of importing one email.
type ImportOutcome int

const (
	// ImportAssigned means an existing user received a role in the organization.
	ImportAssigned ImportOutcome = iota + 1
	// ImportCreated means a new user was created with the role.
	ImportCreated
	// ImportExisting means the user already holds a role in the organization.
	ImportExisting
)

// ImportedMember is what ImportMember did for one email.
type ImportedMember struct {
	Outcome ImportOutcome
	User    *models.User
}

// ImportMember handles one bulk-import row in its own transaction: assign the
// role to an existing user, or create the user first. newPasswordHash is only
// called when a user is created.
func (r *Repository) ImportMember(ctx context.Context, orgID uuid.UUID, email string, role models.Role, assignedBy uuid.UUID, newPasswordHash func() (string, error)) (ImportedMember, error) {
	var res ImportedMember
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := auth.GetUserByEmail(ctx, tx, email)
		switch {
		case err == nil:
			var held bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_assignments WHERE user_id = $1 AND organization_id = $2)`,
				u.ID, orgID).Scan(&held); err != nil {
				return err
			}
			res.User = u
			if held {
				res.Outcome = ImportExisting
				return nil
			}
			res.Outcome = ImportAssigned
		case errors.Is(err, apperr.ErrNotFound):
			username, err := freeUsername(ctx, tx, email)
			if err != nil {
				return err
			}
			hash, err := newPasswordHash()
			if err != nil {
				return err
			}
			u, err = auth.InsertUser(ctx, tx, auth.CreateUserParams{Username: username, Email: email, PasswordHash: hash})
			if err != nil {
				return err
			}
			res = ImportedMember{Outcome: ImportCreated, User: u}
		default:
			return err
		}
		_, err = UpsertRole(ctx, tx, RoleParams{UserID: u.ID, OrganizationID: orgID, Role: role, AssignedBy: &assignedBy})
		return err
	})
	return res, err
}

// freeUsername derives a username from the email local part, appending 1, 2, …
// until one is unused.
func freeUsername(ctx context.Context, db database.DBTX, email string) (string, error) {
	base := UsernameBase(email)
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := auth.UsernameTaken(ctx, db, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// UsernameBase returns the local part of email.
func UsernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	TotalProcessed int      `json:"total_processed"`
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	InvalidEmails  int      `json:"invalid_emails"`
	ExistingUsers  int      `json:"existing_users"`
	Errors         []string `json:"errors"`
}

func (r *ImportReport) addError(msg string) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// importRoles are the roles a bulk import may grant.
var importRoles = map[models.Role]bool{
	models.RoleMember:   true,
	models.RoleStaff:    true,
	models.RoleOrgAdmin: true,
}

// BulkImport adds one member per email in rows. Rows are numbered from 1 and
// each is committed independently, so a failing row never undoes earlier ones.
func (s *Service) BulkImport(ctx context.Context, p *access.Snapshot, orgID uuid.UUID, rows []string, role models.Role) (*ImportReport, error) {
	if !access.Can(p, access.OrganizationManage, access.Resource{}) {
		return nil, apperr.ErrPermission
	}
	if role == "" {
		role = models.RoleMember
	}
	if !importRoles[role] {
		return nil, apperr.NewValidation("role", "must be member, staff or org_admin")
	}
	org, err := s.store.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Errors: []string{}}
	for i, raw := range rows {
		n := i + 1
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}
		if !validation.Email(email) {
			report.InvalidEmails++
			report.addError(fmt.Sprintf("Row %d: Invalid email format '%s'", n, email))
			metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
			continue
		}
		res, err := s.store.ImportMember(ctx, orgID, email, role, p.UserID, s.tempPasswordHash)
		if err != nil {
			report.Failed++
			report.addError(fmt.Sprintf("Row %d: Error processing '%s': %s", n, email, importErrorText(err)))
			metrics.ImportRowsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("import row failed", zap.Int("row", n), zap.String("organization_id", orgID.String()), zap.Error(err))
			continue
		}
		switch res.Outcome {
		case ImportExisting:
			report.ExistingUsers++
			report.addError(fmt.Sprintf("Row %d: User '%s' already exists in %s", n, email, org.Name))
			metrics.ImportRowsTotal.WithLabelValues("existing").Inc()
		default:
			report.Successful++
			metrics.ImportRowsTotal.WithLabelValues("successful").Inc()
			s.notifier.MemberAdded(ctx, org, res.User, role)
		}
	}
	report.TotalProcessed = report.Successful + report.Failed + report.InvalidEmails + report.ExistingUsers

	s.logger.Info("bulk import finished",
		zap.String("organization_id", orgID.String()),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
		zap.Int("invalid_emails", report.InvalidEmails),
		zap.Int("existing_users", report.ExistingUsers),
	)
	return report, nil
}

// importErrorText keeps storage details out of the report.
func importErrorText(err error) string {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return "internal error"
}

// ParseCSV returns the first column of every record in r.
func ParseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var rows []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.NewValidation("file", fmt.Sprintf("invalid CSV: %v", err))
		}
		if len(rec) == 0 {
			rows = append(rows, "")
			continue
		}
		rows = append(rows, rec[0])
	}
	return rows, nil
}
