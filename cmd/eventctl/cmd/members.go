package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/internal/organizations"
)

func newImportMembersCmd(e *env) *cobra.Command {
	var (
		role string
		as   string
	)
	cmd := &cobra.Command{
		Use:   "import-members <organization-id> <file.csv>",
		Short: "Bulk-import members from a CSV of email addresses",
		Long: `Import members into an organization. The first column of each CSV row is
the email address. Unknown addresses get a new account with a random
password; known users are assigned the role unless they already have one
in the organization.

The import runs as the super admin named by --as, who is recorded as the
assigner of every role.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid organization id %q", args[0])
			}
			if as == "" {
				return fmt.Errorf("--as is required")
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := organizations.ParseCSV(f)
			if err != nil {
				return err
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			orgRepo := organizations.NewRepository(e.pool)
			actor, err := auth.NewRepository(e.pool).GetByLogin(ctx, as)
			if err != nil {
				return fmt.Errorf("load --as user: %w", err)
			}
			principal, err := orgRepo.LoadSnapshot(ctx, actor.ID)
			if err != nil {
				return fmt.Errorf("load --as permissions: %w", err)
			}

			// no notifier: bulk imports from the CLI do not send welcome emails
			svc := organizations.NewService(orgRepo, nil, e.logger)
			report, err := svc.BulkImport(ctx, principal, orgID, rows, models.Role(role))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "role for imported users (member, staff, org_admin)")
	cmd.Flags().StringVar(&as, "as", "", "username or email of the super admin running the import")
	return cmd
}
