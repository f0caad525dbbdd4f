package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherelink/backend/pkg/database"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()
			if err := database.Migrate(ctx, e.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
