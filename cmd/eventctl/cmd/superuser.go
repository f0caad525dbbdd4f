package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/pkg/utils"
)

// passwordEnv lets scripts pass the password without putting it in argv.
const passwordEnv = "EVENTCTL_PASSWORD"

type superuserFlags struct {
	username string
	email    string
	fullName string
	password string
}

func (f superuserFlags) validate() error {
	switch {
	case strings.TrimSpace(f.username) == "":
		return errors.New("--username is required")
	case strings.TrimSpace(f.email) == "":
		return errors.New("--email is required")
	case len(f.password) < utils.MinPasswordLength:
		return fmt.Errorf("password must be at least %d characters (--password or %s)", utils.MinPasswordLength, passwordEnv)
	}
	return nil
}

func newCreateSuperuserCmd(e *env) *cobra.Command {
	var f superuserFlags
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create a platform superuser",
		Long: `Create a user with unrestricted access. Superusers need no organization
role to sign in.

The password is read from --password or, if unset, from $` + passwordEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.password == "" {
				f.password = os.Getenv(passwordEnv)
			}
			if err := f.validate(); err != nil {
				return err
			}
			hash, err := utils.HashPassword(f.password)
			if err != nil {
				return err
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			u, err := auth.NewRepository(e.pool).Create(ctx, auth.CreateUserParams{
				Username:     strings.TrimSpace(f.username),
				Email:        strings.ToLower(strings.TrimSpace(f.email)),
				PasswordHash: hash,
				FullName:     f.fullName,
				IsSuperuser:  true,
			})
			if err != nil {
				var ve *apperr.ValidationError
				if errors.As(err, &ve) {
					return fmt.Errorf("%s: %v", ve.Error(), ve.Fields)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superuser %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.username, "username", "", "login handle")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.fullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&f.password, "password", "", "password (prefer $"+passwordEnv+")")
	return cmd
}
