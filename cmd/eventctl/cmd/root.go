// Package cmd holds the eventctl subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spherelink/backend/config"
	"github.com/spherelink/backend/pkg/database"
)

// env is shared by every subcommand once the root pre-run has connected.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	pool    *pgxpool.Pool
	timeout time.Duration
	verbose bool
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "eventctl",
		Short: "Operate the event platform database",
		Long: `eventctl runs maintenance tasks against the event platform database.

It reads the same environment (and optional .env file) as the server.

Examples:
  eventctl migrate
  eventctl create-superuser --username root --email root@example.com
  eventctl import-members <org-id> members.csv --as root --role staff
  eventctl purge-expired --archive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}
	root.PersistentFlags().DurationVar(&e.timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newMigrateCmd(e),
		newCreateSuperuserCmd(e),
		newImportMembersCmd(e),
		newPurgeExpiredCmd(e),
		newExpireInvitationsCmd(e),
	)
	return root
}

func (e *env) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e.cfg = cfg
	e.logger = newLogger(e.verbose)

	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), e.logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	e.pool = pool
	return nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// context returns a context bounded by --timeout.
func (e *env) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.timeout)
}

func newLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
