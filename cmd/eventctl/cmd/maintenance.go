package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherelink/backend/internal/events"
	"github.com/spherelink/backend/internal/invitations"
	"github.com/spherelink/backend/internal/organizations"
	"github.com/spherelink/backend/internal/registrations"
	"github.com/spherelink/backend/internal/worker"
	"github.com/spherelink/backend/pkg/storage"
)

func newPurgeExpiredCmd(e *env) *cobra.Command {
	var archive bool
	cmd := &cobra.Command{
		Use:   "purge-expired",
		Short: "Delete events whose date has passed",
		Long: `Delete every event dated before now, together with its registrations
and comments. With --archive, each event's attendee list is uploaded to the
archive bucket first and events whose upload fails are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			registrationRepo := registrations.NewRepository(e.pool)
			svc := events.NewService(events.NewRepository(e.pool), registrationRepo, nil, e.cfg.Events, e.logger)
			if archive || e.cfg.Worker.ArchiveAttendees {
				s3Client, err := storage.NewS3(ctx, storage.S3Config{
					Region:          e.cfg.AWS.Region,
					AccessKeyID:     e.cfg.AWS.AccessKeyID,
					SecretAccessKey: e.cfg.AWS.SecretAccessKey,
					ImagesBucket:    e.cfg.AWS.ImagesBucket,
					ArchiveBucket:   e.cfg.AWS.ArchiveBucket,
				}, e.logger)
				if err != nil {
					return fmt.Errorf("s3: %w", err)
				}
				svc.SetArchiver(worker.NewS3Archiver(registrationRepo, s3Client, e.logger))
			}

			n, err := svc.PurgeExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired events\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&archive, "archive", false, "upload attendee CSVs to S3 before deleting")
	return cmd
}

func newExpireInvitationsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-invitations",
		Short: "Mark overdue pending invitations as expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()
			svc := invitations.NewService(invitations.NewRepository(e.pool), organizations.NewRepository(e.pool), nil,
				invitations.Options{Expiry: e.cfg.Invitations.Expiry}, e.logger)
			n, err := svc.ExpireStale(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d invitations\n", n)
			return nil
		},
	}
}
