// Package main runs the background worker: email delivery, expired-event purge
// and invitation expiry.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spherelink/backend/config"
	"github.com/spherelink/backend/internal/events"
	"github.com/spherelink/backend/internal/invitations"
	"github.com/spherelink/backend/internal/notifications"
	"github.com/spherelink/backend/internal/organizations"
	"github.com/spherelink/backend/internal/registrations"
	"github.com/spherelink/backend/internal/worker"
	"github.com/spherelink/backend/pkg/database"
	"github.com/spherelink/backend/pkg/queue"
	"github.com/spherelink/backend/pkg/redis"
	"github.com/spherelink/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailer := notifications.NewMailer(cfg.Email, logger)
	processor := worker.NewEmailProcessor(jobQueue, mailer, notifications.NewRepository(pool), cfg.Worker.DequeueTimeout, logger)

	registrationRepo := registrations.NewRepository(pool)
	eventService := events.NewService(events.NewRepository(pool), registrationRepo, nil, cfg.Events, logger)
	if cfg.Worker.ArchiveAttendees {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		eventService.SetArchiver(worker.NewS3Archiver(registrationRepo, s3Client, logger))
	}
	invitationService := invitations.NewService(invitations.NewRepository(pool), organizations.NewRepository(pool), nil, invitations.Options{
		Expiry: cfg.Invitations.Expiry,
	}, logger)

	scheduler := worker.NewScheduler(10*time.Minute, logger)
	if err := scheduler.Add("purge-expired-events", cfg.Worker.PurgeExpiredSpec, worker.PurgeExpiredJob(eventService, logger)); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if err := scheduler.Add("expire-invitations", cfg.Worker.ExpireInvitationsSpec, worker.ExpireInvitationsJob(invitationService, logger)); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	scheduler.Start()
	logger.Info("worker started", zap.Int("scheduled_jobs", scheduler.Len()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	stopped := scheduler.Stop()
	select {
	case <-done:
	case <-time.After(cfg.Worker.DequeueTimeout + 2*time.Second):
		logger.Warn("email worker did not stop in time")
	}
	<-stopped.Done()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
