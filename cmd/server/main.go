// Package main runs the event platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spherelink/backend/config"
	"github.com/spherelink/backend/internal/auth"
	"github.com/spherelink/backend/internal/comments"
	"github.com/spherelink/backend/internal/contact"
	"github.com/spherelink/backend/internal/events"
	"github.com/spherelink/backend/internal/invitations"
	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/internal/notifications"
	"github.com/spherelink/backend/internal/organizations"
	"github.com/spherelink/backend/internal/profiles"
	"github.com/spherelink/backend/internal/realtime"
	"github.com/spherelink/backend/internal/registrations"
	"github.com/spherelink/backend/pkg/database"
	"github.com/spherelink/backend/pkg/queue"
	"github.com/spherelink/backend/pkg/redis"
	"github.com/spherelink/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var images events.ImageSigner
	var photos profiles.PhotoSigner
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
			photos = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Notifications (queued; delivered by cmd/worker)
	emailLogRepo := notifications.NewRepository(pool)
	notifier := notifications.NewNotifier(emailLogRepo, jobQueue, logger)

	// Organizations, roles and the per-request authorization snapshot
	orgRepo := organizations.NewRepository(pool)
	orgService := organizations.NewService(orgRepo, notifier, logger)
	orgHandler := organizations.NewHandler(orgService, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, orgRepo, jwtService, logger)
	authHandler := auth.NewHandler(authService, logger)

	// Events and registrations
	eventRepo := events.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	eventService := events.NewService(eventRepo, registrationRepo, images, cfg.Events, logger)
	eventHandler := events.NewHandler(eventService, logger)
	registrationService := registrations.NewService(registrationRepo, eventRepo, hub, notifier, logger)
	registrationHandler := registrations.NewHandler(registrationService, logger)

	// Comments
	commentService := comments.NewService(comments.NewRepository(pool), eventRepo, logger)
	commentHandler := comments.NewHandler(commentService, logger)

	// Invitations
	invitationService := invitations.NewService(invitations.NewRepository(pool), orgRepo, notifier, invitations.Options{
		Expiry:  cfg.Invitations.Expiry,
		BaseURL: cfg.Invitations.BaseURL,
	}, logger)
	invitationHandler := invitations.NewHandler(invitationService, logger)

	// Profiles and the contact inbox
	profileService := profiles.NewService(profiles.NewRepository(pool), authRepo, orgRepo, photos, logger)
	profileHandler := profiles.NewHandler(profileService, logger)
	contactService := contact.NewService(contact.NewRepository(pool), notifier, cfg.Email.AdminAddress, logger)
	contactHandler := contact.NewHandler(contactService, logger)

	emailLogHandler := notifications.NewHandler(notifications.NewService(emailLogRepo, eventRepo), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	defer collectorCancel()
	if cfg.Metrics.Enabled {
		metrics.Init()
		router.Use(metrics.GinMiddleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
		go metrics.NewDBCollector(pool).Run(collectorCtx, 15*time.Second)
	}

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}
	router.POST("/contact", contactHandler.Submit)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.Principal(orgRepo, logger))
	{
		api.GET("/me", authHandler.Me)
		api.GET("/profile", profileHandler.Mine)
		api.PATCH("/profile", profileHandler.Update)
		api.POST("/profile/photo-upload-url", profileHandler.PhotoUploadURL)
		api.GET("/users/:id/profile", profileHandler.Get)

		// Invitations are answered by the signed-in user; new accounts use the token from /auth/register
		api.POST("/invitations/:token/accept", invitationHandler.Accept)
		api.POST("/invitations/:token/decline", invitationHandler.Decline)

		// Events
		api.GET("/events", eventHandler.Dashboard)
		api.GET("/events/upcoming", eventHandler.Upcoming)
		api.GET("/events/mine", eventHandler.Mine)
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.Get)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/image-upload-url", eventHandler.ImageUploadURL)
		api.GET("/events/:id/registrations", eventHandler.Registrations)
		api.GET("/events/:id/emails", emailLogHandler.ListByEvent)

		// Registrations
		api.POST("/events/:id/register", registrationHandler.Register)
		api.DELETE("/events/:id/register", registrationHandler.Unregister)
		api.GET("/events/:id/attendees.csv", registrationHandler.ExportCSV)

		// Comments
		api.GET("/events/:id/comments", commentHandler.List)
		api.POST("/events/:id/comments", commentHandler.Create)
		api.DELETE("/comments/:id", commentHandler.Delete)

		// Directory administration (super admin only)
		admin := api.Group("")
		admin.Use(middleware.RequireSuperAdmin())
		{
			admin.GET("/users", authHandler.List)
			admin.GET("/admin/stats", orgHandler.Stats)
			admin.GET("/admin/contact-messages", contactHandler.List)
			admin.PATCH("/admin/contact-messages/:id", contactHandler.Update)

			admin.GET("/organizations", orgHandler.List)
			admin.POST("/organizations", orgHandler.Create)
			admin.GET("/organizations/:id", orgHandler.Get)
			admin.PATCH("/organizations/:id", orgHandler.Update)
			admin.DELETE("/organizations/:id", orgHandler.Delete)
			admin.GET("/organizations/:id/members", orgHandler.Members)
			admin.POST("/organizations/:id/users", orgHandler.CreateUser)
			admin.PUT("/organizations/:id/roles", orgHandler.AssignRole)
			admin.POST("/organizations/:id/import", orgHandler.Import)
			admin.GET("/organizations/:id/invitations", invitationHandler.List)
			admin.POST("/organizations/:id/invitations", invitationHandler.Create)
			admin.PATCH("/roles/:id", orgHandler.SetRoleActive)
			admin.DELETE("/roles/:id", orgHandler.RemoveRole)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, jwtService, orgRepo, eventRepo, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	collectorCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
