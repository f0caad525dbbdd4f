package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Events      EventsConfig
	Invitations InvitationsConfig
	Worker      WorkerConfig
	Email       EmailConfig
	Metrics     MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/events?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ImagesBucket         string
	ArchiveBucket        string
	PresignExpireMinutes int
}

// Enabled reports whether S3 should be configured at all.
func (c AWSConfig) Enabled() bool {
	return c.Region != "" && c.ImagesBucket != ""
}

// EventsConfig holds event validation limits.
type EventsConfig struct {
	MinTitleLen       int
	MinDescriptionLen int
	MinLocationLen    int
	MinDuration       int // minutes
	MinCapacity       int
	DefaultCapacity   int
}

// InvitationsConfig holds invitation lifecycle settings.
type InvitationsConfig struct {
	Expiry  time.Duration
	BaseURL string // accept link prefix used in invitation emails
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	PurgeExpiredSpec      string // cron spec; empty disables
	ExpireInvitationsSpec string
	ArchiveAttendees      bool // upload attendee CSV to S3 before purging an event
	DequeueTimeout        time.Duration
}

// EmailConfig for SMTP delivery. Empty SMTPHost logs messages instead of sending.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	// AdminAddress receives contact request alerts. Empty disables them.
	AdminAddress string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "events"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ImagesBucket:         getEnv("AWS_S3_IMAGES_BUCKET", "event-images"),
			ArchiveBucket:        getEnv("AWS_S3_ARCHIVE_BUCKET", "event-archive"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Events: EventsConfig{
			MinTitleLen:       getEnvInt("EVENT_MIN_TITLE_LEN", 3),
			MinDescriptionLen: getEnvInt("EVENT_MIN_DESCRIPTION_LEN", 10),
			MinLocationLen:    getEnvInt("EVENT_MIN_LOCATION_LEN", 3),
			MinDuration:       getEnvInt("EVENT_MIN_DURATION_MINUTES", 15),
			MinCapacity:       getEnvInt("EVENT_MIN_CAPACITY", 1),
			DefaultCapacity:   getEnvInt("EVENT_DEFAULT_CAPACITY", 100),
		},
		Invitations: InvitationsConfig{
			Expiry:  getEnvDuration("INVITATION_EXPIRY", 7*24*time.Hour),
			BaseURL: getEnv("INVITATION_BASE_URL", "http://localhost:3000/invitations"),
		},
		Worker: WorkerConfig{
			PurgeExpiredSpec:      getEnv("WORKER_PURGE_EXPIRED_SPEC", "@daily"),
			ExpireInvitationsSpec: getEnv("WORKER_EXPIRE_INVITATIONS_SPEC", "@hourly"),
			ArchiveAttendees:      getEnvBool("WORKER_ARCHIVE_ATTENDEES", false),
			DequeueTimeout:        getEnvDuration("WORKER_DEQUEUE_TIMEOUT", 5*time.Second),
		},
		Email: EmailConfig{
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Events"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPass:     getEnv("SMTP_PASS", ""),
			AdminAddress: getEnv("ADMIN_EMAIL", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Events.MinCapacity < 1 {
		return fmt.Errorf("EVENT_MIN_CAPACITY must be at least 1, got %d", c.Events.MinCapacity)
	}
	if c.Events.DefaultCapacity < c.Events.MinCapacity {
		return fmt.Errorf("EVENT_DEFAULT_CAPACITY %d is below EVENT_MIN_CAPACITY %d", c.Events.DefaultCapacity, c.Events.MinCapacity)
	}
	if c.Invitations.Expiry <= 0 {
		return fmt.Errorf("INVITATION_EXPIRY must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// AllowedOrigins returns the configured CORS origins as a list.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
