package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Events.DefaultCapacity)
	assert.Equal(t, 1, cfg.Events.MinCapacity)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitations.Expiry)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EVENT_DEFAULT_CAPACITY", "40")
	t.Setenv("INVITATION_EXPIRY", "48h")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("WORKER_ARCHIVE_ATTENDEES", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("ADMIN_EMAIL", "help@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Events.DefaultCapacity)
	assert.Equal(t, 48*time.Hour, cfg.Invitations.Expiry)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Worker.ArchiveAttendees)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "help@example.com", cfg.Email.AdminAddress)
}

func TestLoadRejectsDefaultBelowMinimum(t *testing.T) {
	t.Setenv("EVENT_MIN_CAPACITY", "10")
	t.Setenv("EVENT_DEFAULT_CAPACITY", "5")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())

	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}

func TestAllowedOrigins(t *testing.T) {
	s := ServerConfig{CORSAllowedOrigins: " http://a , ,http://b"}
	assert.Equal(t, []string{"http://a", "http://b"}, s.AllowedOrigins())
}
