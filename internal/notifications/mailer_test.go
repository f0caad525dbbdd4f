package notifications

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/config"
)

func TestComposeStripsHeaderInjection(t *testing.T) {
	raw := string(compose(mail.Address{Name: "Events", Address: "noreply@example.com"}, Message{
		To:      "alice@example.com",
		Subject: "Hello\r\nBcc: evil@example.com",
		Body:    "line one\nline two",
	}))
	assert.Contains(t, raw, "Subject: HelloBcc: evil@example.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "line one\r\nline two")
	assert.Contains(t, raw, `From: "Events" <noreply@example.com>`)
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	m := NewMailer(config.EmailConfig{}, nil)
	_, ok := m.(*LogMailer)
	require.True(t, ok)

	assert.NoError(t, m.Send(context.Background(), Message{To: "alice@example.com", Subject: "hi"}))
	assert.Error(t, m.Send(context.Background(), Message{To: "not an address"}))
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := NewMailer(config.EmailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "alice@example.com"}), context.Canceled)
}
