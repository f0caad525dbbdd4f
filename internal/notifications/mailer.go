package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spherelink/backend/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// NewMailer returns an SMTP mailer, or a LogMailer when no SMTP host is configured.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(logger)
	}
	return &SMTPMailer{cfg: cfg}
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer for development.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := validateAddress(msg.To); err != nil {
		return err
	}
	m.logger.Info("email (not sent, smtp disabled)",
		zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Int("body_len", len(msg.Body)))
	return nil
}

// SMTPMailer sends through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	cfg config.EmailConfig
}

// Send delivers msg. The context only guards against starting after cancellation;
// net/smtp has no deadline support.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateAddress(msg.To); err != nil {
		return err
	}
	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	body := compose(from, msg)

	client, err := smtp.Dial(m.cfg.SMTPHost + ":" + strconv.Itoa(m.cfg.SMTPPort))
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("start tls: %w", err)
		}
	}
	if m.cfg.SMTPUser != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.FromAddress); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}

func validateAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", addr, err)
	}
	if strings.ContainsAny(parsed.Address, "\r\n") {
		return fmt.Errorf("invalid recipient %q", addr)
	}
	return nil
}

func compose(from mail.Address, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", "").Replace(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}
