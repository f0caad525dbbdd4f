// Package notifications records and enqueues notification emails. Delivery
// is best effort: a failure here never fails the operation that triggered it.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/queue"
)

// LogStore persists email logs.
type LogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
}

// Enqueuer hands email jobs to the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Notifier turns domain events into queued emails.
type Notifier struct {
	logs   LogStore
	queue  Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(logs LogStore, q Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logs: logs, queue: q, logger: logger}
}

// RegistrationConfirmed emails the attendee.
func (n *Notifier) RegistrationConfirmed(ctx context.Context, e *models.Event, p *access.Snapshot) {
	if p == nil || p.Email == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYou are registered for %q.\n\n", p.Username, e.Title)
	fmt.Fprintf(&b, "When: %s (%d minutes)\n", e.Date.UTC().Format("Mon 2 Jan 2006 15:04 MST"), e.DurationMinutes)
	fmt.Fprintf(&b, "Where: %s\n", e.Location)
	if e.Requirements != "" {
		fmt.Fprintf(&b, "Bring: %s\n", e.Requirements)
	}
	eventID := e.ID
	n.enqueue(ctx, &models.EmailLog{
		EventID:        &eventID,
		OrganizationID: e.OrganizationID,
		EmailType:      models.EmailTypeRegistrationConfirmation,
		RecipientEmail: p.Email,
		Subject:        "Registration confirmed: " + e.Title,
	}, b.String())
}

// InvitationSent emails the invitee the accept link.
func (n *Notifier) InvitationSent(ctx context.Context, inv *models.Invitation, org *models.Organization, acceptURL string) {
	orgID := inv.OrganizationID
	body := fmt.Sprintf("You have been invited to join %s as %s.\n\nAccept: %s\n\nThis link expires on %s.\n",
		org.Name, inv.Role, acceptURL, inv.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST"))
	n.enqueue(ctx, &models.EmailLog{
		OrganizationID: &orgID,
		EmailType:      models.EmailTypeInvitation,
		RecipientEmail: inv.Email,
		Subject:        "Invitation to " + org.Name,
	}, body)
}

// MemberAdded welcomes a user assigned to an organization.
func (n *Notifier) MemberAdded(ctx context.Context, org *models.Organization, user *models.User, role models.Role) {
	orgID := org.ID
	body := fmt.Sprintf("Hi %s,\n\nYou now have the %s role in %s.\n", user.Username, role, org.Name)
	n.enqueue(ctx, &models.EmailLog{
		OrganizationID: &orgID,
		EmailType:      models.EmailTypeMemberWelcome,
		RecipientEmail: user.Email,
		Subject:        "Welcome to " + org.Name,
	}, body)
}

// ContactReceived forwards a help request to the administrators.
func (n *Notifier) ContactReceived(ctx context.Context, m *models.ContactMessage, adminAddress string) {
	var b strings.Builder
	fmt.Fprintf(&b, "A new contact request was submitted.\n\n")
	fmt.Fprintf(&b, "From: %s\nSubject: %s\nSubmitted: %s\n\n", m.Email, m.Subject, m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "%s\n\nReply to the sender at %s.\n", m.Message, m.Email)
	n.enqueue(ctx, &models.EmailLog{
		EmailType:      models.EmailTypeContactAlert,
		RecipientEmail: adminAddress,
		Subject:        "Contact request: " + m.Subject,
	}, b.String())
}

func (n *Notifier) enqueue(ctx context.Context, l *models.EmailLog, body string) {
	fields := []zap.Field{zap.String("email_type", l.EmailType), zap.String("to", l.RecipientEmail)}
	if err := n.logs.Create(ctx, l); err != nil {
		n.logger.Warn("record email log", append(fields, zap.Error(err))...)
		return
	}
	err := n.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     l.ID,
		EmailType:      l.EmailType,
		EventID:        l.EventID,
		RecipientEmail: l.RecipientEmail,
		Subject:        l.Subject,
		Body:           body,
	})
	if err != nil {
		n.logger.Warn("enqueue email", append(fields, zap.Error(err))...)
		if mErr := n.logs.MarkFailed(ctx, l.ID, "enqueue failed"); mErr != nil {
			n.logger.Warn("mark email log failed", zap.String("email_log_id", l.ID.String()), zap.Error(mErr))
		}
	}
}
