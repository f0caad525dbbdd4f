package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

type eventMap map[uuid.UUID]*models.Event

func (m eventMap) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

func TestEventLogAccess(t *testing.T) {
	creator := uuid.New()
	e := &models.Event{ID: uuid.New(), CreatedBy: creator}
	logs := newMemLogs()
	eventID := e.ID
	require.NoError(t, logs.Create(context.Background(), &models.EmailLog{EventID: &eventID, EmailType: models.EmailTypeRegistrationConfirmation, RecipientEmail: "a@example.com"}))
	svc := NewService(logs, eventMap{e.ID: e})

	tests := []struct {
		name    string
		caller  *access.Snapshot
		eventID uuid.UUID
		wantErr error
	}{
		{"creator", &access.Snapshot{UserID: creator}, e.ID, nil},
		{"superuser", &access.Snapshot{UserID: uuid.New(), IsSuperuser: true}, e.ID, nil},
		{"stranger", &access.Snapshot{UserID: uuid.New()}, e.ID, apperr.ErrPermission},
		{"anonymous", nil, e.ID, apperr.ErrPermission},
		{"unknown event", &access.Snapshot{UserID: creator}, uuid.New(), apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.EventLog(context.Background(), tt.caller, tt.eventID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}
