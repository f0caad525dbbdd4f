package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/models"
)

type fakeTokens map[string]uuid.UUID

func (f fakeTokens) UserID(token string) (uuid.UUID, error) {
	id, ok := f[token]
	if !ok {
		return uuid.Nil, errors.New("bad token")
	}
	return id, nil
}

type fakePrincipals map[uuid.UUID]*access.Snapshot

func (f fakePrincipals) LoadSnapshot(_ context.Context, id uuid.UUID) (*access.Snapshot, error) {
	s, ok := f[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

type fakeEvents map[uuid.UUID]*models.EventWithStats

func (f fakeEvents) GetWithStats(_ context.Context, id uuid.UUID) (*models.EventWithStats, error) {
	e, ok := f[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

type wsFixture struct {
	hub     *Hub
	server  *httptest.Server
	eventID uuid.UUID
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	alice, bob := uuid.New(), uuid.New()
	org := uuid.New()
	eventID := uuid.New()
	ev := &models.EventWithStats{
		Event: models.Event{ID: eventID, Title: "Chess night", MaxCapacity: 4, OrganizationID: &org, CreatedBy: uuid.New()},
		Stats: models.NewEventStats(4, 1),
	}

	h := NewHub(nil, nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(h,
		fakeTokens{"alice": alice, "bob": bob},
		fakePrincipals{
			alice: {UserID: alice, Grants: []access.Grant{{OrganizationID: org, OrganizationActive: true, Role: models.RoleMember, Active: true}}},
			bob:   {UserID: bob},
		},
		fakeEvents{eventID: ev},
		nil,
	))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsFixture{hub: h, server: srv, eventID: eventID}
}

func (f *wsFixture) url(eventID, token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?event_id=" + eventID + "&token=" + token
}

func TestServeWsSendsSnapshotThenUpdates(t *testing.T) {
	f := newWSFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.eventID.String(), "alice"), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, EventStatsMessage, first.Event)
	assert.Contains(t, string(first.Data), `"current_registrations":1`)

	require.Eventually(t, func() bool { return f.hub.Watchers(f.eventID) == 1 }, time.Second, 10*time.Millisecond)
	f.hub.PublishStats(context.Background(), f.eventID, models.NewEventStats(4, 2))

	var next WSMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Contains(t, string(next.Data), `"available_spots":2`)

	require.NoError(t, conn.WriteJSON(WSMessage{Event: "ping"}))
	var pong WSMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Event)
}

func TestServeWsRejects(t *testing.T) {
	f := newWSFixture(t)
	tests := []struct {
		name    string
		eventID string
		token   string
		status  int
	}{
		{"missing token", f.eventID.String(), "", http.StatusBadRequest},
		{"bad event id", "nope", "alice", http.StatusBadRequest},
		{"bad token", f.eventID.String(), "mallory", http.StatusUnauthorized},
		{"unknown event", uuid.NewString(), "alice", http.StatusNotFound},
		{"event outside scope", f.eventID.String(), "bob", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(tt.eventID, tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
