package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventSource loads an event with its current stats.
type EventSource interface {
	GetWithStats(ctx context.Context, id uuid.UUID) (*models.EventWithStats, error)
}

// Client represents a single WebSocket connection watching one event.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger
}

// ServeWs authenticates the token query parameter, checks the caller can see
// the event, upgrades the connection and sends the current stats.
func ServeWs(hub *Hub, tokens middleware.TokenValidator, principals middleware.SnapshotLoader, events EventSource, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventIDStr := c.Query("event_id")
		token := c.Query("token")
		if eventIDStr == "" || token == "" {
			response.BadRequest(c, "event_id and token required")
			return
		}
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		userID, err := tokens.UserID(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		ctx := c.Request.Context()
		p, err := principals.LoadSnapshot(ctx, userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				response.Unauthorized(c, "account not found or inactive")
				return
			}
			logger.Error("load principal", zap.Error(err), zap.String("user_id", userID.String()))
			response.Internal(c, "failed to load permissions")
			return
		}
		ev, err := events.GetWithStats(ctx, eventID)
		if err == nil && ev.CreatedBy != p.UserID && !access.Visibility(p).Allows(ev.OrganizationID) {
			err = apperr.ErrNotFound
		}
		if err != nil {
			if status := response.Error(c, err, "failed to load event"); status >= http.StatusInternalServerError {
				logger.Error("load event for socket", zap.String("event_id", eventID.String()), zap.Error(err))
			}
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New().String(),
			EventID: eventID,
			UserID:  userID,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, 64),
			logger:  logger,
		}
		hub.Register(client)
		hub.SendTo(client, EventStatsMessage, ev.Stats)
		go client.writePump()
		client.readPump()
	}
}

// readPump only keeps the connection alive; clients answer "ping" with "pong".
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "ping":
			c.hub.SendTo(c, "pong", map[string]int64{"at": time.Now().Unix()})
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
