package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListByEvent handles GET /events/:id/emails.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	logs, err := h.svc.EventLog(c.Request.Context(), middleware.PrincipalFrom(c), eventID)
	if err != nil {
		if status := response.Error(c, err, "failed to load email logs"); status >= http.StatusInternalServerError {
			h.logger.Error("list email logs", zap.String("event_id", eventID.String()), zap.Error(err))
		}
		return
	}
	response.OK(c, logs)
}
