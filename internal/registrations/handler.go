package registrations

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if status := response.Error(c, err, msg); status >= 500 {
		h.logger.Error(msg, zap.Error(err))
	}
}

func eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// Register handles POST /events/:id/register.
func (h *Handler) Register(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	res, err := h.svc.Register(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to register")
		return
	}
	response.OK(c, res)
}

// Unregister handles DELETE /events/:id/register.
func (h *Handler) Unregister(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	res, err := h.svc.Unregister(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to unregister")
		return
	}
	response.OK(c, res)
}

// ExportCSV handles GET /events/:id/attendees.csv (creator or staff).
func (h *Handler) ExportCSV(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, attendees, err := h.svc.ExportAttendees(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to export attendees")
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, attendees); err != nil {
		h.fail(c, err, "failed to export attendees")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendees-%s.csv"`, e.ID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
