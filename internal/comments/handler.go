package comments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles comment HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a comments handler.
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

// List handles GET /events/:id/comments.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.svc.List(c.Request.Context(), eventID)
	if err != nil {
		h.fail(c, err, "failed to load comments")
		return
	}
	response.OK(c, list)
}

// Create handles POST /events/:id/comments.
func (h *Handler) Create(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	comment, err := h.svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), eventID, req)
	if err != nil {
		h.fail(c, err, "failed to post comment")
		return
	}
	response.Created(c, comment)
}

// Delete handles DELETE /comments/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid comment id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		h.fail(c, err, "failed to delete comment")
		return
	}
	response.NoContent(c)
}
