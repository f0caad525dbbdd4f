package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
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

// Dashboard handles GET /events?search=&type=.
func (h *Handler) Dashboard(c *gin.Context) {
	list, err := h.svc.Dashboard(c.Request.Context(), middleware.PrincipalFrom(c), ListFilter{
		Search: c.Query("search"),
		Type:   models.EventType(c.Query("type")),
	})
	if err != nil {
		h.fail(c, err, "failed to load events")
		return
	}
	response.OK(c, list)
}

// Upcoming handles GET /events/upcoming.
func (h *Handler) Upcoming(c *gin.Context) {
	list, err := h.svc.Upcoming(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.fail(c, err, "failed to load events")
		return
	}
	response.OK(c, list)
}

// Mine handles GET /events/mine.
func (h *Handler) Mine(c *gin.Context) {
	res, err := h.svc.Mine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.fail(c, err, "failed to load events")
		return
	}
	response.OK(c, res)
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), req)
	if err != nil {
		h.fail(c, err, "failed to create event")
		return
	}
	response.Created(c, ev)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to load event")
		return
	}
	response.OK(c, d)
}

// Update handles PATCH /events/:id. Omitted fields keep their stored values.
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req Patch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.Update(c.Request.Context(), middleware.PrincipalFrom(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update event")
		return
	}
	response.OK(c, ev)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		h.fail(c, err, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// Registrations handles GET /events/:id/registrations (creator only).
func (h *Handler) Registrations(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	res, err := h.svc.Registrations(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to load registrations")
		return
	}
	response.OK(c, res)
}

// ImageUploadRequest is the body for POST /events/:id/image-upload-url.
type ImageUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// ImageUploadURL handles POST /events/:id/image-upload-url (creator only).
func (h *Handler) ImageUploadURL(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content_type required")
		return
	}
	res, err := h.svc.ImageUploadURL(c.Request.Context(), middleware.PrincipalFrom(c), id, req.ContentType)
	if err != nil {
		h.fail(c, err, "failed to prepare image upload")
		return
	}
	response.OK(c, res)
}
