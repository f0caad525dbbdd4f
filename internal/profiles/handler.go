package profiles

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles profile HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a profiles handler.
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

// Mine handles GET /profile.
func (h *Handler) Mine(c *gin.Context) {
	v, err := h.svc.Mine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.fail(c, err, "failed to load profile")
		return
	}
	response.OK(c, v)
}

// Get handles GET /users/:id/profile.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	v, err := h.svc.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to load profile")
		return
	}
	response.OK(c, v)
}

// Update handles PATCH /profile.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.Update(c.Request.Context(), middleware.PrincipalFrom(c), req)
	if err != nil {
		h.fail(c, err, "failed to update profile")
		return
	}
	response.OK(c, v)
}

type photoRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// PhotoUploadURL handles POST /profile/photo-upload-url.
func (h *Handler) PhotoUploadURL(c *gin.Context) {
	var req photoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content_type required")
		return
	}
	res, err := h.svc.PhotoUploadURL(c.Request.Context(), middleware.PrincipalFrom(c), req.ContentType)
	if err != nil {
		h.fail(c, err, "failed to prepare photo upload")
		return
	}
	response.OK(c, res)
}
