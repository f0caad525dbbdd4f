package contact

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles contact HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a contact handler.
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

// Submit handles POST /contact. Public.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}
	response.Created(c, gin.H{"id": m.ID, "status": m.Status})
}

// List handles GET /admin/contact-messages?status= (super admin).
func (h *Handler) List(c *gin.Context) {
	inbox, err := h.svc.List(c.Request.Context(), middleware.PrincipalFrom(c), models.ContactStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err, "failed to load contact messages")
		return
	}
	response.OK(c, inbox)
}

// Update handles PATCH /admin/contact-messages/:id (super admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Update(c.Request.Context(), middleware.PrincipalFrom(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update contact message")
		return
	}
	response.OK(c, m)
}
