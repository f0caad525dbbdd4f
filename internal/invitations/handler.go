package invitations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles invitation HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an invitations handler.
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

// Create handles POST /organizations/:id/invitations (super admin).
func (h *Handler) Create(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and role required")
		return
	}
	inv, err := h.svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), orgID, req)
	if err != nil {
		h.fail(c, err, "failed to create invitation")
		return
	}
	response.Created(c, inv)
}

// List handles GET /organizations/:id/invitations (super admin).
func (h *Handler) List(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	list, err := h.svc.ListForOrganization(c.Request.Context(), middleware.PrincipalFrom(c), orgID)
	if err != nil {
		h.fail(c, err, "failed to load invitations")
		return
	}
	response.OK(c, list)
}

// Accept handles POST /invitations/:token/accept. The role goes to the caller.
func (h *Handler) Accept(c *gin.Context) {
	res, err := h.svc.Accept(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("token"))
	if err != nil {
		h.fail(c, err, "failed to accept invitation")
		return
	}
	response.OK(c, res)
}

// Decline handles POST /invitations/:token/decline.
func (h *Handler) Decline(c *gin.Context) {
	inv, err := h.svc.Decline(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("token"))
	if err != nil {
		h.fail(c, err, "failed to decline invitation")
		return
	}
	response.OK(c, inv)
}
