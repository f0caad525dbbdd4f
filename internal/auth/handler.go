package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "failed to create user")
		return
	}
	response.Created(c, res)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "failed to log in")
		return
	}
	response.OK(c, res)
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	response.OK(c, access.Summarize(middleware.PrincipalFrom(c)))
}

// List handles GET /users (super admin).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.fail(c, err, "failed to list users")
		return
	}
	response.OK(c, list)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if status := response.Error(c, err, msg); status >= 500 {
		h.logger.Error(msg, zap.Error(err))
	}
}
