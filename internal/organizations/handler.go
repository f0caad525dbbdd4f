package organizations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/middleware"
	"github.com/spherelink/backend/internal/models"
	"github.com/spherelink/backend/pkg/response"
)

// Handler handles organization directory HTTP endpoints. Routes are mounted
// behind RequireSuperAdmin; the service re-checks.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
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

func idParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /organizations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Create(c.Request.Context(), middleware.PrincipalFrom(c), req)
	if err != nil {
		h.fail(c, err, "failed to create organization")
		return
	}
	response.Created(c, res)
}

// List handles GET /organizations?search=.
func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), middleware.PrincipalFrom(c), c.Query("search"))
	if err != nil {
		h.fail(c, err, "failed to load organizations")
		return
	}
	response.OK(c, res)
}

// Get handles GET /organizations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to load organization")
		return
	}
	response.OK(c, res)
}

// Update handles PATCH /organizations/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	var req OrganizationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org, err := h.svc.Update(c.Request.Context(), middleware.PrincipalFrom(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update organization")
		return
	}
	response.OK(c, org)
}

// Delete handles DELETE /organizations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		h.fail(c, err, "failed to delete organization")
		return
	}
	response.NoContent(c)
}

// Members handles GET /organizations/:id/members.
func (h *Handler) Members(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	members, err := h.svc.Members(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.fail(c, err, "failed to load members")
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	response.OK(c, members)
}

// CreateUserRequest is the body for POST /organizations/:id/users.
type CreateUserRequest struct {
	NewUser
	Role models.Role `json:"role"`
}

// CreateUser handles POST /organizations/:id/users.
func (h *Handler) CreateUser(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.CreateUser(c.Request.Context(), middleware.PrincipalFrom(c), id, req.NewUser, req.Role)
	if err != nil {
		h.fail(c, err, "failed to create user")
		return
	}
	response.Created(c, u.ToPublic())
}

// AssignRoleRequest is the body for PUT /organizations/:id/roles.
type AssignRoleRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required"`
	Role   models.Role `json:"role" binding:"required"`
}

// AssignRole handles PUT /organizations/:id/roles.
func (h *Handler) AssignRole(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and role required")
		return
	}
	ra, err := h.svc.AssignRole(c.Request.Context(), middleware.PrincipalFrom(c), req.UserID, id, req.Role)
	if err != nil {
		h.fail(c, err, "failed to assign role")
		return
	}
	response.OK(c, ra)
}

// SetRoleActiveRequest is the body for PATCH /roles/:id.
type SetRoleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetRoleActive handles PATCH /roles/:id.
func (h *Handler) SetRoleActive(c *gin.Context) {
	id, ok := idParam(c, "id", "role assignment")
	if !ok {
		return
	}
	var req SetRoleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "is_active required")
		return
	}
	ra, err := h.svc.SetRoleActive(c.Request.Context(), middleware.PrincipalFrom(c), id, *req.IsActive)
	if err != nil {
		h.fail(c, err, "failed to update role")
		return
	}
	response.OK(c, ra)
}

// RemoveRole handles DELETE /roles/:id.
func (h *Handler) RemoveRole(c *gin.Context) {
	id, ok := idParam(c, "id", "role assignment")
	if !ok {
		return
	}
	if err := h.svc.RemoveRole(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		h.fail(c, err, "failed to remove role")
		return
	}
	response.NoContent(c)
}

// ImportRequest is the JSON form of POST /organizations/:id/import.
type ImportRequest struct {
	Emails []string    `json:"emails" binding:"required"`
	Role   models.Role `json:"role"`
}

// Import handles POST /organizations/:id/import. Accepts a multipart "file"
// (first CSV column is the email, optional "role" form field) or a JSON body.
func (h *Handler) Import(c *gin.Context) {
	id, ok := idParam(c, "id", "organization")
	if !ok {
		return
	}
	var rows []string
	var role models.Role
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "could not read uploaded file")
			return
		}
		defer f.Close()
		rows, err = ParseCSV(f)
		if err != nil {
			h.fail(c, err, "failed to parse CSV")
			return
		}
		role = models.Role(c.PostForm("role"))
	} else {
		var req ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "a CSV file or an emails list is required")
			return
		}
		rows, role = req.Emails, req.Role
	}
	report, err := h.svc.BulkImport(c.Request.Context(), middleware.PrincipalFrom(c), id, rows, role)
	if err != nil {
		h.fail(c, err, "failed to import members")
		return
	}
	response.OK(c, report)
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.DirectoryStats(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		h.fail(c, err, "failed to load stats")
		return
	}
	response.OK(c, stats)
}
