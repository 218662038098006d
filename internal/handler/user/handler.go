package user

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/directory"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	dir *directory.Service
}

func NewHandler(dir *directory.Service) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	users := r.Group("/users")
	users.Use(auth.Authenticate())
	{
		users.GET("/me", h.GetProfile)
		users.GET("", auth.RequireRoles(model.RoleAdmin, model.RoleDoctor), h.ListUsers)
		users.GET("/:id", auth.RequireRoles(model.RoleAdmin, model.RoleDoctor), h.GetUser)
		users.DELETE("/:id", auth.RequireRoles(model.RoleAdmin), h.DeactivateUser)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	user, err := h.dir.FindByID(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	var role model.Role
	if q := c.Query("role"); q != "" {
		parsed, err := model.ParseRole(q)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation(err.Error()))
			return
		}
		role = parsed
	}

	users, err := h.dir.List(c.Request.Context(), role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, users, len(users))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID"))
		return
	}

	user, err := h.dir.FindByID(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}

// DeactivateUser soft-disables the account; no user record is ever hard
// deleted.
func (h *Handler) DeactivateUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid user ID"))
		return
	}

	if err := h.dir.Deactivate(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"message": "user deactivated"})
}
