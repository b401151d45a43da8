package handler

import (
	"net/http"
	"strings"

	"taskmanager/internal/middleware"
	"taskmanager/internal/model"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler serves /api/users.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new User handler
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GetRole handles GET /users/role/:uid. Unknown uids read as user.
func (h *UserHandler) GetRole(c *gin.Context) {
	uid := c.Param("uid")
	role := h.users.GetRole(c.Request.Context(), uid)
	c.JSON(http.StatusOK, model.NewSuccessResponse("", gin.H{"uid": uid, "role": role}))
}

// GetRoleByEmail handles GET /users/role-by-email/:email
func (h *UserHandler) GetRoleByEmail(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	role, uid := h.users.RoleByEmail(c.Request.Context(), email)
	c.JSON(http.StatusOK, model.NewSuccessResponse("", gin.H{"email": email, "uid": uid, "role": role}))
}

// CheckAdmin handles GET /users/check-admin/:email
func (h *UserHandler) CheckAdmin(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	isAdmin, err := h.users.IsAdminEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("", gin.H{"email": email, "isAdmin": isAdmin}))
}

// Sync handles POST /users/sync. uid and email come from the verified token;
// the body may only supply a display name and photo.
func (h *UserHandler) Sync(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse("Authentication required", ""))
		return
	}

	var req model.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid request body", err.Error()))
			return
		}
	}

	merged := *id
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		merged.DisplayName = name
	}
	if req.PhotoURL != nil {
		merged.PhotoURL = req.PhotoURL
	}

	user, err := h.users.Reconcile(c.Request.Context(), &merged)
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("User synced", user))
}

// GetProfile handles GET /users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	user, err := h.users.GetProfile(c.Request.Context(), actor.UID)
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("", user))
}

// UpdateProfile handles PUT /users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Display name is required and cannot exceed 100 characters", err.Error()))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actor.UID, req.DisplayName)
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Profile updated", user))
}
