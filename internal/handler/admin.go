package handler

import (
	"net/http"

	"taskmanager/internal/model"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves /api/admin. RequireAdmin guards the group; the services
// check the policy again.
type AdminHandler struct {
	users *service.UserService
	tasks *service.TaskService
	stats *service.StatsService
}

func NewAdminHandler(users *service.UserService, tasks *service.TaskService, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{users: users, tasks: tasks, stats: stats}
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	role := c.Query("role")
	if role == "all" {
		role = ""
	}
	users, err := h.users.ListUsers(c.Request.Context(), actor, model.UserFilter{
		Role:   model.Role(role),
		Search: c.Query("search"),
		SortBy: c.DefaultQuery("sortBy", "createdAt"),
		Desc:   descending(c),
	})
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewListResponse(users, len(users)))
}

// UpdateUserRole handles PUT /admin/users/:uid/role
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid role specified", err.Error()))
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeError(c, err, "User")
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), actor, c.Param("uid"), role)
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("User role updated to "+string(role), user))
}

// RoleStatus handles GET /admin/users/:uid/role-status
func (h *AdminHandler) RoleStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	status, err := h.users.RoleStatus(c.Request.Context(), actor, c.Param("uid"))
	if err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("", status))
}

// DeleteUser handles DELETE /admin/users/:uid
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := h.users.DeleteUser(c.Request.Context(), actor, c.Param("uid")); err != nil {
		writeError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("User deleted", nil))
}

// Stats handles GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	stats, err := h.stats.Dashboard(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err, "Stats")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("", stats))
}

// ListTasks handles GET /admin/tasks
func (h *AdminHandler) ListTasks(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListAll(c.Request.Context(), actor, taskFilterFromQuery(c))
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewListResponse(tasks, len(tasks)))
}
