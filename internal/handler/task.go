package handler

import (
	"net/http"

	"taskmanager/internal/model"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

// TaskHandler serves /api/tasks.
type TaskHandler struct {
	tasks *service.TaskService
}

// NewTaskHandler creates a new Task handler
func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func taskFilterFromQuery(c *gin.Context) model.TaskFilter {
	return model.TaskFilter{
		AssignedTo: c.Query("assignedTo"),
		Status:     model.TaskStatus(c.Query("status")),
		Priority:   model.TaskPriority(c.Query("priority")),
		Search:     c.Query("search"),
		SortBy:     c.DefaultQuery("sortBy", "createdAt"),
		Desc:       descending(c),
	}
}

// List handles GET /tasks. Non-admins only ever see their own assignments.
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), actor, taskFilterFromQuery(c))
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewListResponse(tasks, len(tasks)))
}

// My handles GET /tasks/my
func (h *TaskHandler) My(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.MyTasks(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewListResponse(tasks, len(tasks)))
}

// Get handles GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("", task))
}

// Create handles POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid request body", err.Error()))
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), actor, &req)
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("Task created", task))
}

// Update handles PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid request body", err.Error()))
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task updated", task))
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		writeError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task deleted", nil))
}
