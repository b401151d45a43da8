package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
	"taskmanager/pkg/util"

	"github.com/rs/zerolog"
)

// TaskService applies the access policy to every task operation. Lookups
// happen before permission checks, so a missing task is reported as not found
// even to actors who could not have seen it.
type TaskService struct {
	tasks repository.ITaskRepository
	cfg   config.TaskConfig
	log   zerolog.Logger
	now   func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(tasks repository.ITaskRepository, cfg config.TaskConfig, log zerolog.Logger) *TaskService {
	return &TaskService{
		tasks: tasks,
		cfg:   cfg,
		log:   log.With().Str("component", "tasks").Logger(),
		now:   time.Now,
	}
}

// List returns the tasks visible to actor. Non-admins are always scoped to
// their own assignments, whatever the filter asks for.
func (s *TaskService) List(ctx context.Context, actor *model.User, filter model.TaskFilter) ([]*model.Task, error) {
	if err := validateTaskFilter(filter); err != nil {
		return nil, err
	}
	if assignee, scoped := policy.TaskListScope(actor); scoped {
		filter.AssignedTo = assignee
	}
	filter.Limit = s.cfg.ListLimit
	return s.tasks.List(ctx, filter)
}

// MyTasks lists tasks assigned to actor, newest first.
func (s *TaskService) MyTasks(ctx context.Context, actor *model.User) ([]*model.Task, error) {
	return s.tasks.List(ctx, model.TaskFilter{
		AssignedTo: actor.UID,
		SortBy:     "createdAt",
		Desc:       true,
	})
}

// ListAll is the unscoped admin listing.
func (s *TaskService) ListAll(ctx context.Context, actor *model.User, filter model.TaskFilter) ([]*model.Task, error) {
	if !policy.CanManageAll(actor) {
		return nil, model.ErrForbidden
	}
	if err := validateTaskFilter(filter); err != nil {
		return nil, err
	}
	filter.Limit = s.cfg.ListLimit
	return s.tasks.List(ctx, filter)
}

// Get returns one task if actor may view it.
func (s *TaskService) Get(ctx context.Context, actor *model.User, id string) (*model.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewTask(actor, task) {
		return nil, model.ErrForbidden
	}
	return task, nil
}

// Create stores a new task. assignedBy is always the actor; assignedTo
// defaults to the actor.
func (s *TaskService) Create(ctx context.Context, actor *model.User, req *model.CreateTaskRequest) (*model.Task, error) {
	if actor == nil {
		return nil, model.ErrUnauthenticated
	}

	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	tags := util.NormalizeTags(req.Tags)

	status := model.StatusPending
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, model.NewValidationError("status", "Invalid task status")
		}
		status = req.Status
	}
	priority := model.PriorityMedium
	if req.Priority != "" {
		if !req.Priority.Valid() {
			return nil, model.NewValidationError("priority", "Invalid task priority")
		}
		priority = req.Priority
	}

	assignedTo := strings.TrimSpace(req.AssignedTo)
	if assignedTo == "" {
		assignedTo = actor.UID
	}

	dueDate := s.now().AddDate(0, 0, s.cfg.DefaultDueDays)
	if req.DueDate != nil && !req.DueDate.IsZero() {
		dueDate = *req.DueDate
	}

	task := &model.Task{
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		AssignedTo:  assignedTo,
		AssignedBy:  actor.UID,
		DueDate:     dueDate,
		Tags:        tags,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.log.Debug().Str("task", task.ID.Hex()).Str("actor", actor.UID).Str("assigned_to", assignedTo).Msg("task created")
	return task, nil
}

// Update applies the non-nil fields of req. assignedBy cannot change and any
// status may follow any other.
func (s *TaskService) Update(ctx context.Context, actor *model.User, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditTask(actor, task) {
		return nil, model.ErrForbidden
	}

	if req.Title != nil {
		if task.Title, err = validateTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if task.Description, err = validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, model.NewValidationError("status", "Invalid task status")
		}
		task.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, model.NewValidationError("priority", "Invalid task priority")
		}
		task.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		assignee := strings.TrimSpace(*req.AssignedTo)
		if assignee == "" {
			return nil, model.NewValidationError("assignedTo", "Assignee cannot be empty")
		}
		task.AssignedTo = assignee
	}
	if req.DueDate != nil {
		if req.DueDate.IsZero() {
			return nil, model.NewValidationError("dueDate", "Invalid due date")
		}
		task.DueDate = *req.DueDate
	}
	if req.Tags != nil {
		task.Tags = util.NormalizeTags(*req.Tags)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete removes a task if actor may delete it.
func (s *TaskService) Delete(ctx context.Context, actor *model.User, id string) error {
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanDeleteTask(actor, task) {
		return model.ErrForbidden
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.log.Debug().Str("task", task.ID.Hex()).Str("actor", actor.UID).Msg("task deleted")
	return nil
}

func (s *TaskService) find(ctx context.Context, id string) (*model.Task, error) {
	oid, err := util.ParseObjectID(id)
	if err != nil {
		return nil, model.NewValidationError("id", "Invalid task ID format")
	}
	task, err := s.tasks.FindByID(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	return task, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", model.NewValidationError("title", "Please add a task title")
	}
	if utf8.RuneCountInString(title) > model.MaxTaskTitleLength {
		return "", model.NewValidationError("title", fmt.Sprintf("Title cannot be more than %d characters", model.MaxTaskTitleLength))
	}
	return title, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", model.NewValidationError("description", "Please add a task description")
	}
	if utf8.RuneCountInString(description) > model.MaxTaskDescriptionLength {
		return "", model.NewValidationError("description", fmt.Sprintf("Description cannot be more than %d characters", model.MaxTaskDescriptionLength))
	}
	return description, nil
}

func validateTaskFilter(filter model.TaskFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return model.NewValidationError("status", "Invalid status filter")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return model.NewValidationError("priority", "Invalid priority filter")
	}
	return nil
}
