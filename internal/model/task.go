package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the lifecycle state of a task. Any state may follow any other.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TaskPriority ranks a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 2000
)

// Task is a unit of work owned by the uid that assigned it and the uid it is assigned to.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Status      TaskStatus         `bson:"status" json:"status"`
	Priority    TaskPriority       `bson:"priority" json:"priority"`
	AssignedTo  string             `bson:"assignedTo" json:"assignedTo"`
	AssignedBy  string             `bson:"assignedBy" json:"assignedBy"`
	DueDate     time.Time          `bson:"dueDate" json:"dueDate"`
	Tags        []string           `bson:"tags" json:"tags"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// GetID implements generic.Entity.
func (t *Task) GetID() primitive.ObjectID { return t.ID }

// SetID implements generic.Entity.
func (t *Task) SetID(id primitive.ObjectID) { t.ID = id }

// Touch implements generic.Entity.
func (t *Task) Touch(now time.Time, created bool) {
	if created {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssignedTo  string       `json:"assignedTo"`
	DueDate     *time.Time   `json:"dueDate"`
	Tags        []string     `json:"tags"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/:id. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Status      *TaskStatus   `json:"status"`
	Priority    *TaskPriority `json:"priority"`
	AssignedTo  *string       `json:"assignedTo"`
	DueDate     *time.Time    `json:"dueDate"`
	Tags        *[]string     `json:"tags"`
}

// TaskFilter carries the list query parameters.
type TaskFilter struct {
	// AssignedTo, when set, restricts the listing to one assignee before any other filter.
	AssignedTo string
	Status     TaskStatus
	Priority   TaskPriority
	Search     string
	SortBy     string
	Desc       bool
	Limit      int64
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers      int64 `json:"totalUsers"`
	TotalTasks      int64 `json:"totalTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	PendingTasks    int64 `json:"pendingTasks"`
}
