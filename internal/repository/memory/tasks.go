package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskmanager/internal/model"
	"taskmanager/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStore is the in-memory task store.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[primitive.ObjectID]*model.Task
	now   func() time.Time
}

var _ repository.ITaskRepository = (*TaskStore)(nil)

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[primitive.ObjectID]*model.Task), now: time.Now}
}

func (s *TaskStore) Create(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.SetID(primitive.NewObjectID())
	task.Touch(s.now(), true)
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *TaskStore) FindByID(_ context.Context, id primitive.ObjectID) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTask(s.tasks[id]), nil
}

func (s *TaskStore) Update(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return model.ErrNotFound
	}
	task.Touch(s.now(), false)
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *TaskStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) List(_ context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	tasks := make([]*model.Task, 0)
	for _, t := range s.tasks {
		switch {
		case filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo:
			continue
		case filter.Status != "" && t.Status != filter.Status:
			continue
		case filter.Priority != "" && t.Priority != filter.Priority:
			continue
		case search != "" && !strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search):
			continue
		}
		tasks = append(tasks, cloneTask(t))
	}

	less := taskOrder(filter.SortBy)
	sort.SliceStable(tasks, func(i, j int) bool {
		if filter.Desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
	if filter.Limit > 0 && int64(len(tasks)) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func taskOrder(key string) func(a, b *model.Task) bool {
	switch key {
	case "updatedAt":
		return func(a, b *model.Task) bool { return byCreated(a.UpdatedAt, b.UpdatedAt, a.ID, b.ID) }
	case "dueDate":
		return func(a, b *model.Task) bool { return byCreated(a.DueDate, b.DueDate, a.ID, b.ID) }
	case "title":
		return func(a, b *model.Task) bool { return a.Title < b.Title }
	case "status":
		return func(a, b *model.Task) bool { return a.Status < b.Status }
	case "priority":
		return func(a, b *model.Task) bool { return a.Priority < b.Priority }
	}
	return func(a, b *model.Task) bool { return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID) }
}

func (s *TaskStore) Count(_ context.Context, status model.TaskStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.tasks {
		if status == "" || t.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *TaskStore) DeleteByAssigner(_ context.Context, uid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tasks {
		if t.AssignedBy == uid {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (s *TaskStore) ReassignAssignee(_ context.Context, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for _, t := range s.tasks {
		if t.AssignedTo == from {
			t.AssignedTo = to
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func cloneTask(t *model.Task) *model.Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string{}, t.Tags...)
	return &c
}
