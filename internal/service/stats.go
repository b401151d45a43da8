package service

import (
	"context"
	"fmt"

	"taskmanager/internal/model"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
)

// StatsService builds the admin dashboard counters.
type StatsService struct {
	users repository.IUserRepository
	tasks repository.ITaskRepository
}

func NewStatsService(users repository.IUserRepository, tasks repository.ITaskRepository) *StatsService {
	return &StatsService{users: users, tasks: tasks}
}

func (s *StatsService) Dashboard(ctx context.Context, actor *model.User) (*model.DashboardStats, error) {
	if !policy.CanManageAll(actor) {
		return nil, model.ErrForbidden
	}

	var stats model.DashboardStats
	var err error
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	counters := []struct {
		status model.TaskStatus
		dst    *int64
	}{
		{"", &stats.TotalTasks},
		{model.StatusCompleted, &stats.CompletedTasks},
		{model.StatusInProgress, &stats.InProgressTasks},
		{model.StatusPending, &stats.PendingTasks},
	}
	for _, c := range counters {
		if *c.dst, err = s.tasks.Count(ctx, c.status); err != nil {
			return nil, fmt.Errorf("failed to count tasks: %w", err)
		}
	}
	return &stats, nil
}
