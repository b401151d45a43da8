package server

import (
	"context"

	"taskmanager/internal/config"
	"taskmanager/internal/handler"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/repository"
	"taskmanager/internal/repository/memory"
	"taskmanager/internal/service"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories holds the two stores.
type Repositories struct {
	Users repository.IUserRepository
	Tasks repository.ITaskRepository
}

func InitRepositories(cfg *config.Config, db *mongo.Database) *Repositories {
	return &Repositories{
		Users: repository.NewUserRepository(cfg, db),
		Tasks: repository.NewTaskRepository(cfg, db),
	}
}

func InitMemoryRepositories() *Repositories {
	return &Repositories{
		Users: memory.NewUserStore(),
		Tasks: memory.NewTaskStore(),
	}
}

// EnsureIndexes creates the unique uid/email indexes the reconciliation
// relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return repository.EnsureIndexes(ctx, db)
}

// Services holds the service layer.
type Services struct {
	User    *service.UserService
	Task    *service.TaskService
	Stats   *service.StatsService
	Gateway identity.Gateway
}

func InitServices(cfg *config.Config, repos *Repositories, gateway identity.Gateway, rec metrics.Recorder, log zerolog.Logger) *Services {
	return &Services{
		User:    service.NewUserService(repos.Users, repos.Tasks, gateway, rec, log),
		Task:    service.NewTaskService(repos.Tasks, cfg.Tasks, log),
		Stats:   service.NewStatsService(repos.Users, repos.Tasks),
		Gateway: gateway,
	}
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	User   *handler.UserHandler
	Task   *handler.TaskHandler
	Admin  *handler.AdminHandler
	Health *handler.HealthHandler
}

func InitHandlers(s *Services, ping func(ctx context.Context) error) *Handlers {
	var pinger handler.Pinger
	if ping != nil {
		pinger = handler.PingFunc(ping)
	}
	return &Handlers{
		User:   handler.NewUserHandler(s.User),
		Task:   handler.NewTaskHandler(s.Task),
		Admin:  handler.NewAdminHandler(s.User, s.Task, s.Stats),
		Health: handler.NewHealthHandler(pinger),
	}
}

// PopulateInitialData seeds the configured admin account.
func PopulateInitialData(ctx context.Context, cfg *config.Config, s *Services) error {
	_, _, err := s.User.SeedAdmin(ctx, cfg.SeedAdmin)
	return err
}
