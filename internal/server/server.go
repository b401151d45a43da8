package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const shutdownTimeout = 15 * time.Second

// Server represents the HTTP server
type Server struct {
	cfg      *config.Config
	log      zerolog.Logger
	router   *gin.Engine
	mongo    *mongo.Client
	limiter  *middleware.RateLimiter
	services *Services
}

// New connects the stores and identity provider, seeds the admin account and
// builds the router.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	gateway, err := identity.New(ctx, cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	var mongoClient *mongo.Client
	var repos *Repositories
	if cfg.Mongo.UsesMemoryStore() {
		log.Warn().Msg("using in-memory stores; data is lost on restart")
		repos = InitMemoryRepositories()
	} else {
		mongoClient, err = Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db := mongoClient.Database(cfg.Mongo.Database)
		if err := EnsureIndexes(ctx, db); err != nil {
			_ = mongoClient.Disconnect(context.Background())
			return nil, err
		}
		repos = InitRepositories(cfg, db)
	}

	registry := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.NopRecorder{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewCollector(registry)
	}

	services := InitServices(cfg, repos, gateway, recorder, log)
	handlers := InitHandlers(services, storePinger(mongoClient))

	if err := PopulateInitialData(ctx, cfg, services); err != nil {
		if mongoClient != nil {
			_ = mongoClient.Disconnect(context.Background())
		}
		return nil, fmt.Errorf("failed to populate initial data: %w", err)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, log)
	}

	router := setupRouter(RouterDeps{
		Config:   cfg,
		Log:      log,
		Gateway:  gateway,
		Users:    services.User,
		Handlers: handlers,
		Recorder: recorder,
		Gatherer: registry,
		Limiter:  limiter,
	})

	return &Server{
		cfg:      cfg,
		log:      log,
		router:   router,
		mongo:    mongoClient,
		limiter:  limiter,
		services: services,
	}, nil
}

// Connect opens and pings the Mongo client.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	timeout := time.Duration(cfg.Mongo.ConnectTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func storePinger(client *mongo.Client) func(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and disconnects MongoDB
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.mongo.Disconnect(ctx)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("identity", s.cfg.Identity.Provider).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}
