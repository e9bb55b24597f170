package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/taskhive/taskhive-api/internal/cache"
	"github.com/taskhive/taskhive-api/internal/config"
	"github.com/taskhive/taskhive-api/internal/events"
	"github.com/taskhive/taskhive-api/internal/hierarchy"
	"github.com/taskhive/taskhive-api/internal/platform/postgres"
	redisPlatform "github.com/taskhive/taskhive-api/internal/platform/redis"
	"github.com/taskhive/taskhive-api/internal/service"
	"github.com/taskhive/taskhive-api/internal/service/auth"
	"github.com/taskhive/taskhive-api/internal/store"
	"github.com/taskhive/taskhive-api/internal/translation"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *goredis.Client

	userStore store.UserStore
	taskStore store.TaskStore

	jwtService  auth.JWTService
	broadcaster *events.Broadcaster

	userService *service.UserService
	taskService *service.TaskService
}

// newApplication creates an application instance with all dependencies
// initialized. The caller owns the returned application and must let Run
// drive its lifecycle so cleanup releases the connections.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
	}

	var err error
	app.db, err = setupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	app.redis, err = setupRedis(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up redis: %w", err)
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	log.Info("JWT authentication service initialized",
		"token_lifetime_mins", cfg.Auth.TokenLifetimeMins)

	app.userStore = postgres.NewUserStore(app.db)
	app.taskStore = postgres.NewTaskStore(app.db)

	backend := redisPlatform.NewCache(app.redis, cfg.Cache.OpTimeout())
	topo := cache.NewTopology(backend, cache.TTLs{
		Detail:      cfg.Cache.DetailTTL(),
		List:        cfg.Cache.ListTTL(),
		Aggregate:   cfg.Cache.AggregateTTL(),
		Translation: cfg.Cache.TranslationTTL(),
	}, cfg.Locale.Supported, log)
	propagator := cache.NewPropagator(topo, app.taskStore, log)

	bus := redisPlatform.NewBus(app.redis, cfg.Cache.OpTimeout())
	app.broadcaster = events.NewBroadcaster(bus, log)

	guard := hierarchy.NewGuard(app.taskStore, cfg.Locale.Fallback)
	resolver := translation.NewResolver(cfg.Locale.Supported, cfg.Locale.Fallback)

	app.userService, err = service.NewUserService(
		app.userStore,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		app.jwtService,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		guard,
		topo,
		propagator,
		app.broadcaster,
		resolver,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	log.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
