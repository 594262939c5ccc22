package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelis/cineseat/internal/config"
	"github.com/avelis/cineseat/internal/migrations"
	"github.com/avelis/cineseat/internal/postgres"
	"github.com/avelis/cineseat/internal/queue"
	"github.com/avelis/cineseat/internal/redis"
	postgresrepo "github.com/avelis/cineseat/internal/repository/postgres"
	redisrepo "github.com/avelis/cineseat/internal/repository/redis"
	"github.com/avelis/cineseat/internal/scheduler"
	"github.com/avelis/cineseat/internal/service"
	httpgin "github.com/avelis/cineseat/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sched      *scheduler.Scheduler
	events     *queue.Publisher
	pubsub     *redisrepo.ShowsPubSub
	services   *service.Services
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if err := migrations.Apply(context.Background(), pgxPool); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Event publishing is optional: without AMQP_URL bookings still work,
	// they just emit no events.
	var events *queue.Publisher
	if cfg.AMQP.URL != "" {
		events, err = queue.NewPublisher(cfg.AMQP.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize amqp publisher: %w", err)
		}
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewShowsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, events, service.Config{})

	sched := scheduler.New(services.Booking, logger, scheduler.Config{
		SweepInterval: cfg.Scheduler.SweepInterval,
		PurgeInterval: cfg.Scheduler.PurgeInterval,
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sched:    sched,
		events:   events,
		pubsub:   pubsub,
		services: services,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Background sweep of stale pending bookings
	g.Go(func() error {
		if err := a.sched.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	// Re-warm the availability projection when any instance commits a seat
	// change; the after-commit hook only invalidates
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, showID int64) {
			if _, err := a.services.Query.Availability(ctx, showID); err != nil {
				a.logger.Warn("availability warm failed", "show_id", showID, "error", err)
			}
		})
		if err != nil && err != context.Canceled {
			return fmt.Errorf("shows subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		if a.events != nil {
			_ = a.events.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
