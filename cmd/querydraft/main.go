package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/querydraft/internal/collab"
	"github.com/dimitrije/querydraft/internal/config"
	"github.com/dimitrije/querydraft/internal/database"
	"github.com/dimitrije/querydraft/internal/eventlog"
	"github.com/dimitrije/querydraft/internal/handlers"
	"github.com/dimitrije/querydraft/internal/hub"
	authmw "github.com/dimitrije/querydraft/internal/middleware"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/presence"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	workspaceService := services.NewWorkspaceService(db)
	permissionService := services.NewPermissionService(db)

	connections := hub.NewHub(logger.With("component", "hub"))
	defer connections.Close()

	var options []collab.Option
	var presenceReader handlers.PresenceReader

	if cfg.Kafka.Enabled() {
		producer, err := eventlog.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("Failed to create kafka producer: %v", err)
		}
		dispatcher := eventlog.NewDispatcher(producer, cfg.Kafka.Topic, eventlog.OptionsFromConfig(cfg.Kafka), logger.With("component", "eventlog"))
		defer func() {
			if err := dispatcher.Close(); err != nil {
				logger.Warn("kafka dispatcher close failed", "error", err)
			}
		}()
		options = append(options, collab.WithPublisher(dispatcher))
		logger.Info("edit feed enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		store := presence.NewStore(rdb, cfg.Redis.PresenceTTL)
		if err := store.Ping(ctx); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		mirror := presence.NewMirror(store, cfg.Redis.QueueSize, logger.With("component", "presence"))
		defer mirror.Close()

		options = append(options, collab.WithPresence(mirror))
		presenceReader = store
		logger.Info("presence mirror enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.PresenceTTL)
	}

	manager := collab.NewManager(workspaceService, connections, collab.OptionsFromConfig(cfg.Collab), logger.With("component", "collab"), options...)
	defer manager.Close()

	workspaceHandler := handlers.NewWorkspaceHandler(workspaceService, logger)
	sessionHandler := handlers.NewSessionHandler(manager, workspaceService, presenceReader, logger)
	sseHandler := handlers.NewSSEHandler(connections, manager, workspaceService, logger)
	syncHandler := handlers.NewSyncHandler(connections, manager, permissionService, jwtService, logger.With("component", "sync"))

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))
	protected.Use(authmw.RequireCapability(permissionService, models.CapabilityQueryData))

	protected.Get("/workspaces", workspaceHandler.List)
	protected.Post("/workspaces", workspaceHandler.Create)
	protected.Get("/workspaces/:workspaceId", workspaceHandler.Get)
	protected.Post("/workspaces/:workspaceId/members", workspaceHandler.Invite)

	protected.Post("/workspaces/:workspaceId/sessions", sessionHandler.Create)
	protected.Get("/sessions/:sessionId/status", sessionHandler.Status)
	protected.Get("/sessions/:sessionId/presence", sessionHandler.Presence)
	protected.Get("/sessions/:sessionId/events", sseHandler.Connect)

	protected.Get("/users/me/stats", sessionHandler.UserStats)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]any{
			"status":   "ok",
			"sessions": manager.SessionCount(),
		})
	})

	// Token and capability are checked inside the handler, before upgrading.
	api.Get("/ws", syncHandler.Connect)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
