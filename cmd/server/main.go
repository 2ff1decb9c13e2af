package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab_editor/internal/config"
	"collab_editor/internal/handler"
	"collab_editor/internal/middleware"
	"collab_editor/internal/realtime"
	"collab_editor/internal/repository"
	"collab_editor/internal/service"
	"collab_editor/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)
	if cfg.Environment == "production" {
		appLogger = logger.NewJSON(cfg.Log.Level)
	}

	// Подключение к Redis (опционально)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	// Инициализация репозиториев
	var repos *repository.Repositories
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		dbPool := connectPostgres(cfg, appLogger)
		defer dbPool.Close()
		repos = repository.NewRepositories(dbPool, rdb, cfg, appLogger)
	case config.StorageDriverMemory:
		workspaces := repository.NewMemoryWorkspaceRepository()
		for roomID, ownerID := range cfg.Storage.WorkspaceOwners {
			workspaces.SetOwner(roomID, ownerID)
		}
		repos = repository.NewMemoryRepositories(workspaces, nil)
		appLogger.Warn("Using in-memory storage, chat history is lost on restart",
			"workspaces", len(cfg.Storage.WorkspaceOwners))
	}

	// Инициализация сервисов
	services := service.NewServices(repos, cfg, appLogger)

	// Ядро синхронизации
	relay := realtime.NewRelay(realtime.NewRegistry(), realtime.NewDirectory(appLogger), services.Chat, appLogger)

	// Инициализация middleware и handlers
	middlewares := handler.Middlewares{
		Auth:      middleware.NewAuthMiddleware(services.Tokens, appLogger),
		RateLimit: middleware.NewRateLimitMiddleware(services.RateLimit, appLogger),
	}
	handlers := handler.NewHandlers(services, relay, cfg, appLogger)

	// Настройка роутера
	router := handler.NewRouter(handlers, middlewares, cfg, appLogger)

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// WebSocket соединения захвачены у http.Server, Shutdown их не закрывает
	closed := relay.CloseAll()
	appLogger.Info("WebSocket connections closed", "count", closed)

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func connectPostgres(cfg *config.Config, appLogger logger.Logger) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}

	// Проверка подключения к БД
	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if cfg.Database.EnsureSchema {
		if err := repository.EnsureSchema(context.Background(), dbPool); err != nil {
			appLogger.Fatal("Failed to prepare database schema", "error", err)
		}
	}

	return dbPool
}
