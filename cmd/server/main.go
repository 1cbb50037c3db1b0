package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/config"
	"github.com/yukikurage/task-lifecycle-api/internal/database"
	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	"github.com/yukikurage/task-lifecycle-api/internal/handlers"
	"github.com/yukikurage/task-lifecycle-api/internal/logger"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/router"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
	"github.com/yukikurage/task-lifecycle-api/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var rotate *logger.FileRotate
	if cfg.Log.File != "" {
		rotate = &logger.FileRotate{
			Filename:   cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	log, sync := logger.New(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Rotate: rotate})
	defer sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Set Gin mode
	gin.SetMode(cfg.App.GinMode)

	// Connect to database
	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Run migrations
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store, closeStore, err := newCacheStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	c := cache.New(store, cfg.CacheTTL(), log)

	blobs, err := storage.NewOSBlobStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}

	jwter := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.TokenTTL(), store)
	repos := repository.NewSet(db)
	authz := services.NewAuthorizer(repos.Users, repos.Roles)
	opts := services.Options{Location: cfg.Location(), CacheTTL: cfg.CacheTTL(), Logger: log}

	userService := services.NewUserService(db, repos, authz, c, blobs, jwter, opts)
	taskService := services.NewTaskService(db, repos, authz, c, blobs, opts)
	annotationService := services.NewAnnotationService(repos, authz, c, blobs, opts)
	roleService := services.NewRoleService(repos.Roles, authz, c, opts)

	dto.RegisterValidation()

	engine := router.New(router.Deps{
		Logger:      log,
		JWT:         jwter,
		Limits:      cfg.Limits,
		Auth:        handlers.NewAuthHandler(userService),
		Tasks:       handlers.NewTaskHandler(taskService, cfg.Location()),
		Annotations: handlers.NewAnnotationHandler(annotationService, cfg.Storage.MaxUploadBytes),
		Roles:       handlers.NewRoleHandler(roleService),
		Files:       blobs.HTTPFileSystem(),
		FilesURL:    blobs.BasePath(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.App.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.App.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.App.HTTP.IdleTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCacheStore picks the configured cache backend. The memory store must
// outlive issued tokens so revocations are not forgotten early.
func newCacheStore(cfg *config.Config, log *zap.Logger) (cache.Store, func(), error) {
	switch cfg.Cache.Driver {
	case "memory":
		log.Info("using in-memory cache")
		return cache.NewMemoryStore(cfg.Cache.MemoryItems, max(cfg.CacheTTL(), cfg.TokenTTL())), func() {}, nil
	default:
		rs := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		return rs, func() { _ = rs.Close() }, nil
	}
}
