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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/health-registry-api/api/swagger"
	"github.com/noah-isme/health-registry-api/internal/handler"
	"github.com/noah-isme/health-registry-api/internal/middleware"
	"github.com/noah-isme/health-registry-api/internal/repository"
	"github.com/noah-isme/health-registry-api/internal/service"
	"github.com/noah-isme/health-registry-api/pkg/cache"
	"github.com/noah-isme/health-registry-api/pkg/config"
	"github.com/noah-isme/health-registry-api/pkg/database"
	"github.com/noah-isme/health-registry-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/health-registry-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/health-registry-api/pkg/middleware/requestid"
)

// @title Health Program Registry API
// @version 1.0.0
// @description Programs, clients and enrollments for a clinic health-program registry
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logr.Info("database schema ready", zap.String("driver", cfg.Database.Driver))
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	var programCache *service.CacheService
	if cfg.Programs.CacheEnabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient, err := cache.NewRedis(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			logr.Warn("program cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewRedisCacheRepository(redisClient)
			defer cacheRepo.Close() //nolint:errcheck
			programCache = service.NewCacheService(cacheRepo, service.ProgramCacheNamespace, cfg.Programs.CacheTTL, metrics, logr)
		}
	}

	programRepo := repository.NewProgramRepository(db)
	clientRepo := repository.NewClientRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	programSvc := service.NewProgramService(programRepo, programCache, metrics, validate, logr)
	clientSvc := service.NewClientService(clientRepo, enrollmentRepo, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, clientRepo, programRepo, db, metrics, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS))

	metricsHandler := handler.NewMetricsHandler(metrics, db, logr)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Programs:    handler.NewProgramHandler(programSvc),
		Clients:     handler.NewClientHandler(clientSvc, enrollmentSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "api_prefix", cfg.APIPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
