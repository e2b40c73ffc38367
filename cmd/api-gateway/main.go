package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/class-builder-api/api/swagger"
	"github.com/noah-isme/class-builder-api/internal/handler"
	"github.com/noah-isme/class-builder-api/internal/middleware"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/repository"
	"github.com/noah-isme/class-builder-api/internal/service"
	"github.com/noah-isme/class-builder-api/pkg/cache"
	"github.com/noah-isme/class-builder-api/pkg/config"
	"github.com/noah-isme/class-builder-api/pkg/database"
	"github.com/noah-isme/class-builder-api/pkg/jobs"
	"github.com/noah-isme/class-builder-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/class-builder-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/class-builder-api/pkg/middleware/requestid"
	"github.com/noah-isme/class-builder-api/pkg/storage"
)

// @title Class Builder API
// @version 1.0.0
// @description Builds balanced classes from a student roster.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.ReadinessCheck{}
	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var db *sqlx.DB
	if cfg.Database.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		checks["database"] = db.PingContext
	}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, proposals stay in memory", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
			checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, client) }
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, logr, service.CacheConfig{
		Enabled:    cacheRepo != nil,
		KeyPrefix:  cfg.Redis.KeyPrefix,
		DefaultTTL: cfg.ClassBuilder.ProposalTTL,
	})

	builderCfg := service.ClassBuilderConfig{
		DefaultMinSize: cfg.ClassBuilder.DefaultMinSize,
		DefaultMaxSize: cfg.ClassBuilder.DefaultMaxSize,
		MaxStudents:    cfg.ClassBuilder.MaxStudents,
		ProposalTTL:    cfg.ClassBuilder.ProposalTTL,
		ParallelPools:  cfg.ClassBuilder.ParallelPools,
	}
	var classBuilderSvc *service.ClassBuilderService
	if db != nil {
		classBuilderSvc = service.NewClassBuilderService(
			repository.NewClassGenerationRepository(db),
			repository.NewClassPlacementRepository(db),
			db, cacheSvc, metricsSvc, validate, logr, builderCfg)
	} else {
		classBuilderSvc = service.NewClassBuilderService(nil, nil, nil, cacheSvc, metricsSvc, validate, logr, builderCfg)
	}
	classBuilderSvc.StartProposalSweeper(ctx, time.Minute)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSvc := service.NewExportService(files, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}, logr)

	exportHandler := handler.NewExportHandler(nil, exportSvc)
	if cfg.Exports.Enabled {
		store := service.NewExportJobStore()
		worker := service.NewExportWorker(store, exportSvc, metricsSvc, logr)
		queue := jobs.NewQueue("class-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.OnFailure(worker.Fail)
		queue.Start(ctx)
		defer queue.Stop()

		exportJobs := service.NewExportJobService(store, classBuilderSvc, queue, exportSvc, metricsSvc, validate, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.Retention,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		exportJobs.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportJobs, exportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	registerRoutes(r.Group(cfg.APIPrefix), tokens,
		handler.NewClassBuilderHandler(classBuilderSvc, cfg.ClassBuilder.MaxUploadBytes),
		exportHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env,
			"persistence", db != nil, "proposal_cache", cacheSvc.Enabled(), "exports", cfg.Exports.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerRoutes(api *gin.RouterGroup, tokens *service.TokenService, classes *handler.ClassBuilderHandler, exports *handler.ExportHandler) {
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	// Download links are signed and carry no bearer token.
	api.GET("/class-builder/exports/download/:token", exports.Download)

	builder := api.Group("/class-builder", middleware.JWT(tokens), staff)
	builder.POST("/rosters/parse", classes.ParseRoster)
	builder.GET("/rosters/template", exports.Template)
	builder.POST("/generate", classes.Generate)
	builder.GET("/proposals/:id", classes.GetProposal)
	builder.POST("/proposals/:id/moves", classes.MoveStudent)
	builder.POST("/proposals/:id/exports", exports.ProposalExport)
	builder.POST("/generations", admins, classes.Save)
	builder.GET("/generations", classes.List)
	builder.GET("/generations/:id/placements", classes.Placements)
	builder.POST("/generations/:id/exports", exports.GenerationExport)
	builder.DELETE("/generations/:id", admins, classes.Delete)
	builder.GET("/exports/:jobId", exports.Status)
}
