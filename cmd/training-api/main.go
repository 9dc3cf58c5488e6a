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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/hrd-training-api/api/swagger"
	"github.com/noah-isme/hrd-training-api/internal/handler"
	internalmiddleware "github.com/noah-isme/hrd-training-api/internal/middleware"
	"github.com/noah-isme/hrd-training-api/internal/models"
	"github.com/noah-isme/hrd-training-api/internal/repository"
	"github.com/noah-isme/hrd-training-api/internal/service"
	"github.com/noah-isme/hrd-training-api/pkg/cache"
	"github.com/noah-isme/hrd-training-api/pkg/config"
	"github.com/noah-isme/hrd-training-api/pkg/database"
	"github.com/noah-isme/hrd-training-api/pkg/jobs"
	"github.com/noah-isme/hrd-training-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hrd-training-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hrd-training-api/pkg/middleware/requestid"
)

// @title HRD Training API
// @version 1.0.0
// @description Training enrollment, scheduling and attendance service
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoDB, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to mongodb", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
			logr.Sugar().Warnw("mongodb disconnect failed", "error", err)
		}
	}()

	// Redis is optional: schedule caching degrades to recomputation.
	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, schedule cache disabled", "error", err)
			cfg.Cache.Enabled = false
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			cacheRepo = repo
			defer repo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	moduleRepo := repository.NewModuleRepository(mongoDB)
	programRepo := repository.NewCycleProgramRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	scheduleSvc := service.NewScheduleService(cacheSvc, logr)
	syncSvc := service.NewSyncService(registrationRepo, programRepo, moduleRepo, metricsSvc, logr)

	syncQueue := jobs.NewQueue(service.SyncJobType, syncSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		BufferSize: cfg.Sync.BufferSize,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay,
		Logger:     logr,
	})
	syncQueue.Start(ctx)
	defer syncQueue.Stop()

	moduleSvc := service.NewModuleService(moduleRepo, scheduleSvc, logr)
	assignmentSvc := service.NewAssignmentService(moduleRepo, scheduleSvc, syncSvc, syncQueue, metricsSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(registrationRepo, programRepo, moduleRepo, validate, logr)
	presenceSvc := service.NewPresenceService(presenceRepo, registrationRepo, moduleRepo, scheduleSvc, validate, logr)
	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)

	moduleHandler := handler.NewModuleHandler(moduleSvc, assignmentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	presenceHandler := handler.NewPresenceHandler(presenceSvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	anyRole := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleLearner)

	modules := api.Group("/modules")
	{
		modules.GET("/:id", anyRole, moduleHandler.Get)
		modules.GET("/:id/schedule", anyRole, moduleHandler.Schedule)
		modules.GET("/:id/conflicts/:otherId", anyRole, moduleHandler.Conflicts)
		modules.POST("/:id/assignments", adminOnly, moduleHandler.Assign)
		modules.POST("/:id/presence", adminOnly, presenceHandler.Submit)
		modules.POST("/:id/sync", adminOnly, syncHandler.Sync)
		modules.POST("/:id/reconcile", adminOnly, syncHandler.Reconcile)
	}

	api.POST("/programs/:id/registrations", anyRole, enrollmentHandler.Register)
	api.GET("/registrations/:id", anyRole, enrollmentHandler.Get)
	api.PATCH("/registrations/:id/decision", adminOnly, enrollmentHandler.Decide)
	api.GET("/user-modules/:id/presence", anyRole, presenceHandler.History)
	api.GET("/user-modules/:id/presence/summary", anyRole, presenceHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
