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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-plan-api/internal/handler"
	"github.com/noah-isme/smart-plan-api/internal/middleware"
	"github.com/noah-isme/smart-plan-api/internal/planner"
	"github.com/noah-isme/smart-plan-api/internal/repository"
	"github.com/noah-isme/smart-plan-api/internal/service"
	"github.com/noah-isme/smart-plan-api/pkg/cache"
	"github.com/noah-isme/smart-plan-api/pkg/config"
	"github.com/noah-isme/smart-plan-api/pkg/database"
	"github.com/noah-isme/smart-plan-api/pkg/llm"
	"github.com/noah-isme/smart-plan-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/smart-plan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smart-plan-api/pkg/middleware/requestid"
	"github.com/noah-isme/smart-plan-api/pkg/sharelink"
	"github.com/noah-isme/smart-plan-api/pkg/tracing"
)

// @title Smart Plan API
// @version 1.0.0
// @description Weekly study plan generation with optional AI enrichment
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	policy, err := planner.PolicyFromConfig(cfg.Planner)
	if err != nil {
		return fmt.Errorf("planner policy: %w", err)
	}
	engine, err := planner.NewEngine(policy)
	if err != nil {
		return fmt.Errorf("planner engine: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db.DB, logr); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()
	planRepo := repository.NewStudyPlanRepository(db)
	dependencies := map[string]handler.Pinger{"postgres": planRepo}

	var cacheRepo service.CacheRepository
	if cfg.PlanCache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		repo := repository.NewCacheRepository(redisClient, "smartplan")
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
		dependencies["redis"] = repo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, logr, service.CacheConfig{
		Enabled:    cfg.PlanCache.Enabled,
		DefaultTTL: cfg.PlanCache.TTL,
	})

	enrichment := buildEnrichment(cfg.Enrichment, metrics, logr)

	var history *service.PlanHistoryService
	if cfg.History.Enabled {
		history = service.NewPlanHistoryService(planRepo, metrics, logr, service.PlanHistoryConfig{
			Workers:    cfg.History.WorkerConcurrency,
			MaxRetries: cfg.History.WorkerRetries,
		})
		history.Start(ctx)
		defer history.Stop()
	}

	sharePath := cfg.APIPrefix + "/shared/study-plans"
	studyPlans := service.NewStudyPlanService(
		engine,
		enrichment,
		cacheSvc,
		planRepo,
		history,
		sharelink.NewSigner(cfg.Sharing.SigningSecret, cfg.Sharing.LinkTTL),
		metrics,
		nil,
		logr,
		service.StudyPlanConfig{
			CacheTTL:         cfg.PlanCache.TTL,
			BatchMaxStudents: cfg.Batch.MaxStudents,
			BatchConcurrency: cfg.Batch.Concurrency,
			SharePath:        sharePath,
		},
	)
	auth := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	registerRoutes(r, cfg, routeDeps{
		auth:       auth,
		studyPlans: handler.NewStudyPlanHandler(studyPlans),
		system:     handler.NewMetricsHandler(metrics, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEnrichment returns an enrichment service that is disabled unless a
// provider key is configured.
func buildEnrichment(cfg config.EnrichmentConfig, metrics *service.MetricsService, logr *zap.Logger) *service.PlanEnrichmentService {
	svcCfg := service.EnrichmentConfig{Enabled: cfg.Enabled, Timeout: cfg.Timeout, TipFallback: cfg.TipFallback}
	if !cfg.Enabled {
		return service.NewPlanEnrichmentService(nil, metrics, logr, svcCfg)
	}
	client, err := llm.New(llm.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model, Temperature: 0.4})
	if err != nil {
		logr.Warn("plan enrichment disabled", zap.Error(err))
		return service.NewPlanEnrichmentService(nil, metrics, logr, svcCfg)
	}
	logr.Info("plan enrichment enabled", zap.String("model", client.Model()), zap.Duration("timeout", cfg.Timeout))
	return service.NewPlanEnrichmentService(client, metrics, logr, svcCfg)
}
