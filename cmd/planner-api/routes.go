package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/smart-plan-api/api/swagger"
	"github.com/noah-isme/smart-plan-api/internal/handler"
	"github.com/noah-isme/smart-plan-api/internal/middleware"
	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/internal/service"
	"github.com/noah-isme/smart-plan-api/pkg/config"
)

type routeDeps struct {
	auth       *service.AuthService
	studyPlans *handler.StudyPlanHandler
	system     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.system.Health)
	r.GET("/ready", deps.system.Ready)
	r.GET("/metrics", deps.system.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/shared/study-plans/:token", deps.studyPlans.Shared)

	plans := api.Group("/study-plans", middleware.JWT(deps.auth))
	plans.POST("/generate", deps.studyPlans.Generate)
	plans.POST("/batch", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin), deps.studyPlans.GenerateBatch)
	plans.GET("", deps.studyPlans.List)
	plans.GET("/latest", deps.studyPlans.Latest)
	plans.GET("/:id", deps.studyPlans.Get)
	plans.DELETE("/:id", deps.studyPlans.Delete)
	plans.GET("/:id/export", deps.studyPlans.Export)
	plans.POST("/:id/share", deps.studyPlans.Share)
}
