package routes

import (
	"time"

	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/api/handlers"
	"github.com/tfdash/tfdash-backend/pkg/api/servers"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/repositories"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/terraform"
	"github.com/tfdash/tfdash-backend/pkg/notifier"
	"github.com/tfdash/tfdash-backend/pkg/services"
	"github.com/tfdash/tfdash-backend/pkg/taskmanager"
	"github.com/tfdash/tfdash-backend/pkg/workspace"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// SetupRoutes wires repositories, services and handlers onto the router.
// Everything that used to be process-global state lives on the structures
// created here.
func SetupRoutes(server *servers.Server) error {
	jobRepo := repositories.NewJobRepository(server.PostgresDB)
	templateRepo := repositories.NewTemplateRepository(server.PostgresDB)
	auditRepo := repositories.NewAuditLogRepository(server.PostgresDB)
	notificationRepo := repositories.NewNotificationRepository(server.PostgresDB)

	workspaces, err := workspace.New(server.Config.StorageRoot)
	if err != nil {
		return err
	}

	hub := notifier.NewHub()
	auditService := services.NewAuditService(auditRepo)
	notificationService := services.NewNotificationService(
		notificationRepo, hub, server.Config.AutoHide, server.Config.AutoHideDelay)
	templateService := services.NewTemplateService(templateRepo, auditService)

	jobService := services.NewJobService(
		services.JobConfig{
			StorageRoot: server.Config.StorageRoot,
			JobTimeout:  server.Config.JobTimeout,
			CancelGrace: server.Config.CancelGrace,
			Retention:   server.Config.Retention,
		},
		jobRepo,
		templateRepo,
		auditService,
		notificationService,
		taskmanager.NewTaskManager(server.Config.Workers, server.Config.QueueCapacity),
		services.TerraformRunner(terraform.NewRunner(server.Config.TerraformBinary)),
		workspaces,
		nil,
	)

	go runWorkspaceJanitor(jobService, server.Config.CleanupInterval)

	apiV1 := server.Router.Group("/api/v1")
	setupHealthRoutes(apiV1.Group("/health"))
	setupTemplateRoutes(apiV1.Group("/templates"), templateService)
	setupJobRoutes(apiV1.Group("/jobs"), jobService)
	setupAuditRoutes(apiV1.Group("/audit-logs"), auditService)
	setupNotificationRoutes(apiV1.Group("/notifications"), notificationService, hub)

	server.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return nil
}

func setupHealthRoutes(router *gin.RouterGroup) {
	handler := handlers.NewHealthHandler()
	router.GET("", handler.GetHealth)
}

func setupTemplateRoutes(router *gin.RouterGroup, templateService *services.TemplateService) {
	handler := handlers.NewTemplateHandler(templateService)
	router.POST("", handler.Register)
	router.GET("", handler.GetAll)
	router.GET("/:id", handler.GetByID)
}

func setupJobRoutes(router *gin.RouterGroup, jobService *services.JobService) {
	handler := handlers.NewJobHandler(jobService)
	router.POST("", handler.Create)
	router.GET("", handler.GetAll)
	router.GET("/:id", handler.GetByID)
	router.GET("/:id/status", handler.GetStatus)
	router.GET("/:id/logs", handler.GetLogs)
	router.POST("/:id/plan", handler.StartPlan)
	router.POST("/:id/apply", handler.StartApply)
	router.POST("/:id/destroy", handler.StartDestroy)
	router.POST("/:id/cancel", handler.Cancel)
}

func setupAuditRoutes(router *gin.RouterGroup, auditService *services.AuditService) {
	handler := handlers.NewAuditHandler(auditService)
	router.GET("", handler.Query)
	router.GET("/stats", handler.Stats)
	router.DELETE("", handler.Purge)
}

func setupNotificationRoutes(
	router *gin.RouterGroup,
	notificationService *services.NotificationService,
	hub *notifier.Hub,
) {
	handler := handlers.NewNotificationHandler(notificationService, hub)
	router.GET("", handler.GetActive)
	router.POST("/:id/read", handler.MarkRead)
	router.GET("/stream", handler.Stream)
}

// runWorkspaceJanitor reclaims workspace directories of terminal jobs once
// their retention window has elapsed.
func runWorkspaceJanitor(jobService *services.JobService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		logger.Debug("running workspace cleanup", zap.Duration("interval", interval))
		jobService.CleanupExpiredWorkspaces()
	}
}
