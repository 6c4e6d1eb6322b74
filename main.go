package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/tfdash/tfdash-backend/docs"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/api/routes"
	"github.com/tfdash/tfdash-backend/pkg/api/servers"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/connection"

	"github.com/gin-contrib/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @title           TFDash Backend
// @version         1.0
// @description     Deployment dashboard backend: terraform job tracking, audit trail, notifications

// @host      localhost:${PORT}
// @BasePath  /api/v1

// @securityDefinitions.basic  NoAuth
func main() {

	logger.Init()

	// Load .env file if it exists (optional for Docker runtime)
	if err := godotenv.Load(".env"); err != nil {
		logger.Infof("No .env file found, using environment variables: %s", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	postgresHost := os.Getenv("POSTGRES_HOST")
	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	postgresDatabase := os.Getenv("POSTGRES_DB")
	postgresPort := os.Getenv("POSTGRES_PORT")

	postgresDB, err := connection.Init(
		postgresUser,
		postgresHost,
		postgresPassword,
		postgresDatabase,
		postgresPort,
	)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}

	storageRoot := os.Getenv("STORAGE_ROOT")
	if storageRoot == "" {
		rootDir, _ := os.Getwd()
		storageRoot = rootDir + "/storage"
	}

	config := servers.Config{
		TerraformBinary: os.Getenv("TERRAFORM_BINARY"),
		StorageRoot:     storageRoot,
		JobTimeout:      envDuration("JOB_TIMEOUT_MINUTES", 60, time.Minute),
		CancelGrace:     envDuration("CANCEL_GRACE_SECONDS", 30, time.Second),
		Retention:       envDuration("WORKSPACE_RETENTION_HOURS", 72, time.Hour),
		CleanupInterval: envDuration("CLEANUP_INTERVAL_MINUTES", 60, time.Minute),
		AutoHide:        os.Getenv("NOTIFICATION_AUTO_HIDE") != "false",
		AutoHideDelay:   envDuration("NOTIFICATION_AUTO_HIDE_SECONDS", 30, time.Second),
		Workers:         envInt("JOB_WORKERS", 5),
		QueueCapacity:   envInt("JOB_QUEUE_CAPACITY", 20),
	}

	// programmatically set swagger info
	docs.SwaggerInfo.Title = "TFDash Backend"
	docs.SwaggerInfo.Description = "Deployment dashboard backend API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Schemes = []string{"http"}
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%s", port)
	docs.SwaggerInfo.BasePath = "/api/v1"

	server := servers.NewServer(postgresDB, config)
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}

	server.Use(cors.New(corsConfig))

	if err := routes.SetupRoutes(server); err != nil {
		logger.Fatal("Failed to set up routes", zap.Error(err))
	}

	err = server.Start(port)
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		log.Fatal(err)
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warnf("Invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return value
}

func envDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(envInt(key, fallback)) * unit
}
