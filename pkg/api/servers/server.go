package servers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Config is the service-wide configuration resolved once at startup.
type Config struct {
	TerraformBinary string
	StorageRoot     string
	JobTimeout      time.Duration
	CancelGrace     time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
	AutoHide        bool
	AutoHideDelay   time.Duration
	Workers         int
	QueueCapacity   int
}

type Server struct {
	Router     *gin.Engine
	PostgresDB *gorm.DB
	Config     Config
}

func (s *Server) Start(port string) error {
	return s.Router.Run(":" + port)
}

func (s *Server) Use(middleware gin.HandlerFunc) {
	s.Router.Use(middleware)
}

func NewServer(db *gorm.DB, config Config) *Server {
	app := gin.Default()

	return &Server{
		Router:     app,
		PostgresDB: db,
		Config:     config,
	}
}
