package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/schemas"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func Init(
	postgresUser string,
	postgresHost string,
	postgresPassword string,
	postgresDatabase string,
	postgresPort string,
) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s TimeZone=UTC",
		postgresHost,
		postgresUser,
		postgresPassword,
		postgresDatabase,
		postgresPort)

	var db *gorm.DB

	// The database container may come up after us; retry the initial
	// connection with backoff before giving up.
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Warn),
		})
		if openErr != nil {
			logger.Errorf("Failed to connect to postgres database, retrying: %s", openErr)
			return retry.RetryableError(openErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&schemas.Template{},
		&schemas.Job{},
		&schemas.AuditLog{},
		&schemas.Notification{},
	)
	if err != nil {
		logger.Errorf("Failed to auto migrate DB schemas: %s", err)
		return nil, err
	}

	return db, nil
}
