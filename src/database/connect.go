package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"daytrader/src/model"
)

// MainDB is the read/write database connection. It stays nil when
// ENABLE_DB is off; repositories are only constructed once it is set.
var MainDB *gorm.DB

// InitMainDB opens the main database connection and runs migrations.
// Called once at startup. DB_DRIVER selects sqlite for local runs and
// postgres for deployments.
func InitMainDB() error {
	config := GetConfig()

	var dialector gorm.Dialector
	switch config.DBDriver {
	case "postgres":
		dialector = postgres.Open(config.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(config.DatabaseURL)
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", config.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// Assign to the global only after a successful connection.
	MainDB = db

	logrus.WithField("driver", config.DBDriver).Info("[database] MainDB connection established")

	if err := MainDB.AutoMigrate(
		&model.TradeRecord{},
		&model.ConditionPreset{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
