package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/photowall/models"
)

// documentBusyTimeout is how long a document write waits for the capture log's
// connection to release the shared sqlite file.
const documentBusyTimeout = 5 * time.Second

// InitGormDB opens the document store. It shares its sqlite file with the
// capture log, so both sides run in WAL mode and wait on each other's locks
// instead of failing with SQLITE_BUSY.
func InitGormDB(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "gorm: ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			// document bodies are whole walls; keep them out of the log
			ParameterizedQueries: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	// the wall is written whole by one store; a single connection keeps the
	// pragmas below in effect for every statement
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", documentBusyTimeout.Milliseconds()),
	} {
		if err := db.Exec(pragma).Error; err != nil {
			log.Printf("warning: document store %q failed: %v", pragma, err)
		}
	}

	log.Println("document store opened at", dataSourceName)
	return db, nil
}

// AutoMigrateModels creates or updates the tables owned by GORM
func AutoMigrateModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}
