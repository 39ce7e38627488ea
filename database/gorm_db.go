package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/camden-git/facebench/models"
)

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// InitGormDB opens the store. driver is "sqlite" (dsn is a file path) or "mysql"
// (dsn must carry parseTime=true).
func InitGormDB(driver, dsn, logLevel string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  parseLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// single writer; extra connections only produce SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			log.Printf("warning: failed to set WAL mode: %v", err)
		}
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Printf("GORM Database (%s) initialized successfully", dialector.Name())
	return db, nil
}

// AutoMigrateModels creates the tables that do not exist yet. Existing tables and
// rows are left alone, so calling it repeatedly is safe.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Model{},
		&models.Person{},
		&models.RecognitionTest{},
		&models.ModelAggregateStats{},
		&models.FailedTest{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}

// SeedModels inserts the given model names, ignoring names already present.
func SeedModels(ctx context.Context, db *gorm.DB, names []string) error {
	if len(names) == 0 {
		return nil
	}
	rows := make([]models.Model, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.Model{Name: name})
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "model_name"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to seed models: %w", err)
	}
	return nil
}
