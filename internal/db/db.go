package db

import (
	"fmt"
	"strings"
	"time"

	"cafepos/internal/config"
	"cafepos/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Initialize opens the store named by cfg.URL. URLs that look like sqlite
// files ("file:", "sqlite://", "*.db", "*.sqlite") use the sqlite driver,
// everything else is handed to postgres.
func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	db, err := gorm.Open(dialectorFor(cfg.URL), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	switch {
	case db.Dialector.Name() == "sqlite":
		// sqlite allows a single writer; one connection keeps commits queued
		// in the pool instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func dialectorFor(url string) gorm.Dialector {
	if IsSQLiteURL(url) {
		return sqlite.Open(strings.TrimPrefix(strings.TrimSpace(url), "sqlite://"))
	}
	return postgres.Open(url)
}

// IsSQLiteURL reports whether url addresses a sqlite database.
func IsSQLiteURL(url string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(url))
	switch {
	case strings.HasPrefix(trimmed, "file:"), strings.HasPrefix(trimmed, "sqlite://"):
		return true
	case strings.HasSuffix(trimmed, ".db"), strings.HasSuffix(trimmed, ".sqlite"):
		return true
	default:
		return false
	}
}

// Models lists every record type managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&models.Category{},
		&models.Employee{},
		&models.Ingredient{},
		&models.Product{},
		&models.RecipeLine{},
		&models.Supply{},
		&models.Order{},
		&models.OrderLine{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	return db.AutoMigrate(Models()...)
}

func Configure(cfg config.DatabaseConfig) (*gorm.DB, error) {
	database, err := Initialize(cfg)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(database); err != nil {
		return nil, err
	}

	DB = database

	return database, nil
}

func MustConfigure(cfg config.DatabaseConfig) *gorm.DB {
	database, err := Configure(cfg)
	if err != nil {
		panic(err)
	}

	return database
}

func Get() *gorm.DB {
	return DB
}
