package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"praxis-billing/config"
	"praxis-billing/logger"
	"praxis-billing/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

var schemaName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidSchema reports whether s is safe to splice into SET search_path.
func ValidSchema(s string) bool {
	return schemaName.MatchString(s)
}

// SchemaFor derives the tenant schema name from a clinic name.
func SchemaFor(clinic string) (string, error) {
	safe := strings.ToLower(strings.TrimSpace(clinic))
	safe = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(safe)
	if !ValidSchema(safe) {
		return "", fmt.Errorf("invalid schema name after sanitization: %q", safe)
	}
	return safe, nil
}

// WithTenant runs fn in a transaction pinned to the clinic schema via SET LOCAL.
// Used outside HTTP requests (CLI imports, mail workers).
func WithTenant(ctx context.Context, schema string, fn func(tx *gorm.DB) error) error {
	schema = strings.TrimSpace(schema)
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	return DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}
		return fn(tx)
	})
}

// Connect opens the shared connection pool.
func Connect(cfg *config.Config) error {
	log := logger.WithComponent("database")

	level := gormlogger.Warn
	if cfg.Env == "development" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		log.Error().Err(err).Msg("could not connect to database")
		return fmt.Errorf("connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("connect: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = db
	log.Info().Msg("database connected")
	return nil
}

// AutoMigrate creates the public (cross-clinic) tables.
func AutoMigrate() error {
	return DB.AutoMigrate(&models.ContactPerson{}, &models.User{}, &models.Clinic{})
}
