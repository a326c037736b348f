// Package repository provides data access layer using GORM for database operations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// DB holds the database connection.
type DB struct {
	*gorm.DB
}

// NewDB creates a new database connection for the configured driver.
func NewDB(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	if strings.ToLower(cfg.Driver) == "sqlite" {
		db, err := open(sqlite.Open(cfg.SQLite.Path), gormLogLevel(log))
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("Connected to SQLite")
		return db, nil
	}

	db, err := open(postgres.Open(cfg.Postgres.DSN()), gormLogLevel(log))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)

	log.Info().
		Str("host", cfg.Postgres.Host).
		Int("port", cfg.Postgres.Port).
		Str("database", cfg.Postgres.Database).
		Msg("Connected to PostgreSQL")

	return db, nil
}

// OpenSQLite opens a SQLite database with a single connection, which also
// keeps ":memory:" databases shared across transactions.
func OpenSQLite(path string) (*DB, error) {
	return open(sqlite.Open(path), gormlogger.Silent)
}

func open(dialector gorm.Dialector, level gormlogger.LogLevel) (*DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func gormLogLevel(log *logger.Logger) gormlogger.LogLevel {
	if log.Level() <= zerolog.DebugLevel {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// AutoMigrate creates or updates tables for all models. Used for SQLite;
// PostgreSQL schemas are managed by Migrate.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.Profile{},
		&models.Action{},
		&models.Project{},
		&models.UserAchievement{},
		&models.SocialPost{},
	)
}

// InTransaction runs fn inside a read-write transaction.
func (db *DB) InTransaction(ctx context.Context, fn func(tx *DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{tx})
	})
}

// ReadSnapshot runs fn inside a read-only transaction so that every read in
// fn observes one consistent state. PostgreSQL gets REPEATABLE READ; SQLite
// transactions are already serializable.
func (db *DB) ReadSnapshot(ctx context.Context, fn func(tx *DB) error) error {
	var opts []*sql.TxOptions
	if db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{tx})
	}, opts...)
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database is healthy.
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueViolation reports whether err is a unique constraint violation.
// TranslateError covers both drivers; the message checks cover handles that
// were opened without it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
