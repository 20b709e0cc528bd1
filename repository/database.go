package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// DatabaseOptions configures the connection opened by Open
type DatabaseOptions struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

// Open connects to the configured database. URLs prefixed with "sqlite:"
// open a sqlite file; anything else is treated as a postgres DSN and served
// through a pgx pool. The returned close func releases the pool.
func Open(ctx context.Context, opts DatabaseOptions) (*gorm.DB, func(), error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(parseLogLevel(opts.LogLevel))}

	if strings.HasPrefix(opts.URL, sqlitePrefix) {
		path := strings.TrimPrefix(opts.URL, sqlitePrefix)
		db, err := gorm.Open(sqlite.Open(path), gormConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		slog.Info("Connected to database", "driver", "sqlite", "path", path)
		return db, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(opts.MaxIdleConns, opts.MaxOpenConns))
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	slog.Info("Connected to database", "driver", "postgres")
	return db, func() {
		sqlDB.Close()
		pool.Close()
	}, nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// Ping checks the connection behind a gorm handle
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
