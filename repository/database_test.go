package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestOpenSqlite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "skillcards.db")

	db, closeDB, err := Open(ctx, DatabaseOptions{URL: "sqlite:" + path, LogLevel: "error"})
	require.NoError(t, err)
	defer closeDB()

	require.NoError(t, Ping(ctx, db))
	require.NoError(t, NewGORMRepository(db).AutoMigrate())
	assert.FileExists(t, path)
}

func TestOpenRejectsBadPostgresURL(t *testing.T) {
	_, _, err := Open(context.Background(), DatabaseOptions{URL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"info":   logger.Info,
		"WARN":   logger.Warn,
		"error":  logger.Error,
		"silent": logger.Silent,
		"":       logger.Silent,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLogLevel(in))
		})
	}
}
