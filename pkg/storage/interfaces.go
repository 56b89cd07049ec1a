package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/somcheck/pkg/validation"
)

// IssueWriter persists the results of one checked file.
type IssueWriter interface {
	WriteFile(ctx context.Context, batch FileBatch) (WriteStats, error)
}

// IssueReader queries persisted results.
type IssueReader interface {
	Issues(ctx context.Context, filter IssueFilter) ([]IssueRecord, error)
	Entities(ctx context.Context, filter EntityFilter) ([]EntityRecord, error)
	IssueCounts(ctx context.Context, filter IssueFilter) (map[validation.IssueType]int, error)
}

// IssueStore combines both sides of the store.
type IssueStore interface {
	IssueWriter
	IssueReader
	HealthCheck(ctx context.Context) error
	Close() error
}

// Config selects and tunes the database backend.
type Config struct {
	Driver string // "sqlite3" or "postgres"

	// Path of the sqlite database; empty creates a fresh temporary file.
	Path string
	// DSN of the postgres database.
	DSN string

	MaxConns int
	Timeout  time.Duration
}

// DefaultConfig returns the sqlite defaults.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverSQLite,
		MaxConns: 1,
		Timeout:  10 * time.Second,
	}
}
