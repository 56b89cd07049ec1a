package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/somcheck/pkg/validation"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	// DateLayout is the format of the creation_date column.
	DateLayout = "2006-01-02"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("issue store is closed")

// Entity is one checked instance as written to the entities table.
type Entity struct {
	GUID           string
	Name           string
	Type           string
	Classification string
}

// FileBatch is everything one file check produced.
type FileBatch struct {
	Project  string
	File     string
	Entities []Entity
	Issues   []validation.Issue
}

// WriteStats summarizes a WriteFile call.
type WriteStats struct {
	Replaced   int64 `json:"replaced"`
	Entities   int   `json:"entities"`
	Skipped    int   `json:"skipped"`
	Collisions int   `json:"collisions"`
	Issues     int   `json:"issues"`
	Failed     int   `json:"failed"`
}

// Store is the relational issue store.
type Store struct {
	db     *sql.DB
	driver string
	path   string
	temp   bool
	logger logrus.FieldLogger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock replaces time.Now for creation dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the configured database and creates the tables.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	var dsn, path string
	temp := false
	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		path = cfg.Path
		if path == "" {
			f, err := os.CreateTemp("", "somcheck-*.db")
			if err != nil {
				return nil, fmt.Errorf("failed to create temporary database: %w", err)
			}
			path = f.Name()
			f.Close()
			temp = true
		}
		dsn = path + "?_foreign_keys=on"
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := New(db, cfg.Driver, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.path = path
	s.temp = temp
	return s, nil
}

// New wraps an open connection and ensures the tables exist.
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &Store{
		db:     db,
		driver: driver,
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure issue tables: %w", err)
	}
	return s, nil
}

func (s *Store) ensureTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS entities (
		guid_obfuscated VARCHAR(128) PRIMARY KEY,
		guid VARCHAR(64) NOT NULL,
		name TEXT,
		project TEXT,
		type TEXT,
		file TEXT,
		classification TEXT,
		creation_date VARCHAR(10)
	);

	CREATE TABLE IF NOT EXISTS issues (
		creation_date VARCHAR(10) NOT NULL,
		guid VARCHAR(128) NOT NULL,
		description TEXT,
		issue_type INTEGER NOT NULL,
		property_set TEXT,
		attribute TEXT,
		value TEXT,
		project TEXT,
		file TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_issues_scope ON issues(project, file, creation_date);
	CREATE INDEX IF NOT EXISTS idx_issues_guid ON issues(guid);
	CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(project, file);
	`
	_, err := s.db.Exec(query)
	return err
}

// Path is the sqlite database file, empty for postgres.
func (s *Store) Path() string { return s.path }

// Driver names the database backend.
func (s *Store) Driver() string { return s.driver }

// DB exposes the connection for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Today is the creation date new issues are stamped with.
func (s *Store) Today() string { return s.now().Format(DateLayout) }

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// WriteFile replaces the issues of batch.File created today and inserts the
// new entities and issues in one transaction. A failing row is rolled back
// to its savepoint, logged and skipped; the file's other rows still commit.
func (s *Store) WriteFile(ctx context.Context, batch FileBatch) (WriteStats, error) {
	var stats WriteStats
	if err := s.checkOpen(); err != nil {
		return stats, err
	}
	date := s.Today()
	logger := s.logger.WithFields(logrus.Fields{"project": batch.Project, "file": batch.File, "date": date})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`DELETE FROM issues WHERE project = $1 AND file = $2 AND creation_date = $3`,
		batch.Project, batch.File, date)
	if err != nil {
		return stats, fmt.Errorf("failed to remove previous issues: %w", err)
	}
	stats.Replaced, _ = res.RowsAffected()

	issues := make([]validation.Issue, 0, len(batch.Issues))
	for i, e := range batch.Entities {
		var (
			inserted  bool
			collision *validation.Issue
		)
		err := s.savepoint(ctx, tx, fmt.Sprintf("entity_%d", i), func() error {
			var err error
			inserted, collision, err = s.insertEntity(ctx, tx, batch, e, date)
			return err
		})
		switch {
		case err != nil:
			stats.Failed++
			logger.WithError(err).WithField("guid", e.GUID).Warn("entity row skipped")
		case collision != nil:
			stats.Collisions++
			stats.Skipped++
			issues = append(issues, *collision)
		case !inserted:
			stats.Skipped++
		default:
			stats.Entities++
		}
	}
	issues = append(issues, batch.Issues...)

	for i, issue := range issues {
		if err := s.savepoint(ctx, tx, fmt.Sprintf("issue_%d", i), func() error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO issues (creation_date, guid, description, issue_type, property_set, attribute, value, project, file)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				date, ObfuscateGUID(issue.GUID), issue.Description, int(issue.Type),
				issue.PropertySet, issue.Attribute, issue.Value, batch.Project, batch.File)
			return err
		}); err != nil {
			stats.Failed++
			logger.WithError(err).WithField("guid", issue.GUID).Warn("issue row skipped")
			continue
		}
		stats.Issues++
	}

	if err := tx.Commit(); err != nil {
		return WriteStats{}, fmt.Errorf("failed to commit issues: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"entities":   stats.Entities,
		"issues":     stats.Issues,
		"collisions": stats.Collisions,
		"failed":     stats.Failed,
	}).Info("file results written")
	return stats, nil
}

// insertEntity writes e unless its GUID was already seen on the same run
// date. A GUID owned by another file yields a collision issue; the same file
// is a silent skip. Rows left by earlier dates are taken over by e.
func (s *Store) insertEntity(ctx context.Context, tx *sql.Tx, batch FileBatch, e Entity, date string) (bool, *validation.Issue, error) {
	obfuscated := ObfuscateGUID(e.GUID)
	var (
		owner string
		seen  sql.NullString
	)
	err := tx.QueryRowContext(ctx, `SELECT file, creation_date FROM entities WHERE guid_obfuscated = $1`, obfuscated).Scan(&owner, &seen)
	switch {
	case err == nil && seen.String == date:
		if owner == batch.File {
			return false, nil, nil
		}
		return false, &validation.Issue{
			GUID:        e.GUID,
			Type:        validation.IssueGUIDCollision,
			Description: fmt.Sprintf("GUID occurs in file %q and %q", batch.File, owner),
		}, nil
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE entities SET guid = $2, name = $3, project = $4, type = $5, file = $6, classification = $7, creation_date = $8
			WHERE guid_obfuscated = $1`,
			obfuscated, e.GUID, e.Name, batch.Project, e.Type, batch.File, e.Classification, date)
		if err != nil {
			return false, nil, err
		}
		return true, nil, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, nil, fmt.Errorf("failed to look up entity: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (guid_obfuscated, guid, name, project, type, file, classification, creation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		obfuscated, e.GUID, e.Name, batch.Project, e.Type, batch.File, e.Classification, date)
	if err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// savepoint runs fn inside a savepoint so a failed statement does not abort
// the surrounding transaction.
func (s *Store) savepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%v (rollback failed: %w)", err, rbErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the connection. A temporary sqlite file is kept so it can
// still be exported; Remove deletes it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Remove closes the store and deletes a temporary database file.
func (s *Store) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	if s.temp && s.path != "" {
		return os.Remove(s.path)
	}
	return nil
}
