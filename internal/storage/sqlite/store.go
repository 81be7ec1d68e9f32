package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/migration"
	"github.com/julianstephens/habitenforcer/internal/storage"
	"github.com/julianstephens/habitenforcer/migrations"
)

// timestampFormat sorts lexically in UTC.
const timestampFormat = "2006-01-02T15:04:05.000000Z07:00"

type Store struct {
	path  string
	db    *sql.DB
	clock clock.Clock
}

var _ storage.Provider = (*Store)(nil)

func (s *Store) SetClock(c clock.Clock) { s.clock = c }

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) dsn() string {
	return s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) newRunner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverSQLite)
}

func (s *Store) runMigrations() error {
	runner, err := s.newRunner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	runner, err := s.newRunner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}

// MigrationStatus reports the schema version against the bundled migrations.
func (s *Store) MigrationStatus() (migration.Status, error) {
	runner, err := s.newRunner()
	if err != nil {
		return migration.Status{}, err
	}
	return runner.Status()
}

// Migrate applies pending migrations to an existing database.
func (s *Store) Migrate(logFn func(string)) (int, error) {
	runner, err := s.newRunner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying connection, or nil before Init or Load.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func (s *Store) DescribeSchema() (storage.Schema, error) {
	schema := storage.Schema{Relationships: storage.SchemaRelationships}
	for _, name := range storage.SchemaTables {
		rows, err := s.db.Query(`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, name)
		if err != nil {
			return storage.Schema{}, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		table := storage.Table{Name: name}
		for rows.Next() {
			var c storage.Column
			var notNull, pk int
			if err := rows.Scan(&c.Name, &c.Type, &notNull, &pk); err != nil {
				rows.Close()
				return storage.Schema{}, err
			}
			c.Nullable = notNull == 0 && pk == 0
			table.Columns = append(table.Columns, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storage.Schema{}, err
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

// QueryReadOnly runs query on a dedicated connection with PRAGMA query_only set.
func (s *Store) QueryReadOnly(query string) (storage.QueryResult, error) {
	if err := storage.ValidateReadOnlyQuery(query); err != nil {
		return storage.QueryResult{}, err
	}
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return storage.QueryResult{}, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return storage.QueryResult{}, fmt.Errorf("failed to enter read-only mode: %w", err)
	}
	defer func() { _, _ = conn.ExecContext(ctx, "PRAGMA query_only = OFF") }()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return storage.QueryResult{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return storage.CollectRows(rows, constants.MaxQueryRows)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
