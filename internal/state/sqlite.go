package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a build id is unknown.
var ErrNotFound = errors.New("build not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for migrations.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Path is the database path given to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordBuild inserts b, assigning an ID if it has none.
func (s *SQLiteStore) RecordBuild(ctx context.Context, b *Build) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (
			id, source, output, debug_output, frontend, status, stage, error,
			source_hash, deploy_hash, debug_hash, deploy_bytes, debug_bytes,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Source, b.Output, b.DebugOutput, b.Frontend, string(b.Status), b.Stage, nullString(b.Error),
		nullString(b.SourceHash), nullString(b.DeployHash), nullString(b.DebugHash), b.DeployBytes, b.DebugBytes,
		formatTime(b.StartedAt), formatTime(b.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

const selectBuild = `SELECT id, source, output, debug_output, frontend, status, stage, error,
	source_hash, deploy_hash, debug_hash, deploy_bytes, debug_bytes, started_at, completed_at
	FROM builds`

// GetBuild retrieves a build by ID.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	b, err := scanBuild(s.db.QueryRowContext(ctx, selectBuild+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

// ListBuilds returns the most recent builds first. A limit of zero or less
// returns every build.
func (s *SQLiteStore) ListBuilds(ctx context.Context, limit int) ([]*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectBuild+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	return builds, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	b := &Build{}
	var status, started, completed string
	var errMsg, sourceHash, deployHash, debugHash sql.NullString

	err := row.Scan(&b.ID, &b.Source, &b.Output, &b.DebugOutput, &b.Frontend, &status, &b.Stage, &errMsg,
		&sourceHash, &deployHash, &debugHash, &b.DeployBytes, &b.DebugBytes, &started, &completed)
	if err != nil {
		return nil, err
	}

	b.Status = BuildStatus(status)
	b.Error = errMsg.String
	b.SourceHash = sourceHash.String
	b.DeployHash = deployHash.String
	b.DebugHash = debugHash.String
	if b.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if b.CompletedAt, err = parseTime(completed); err != nil {
		return nil, err
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
