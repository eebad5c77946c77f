// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package audit provides the SQLite-backed execution audit store.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/pica"
)

// Store persists one row per action execution. It satisfies pica.AuditSink.
type Store struct {
	db *sql.DB
}

// Config contains audit store configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	// WAL mode allows multiple concurrent readers alongside the writer.
	MaxOpenConns int
}

// New opens (or creates) the audit database at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL keeps list/show readers unblocked while executions append.
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	// Each pooled connection to :memory: opens its own empty database, so
	// the pool must stay at one.
	if cfg.Path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			platform TEXT NOT NULL,
			action_id TEXT,
			action_title TEXT,
			method TEXT,
			url TEXT,
			connection_key TEXT,
			status_code INTEGER NOT NULL,
			success INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			message TEXT,
			request_config TEXT
		)`,
		// Index for time-ordered listing
		`CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp)`,
		// Index for per-platform filtering
		`CREATE INDEX IF NOT EXISTS idx_executions_platform ON executions(platform)`,
		// Index for failure-only queries
		`CREATE INDEX IF NOT EXISTS idx_executions_success ON executions(success)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Append stores one execution record. It implements pica.AuditSink.
func (s *Store) Append(ctx context.Context, rec pica.AuditRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	query := `
		INSERT INTO executions (id, timestamp, platform, action_id, action_title,
			method, url, connection_key, status_code, success, duration_ns,
			message, request_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	success := 0
	if rec.Success {
		success = 1
	}

	var requestConfig any
	if len(rec.RequestConfig) > 0 {
		requestConfig = string(rec.RequestConfig)
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp.UnixNano(), rec.Platform, rec.ActionID,
		rec.ActionTitle, rec.Method, rec.URL, rec.ConnectionKey,
		rec.StatusCode, success, int64(rec.Duration), rec.Message,
		requestConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to store execution record: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, timestamp, platform, action_id, action_title, method, url,
		connection_key, status_code, success, duration_ns, message, request_config
	FROM executions
`

// Get retrieves one execution record by id.
func (s *Store) Get(ctx context.Context, id string) (*pica.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "audit record", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}

	return &rec, nil
}

// Filter contains filters for execution record queries.
type Filter struct {
	// Platform filters by platform name.
	Platform string

	// Since filters records stamped at or after this time.
	Since *time.Time

	// Until filters records stamped at or before this time.
	Until *time.Time

	// FailuresOnly keeps only unsuccessful executions.
	FailuresOnly bool

	// Limit limits the number of results.
	Limit int

	// Offset skips the first N results.
	Offset int
}

// List returns execution records matching the filter, most recent first.
func (s *Store) List(ctx context.Context, filter Filter) ([]pica.AuditRecord, error) {
	query := selectColumns + " WHERE 1=1"
	args := []any{}

	if filter.Platform != "" {
		query += " AND platform = ?"
		args = append(args, filter.Platform)
	}

	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	if filter.Until != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.Until.UnixNano())
	}

	if filter.FailuresOnly {
		query += " AND success = 0"
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// OFFSET is only valid after LIMIT; -1 means unlimited.
		query += " LIMIT -1"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}
	defer rows.Close()

	var records []pica.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteOlderThan deletes records stamped before the given time.
// Returns the number of records deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM executions WHERE timestamp < ?",
		before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old execution records: %w", err)
	}

	return result.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanRecord reads one row into an AuditRecord. It accepts both *sql.Row and
// *sql.Rows.
func scanRecord(row interface{ Scan(dest ...any) error }) (pica.AuditRecord, error) {
	var (
		rec           pica.AuditRecord
		timestamp     int64
		success       int
		durationNanos int64
		requestConfig []byte
	)

	err := row.Scan(
		&rec.ID, &timestamp, &rec.Platform, &rec.ActionID, &rec.ActionTitle,
		&rec.Method, &rec.URL, &rec.ConnectionKey, &rec.StatusCode, &success,
		&durationNanos, &rec.Message, &requestConfig,
	)
	if err != nil {
		return pica.AuditRecord{}, err
	}

	rec.Timestamp = time.Unix(0, timestamp).UTC()
	rec.Success = success != 0
	rec.Duration = time.Duration(durationNanos)
	if len(requestConfig) > 0 {
		rec.RequestConfig = json.RawMessage(requestConfig)
	}

	return rec, nil
}
