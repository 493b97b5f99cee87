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

// Package store provides SQLite-backed persistence for completed traces.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tombee/strand/pkg/errors"
	"github.com/tombee/strand/pkg/trace"
)

// Recorder log names used in the tokens table.
const (
	logCallTrace = "call_trace"
	logCreations = "creations"
	logWrappings = "wrappings"
	logVerbose   = "verbose"
)

// SQLiteStore provides SQLite-backed storage for trace trees and recorder
// logs.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains SQLite storage configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// New creates a new SQLite storage backend.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, &errors.StoreError{Op: "open", Cause: errors.New("database path is required")}
	}

	// WAL mode for better concurrency on file-backed databases
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, &errors.StoreError{Op: "open", Cause: err}
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	// Each pooled connection to :memory: would get its own private database,
	// so the schema from migrate would be invisible to later queries.
	if cfg.Path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &errors.StoreError{Op: "open", Cause: err}
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, &errors.StoreError{Op: "migrate", Cause: err}
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	migrations := []string{
		// One row per stored tracing session
		`CREATE TABLE IF NOT EXISTS traces (
			trace_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			transaction_count INTEGER NOT NULL DEFAULT 0,
			call_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at)`,

		// Transaction trees, flattened one level per table
		`CREATE TABLE IF NOT EXISTS transactions (
			trace_id TEXT NOT NULL,
			transaction_id INTEGER NOT NULL,
			value TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, transaction_id)
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			trace_id TEXT NOT NULL,
			transaction_id INTEGER NOT NULL,
			segment_id INTEGER NOT NULL,
			value TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, transaction_id, segment_id)
		)`,
		`CREATE TABLE IF NOT EXISTS calls (
			trace_id TEXT NOT NULL,
			transaction_id INTEGER NOT NULL,
			segment_id INTEGER NOT NULL,
			call_id INTEGER NOT NULL,
			value TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, transaction_id, segment_id, call_id)
		)`,

		// Recorder tokens, kept in append order per log
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			log TEXT NOT NULL,
			position INTEGER NOT NULL,
			token TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_trace ON tokens(trace_id, log, position)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

// Save persists a completed tracing session and returns its generated trace
// ID. The transaction trees and recorder logs are written atomically.
func (s *SQLiteStore) Save(ctx context.Context, name string, transactions []*trace.Transaction, recorder *trace.Recorder) (string, error) {
	traceID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
	}
	defer tx.Rollback()

	callCount := 0
	for _, txn := range transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (trace_id, transaction_id, value, created_at) VALUES (?, ?, ?, ?)`,
			traceID, txn.ID(), renderValue(txn.Value()), txn.CreatedAt().UnixNano(),
		); err != nil {
			return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
		}

		for _, seg := range txn.Segments() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO segments (trace_id, transaction_id, segment_id, value, created_at) VALUES (?, ?, ?, ?, ?)`,
				traceID, txn.ID(), seg.ID(), renderValue(seg.Value()), seg.CreatedAt().UnixNano(),
			); err != nil {
				return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
			}

			for _, call := range seg.Calls() {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO calls (trace_id, transaction_id, segment_id, call_id, value, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
					traceID, txn.ID(), seg.ID(), call.ID(), renderValue(call.Value()), call.CreatedAt().UnixNano(),
				); err != nil {
					return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
				}
				callCount++
			}
		}
	}

	if recorder != nil {
		logs := map[string][]string{
			logCallTrace: recorder.CallTrace(),
			logCreations: recorder.Creations(),
			logWrappings: recorder.Wrappings(),
			logVerbose:   recorder.Verbose(),
		}
		for log, tokens := range logs {
			for pos, token := range tokens {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO tokens (trace_id, log, position, token) VALUES (?, ?, ?, ?)`,
					traceID, log, pos, token,
				); err != nil {
					return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO traces (trace_id, name, transaction_count, call_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		traceID, name, len(transactions), callCount, time.Now().UnixNano(),
	); err != nil {
		return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return "", &errors.StoreError{Op: "save", TraceID: traceID, Cause: err}
	}

	return traceID, nil
}

// Get retrieves a stored trace by ID, reconstructing the entity trees and
// recorder logs.
func (s *SQLiteStore) Get(ctx context.Context, traceID string) (*TraceRecord, error) {
	record := &TraceRecord{ID: traceID}

	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM traces WHERE trace_id = ?`, traceID,
	).Scan(&record.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "trace", ID: traceID}
	}
	if err != nil {
		return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
	}
	record.CreatedAt = time.Unix(0, createdAt)

	transactions, err := s.loadTransactions(ctx, traceID)
	if err != nil {
		return nil, err
	}
	record.Transactions = transactions

	logs, err := s.loadLogs(ctx, traceID)
	if err != nil {
		return nil, err
	}
	record.Logs = logs

	return record, nil
}

func (s *SQLiteStore) loadTransactions(ctx context.Context, traceID string) ([]TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, value, created_at FROM transactions WHERE trace_id = ? ORDER BY transaction_id`,
		traceID,
	)
	if err != nil {
		return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
	}
	defer rows.Close()

	var transactions []TransactionRecord
	for rows.Next() {
		var txn TransactionRecord
		var createdAt int64
		if err := rows.Scan(&txn.ID, &txn.Value, &createdAt); err != nil {
			return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
		}
		txn.CreatedAt = time.Unix(0, createdAt)
		transactions = append(transactions, txn)
	}
	rows.Close()

	for i := range transactions {
		segments, err := s.loadSegments(ctx, traceID, transactions[i].ID)
		if err != nil {
			return nil, err
		}
		transactions[i].Segments = segments
	}

	return transactions, nil
}

func (s *SQLiteStore) loadSegments(ctx context.Context, traceID string, transactionID uint64) ([]SegmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, value, created_at FROM segments WHERE trace_id = ? AND transaction_id = ? ORDER BY segment_id`,
		traceID, transactionID,
	)
	if err != nil {
		return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
	}
	defer rows.Close()

	var segments []SegmentRecord
	for rows.Next() {
		var seg SegmentRecord
		var createdAt int64
		if err := rows.Scan(&seg.ID, &seg.Value, &createdAt); err != nil {
			return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
		}
		seg.CreatedAt = time.Unix(0, createdAt)
		segments = append(segments, seg)
	}
	rows.Close()

	for i := range segments {
		calls, err := s.loadCalls(ctx, traceID, transactionID, segments[i].ID)
		if err != nil {
			return nil, err
		}
		segments[i].Calls = calls
	}

	return segments, nil
}

func (s *SQLiteStore) loadCalls(ctx context.Context, traceID string, transactionID, segmentID uint64) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, value, created_at FROM calls WHERE trace_id = ? AND transaction_id = ? AND segment_id = ? ORDER BY call_id`,
		traceID, transactionID, segmentID,
	)
	if err != nil {
		return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
	}
	defer rows.Close()

	var calls []CallRecord
	for rows.Next() {
		var call CallRecord
		var createdAt int64
		if err := rows.Scan(&call.ID, &call.Value, &createdAt); err != nil {
			return nil, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
		}
		call.CreatedAt = time.Unix(0, createdAt)
		calls = append(calls, call)
	}

	return calls, nil
}

func (s *SQLiteStore) loadLogs(ctx context.Context, traceID string) (LogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT log, token FROM tokens WHERE trace_id = ? ORDER BY log, position`,
		traceID,
	)
	if err != nil {
		return LogRecord{}, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
	}
	defer rows.Close()

	var logs LogRecord
	for rows.Next() {
		var log, token string
		if err := rows.Scan(&log, &token); err != nil {
			return LogRecord{}, &errors.StoreError{Op: "get", TraceID: traceID, Cause: err}
		}
		switch log {
		case logCallTrace:
			logs.CallTrace = append(logs.CallTrace, token)
		case logCreations:
			logs.Creations = append(logs.Creations, token)
		case logWrappings:
			logs.Wrappings = append(logs.Wrappings, token)
		case logVerbose:
			logs.Verbose = append(logs.Verbose, token)
		}
	}

	return logs, nil
}

// Filter contains filters for trace listing.
type Filter struct {
	// Since filters traces stored after this time
	Since *time.Time

	// Until filters traces stored before this time
	Until *time.Time

	// Limit limits the number of results
	Limit int

	// Offset skips the first N results
	Offset int
}

// List returns summaries of stored traces matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]TraceSummary, error) {
	query := `SELECT trace_id, name, transaction_count, call_count, created_at FROM traces WHERE 1=1`
	args := []any{}

	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	if filter.Until != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.Until.UnixNano())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errors.StoreError{Op: "list", Cause: err}
	}
	defer rows.Close()

	var summaries []TraceSummary
	for rows.Next() {
		var summary TraceSummary
		var createdAt int64
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.TransactionCount, &summary.CallCount, &createdAt); err != nil {
			return nil, &errors.StoreError{Op: "list", Cause: err}
		}
		summary.CreatedAt = time.Unix(0, createdAt)
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// DeleteOlderThan deletes traces stored before the given time, including
// their entity rows and tokens. Returns the number of traces deleted.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM traces WHERE created_at < ?", before.UnixNano(),
	)
	if err != nil {
		return 0, &errors.StoreError{Op: "delete", Cause: err}
	}

	count, _ := result.RowsAffected()

	for _, table := range []string{"transactions", "segments", "calls", "tokens"} {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE trace_id NOT IN (SELECT trace_id FROM traces)",
		); err != nil {
			return count, &errors.StoreError{Op: "delete", Cause: err}
		}
	}

	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
// This is exported for testing and advanced use cases.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
