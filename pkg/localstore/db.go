// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package localstore gives each worker its own small SQLite-backed
// operational database holding a durable audit log of the records the
// worker failed to process. A chunk_metrics table is also created, but
// nothing in this module writes to it. It is not
// the source of truth for migration state (that lives in the
// coordination service, see pkg/coordinator) — it exists so operators
// can inspect a worker's history after the fact without re-parsing
// stdout, the same role pkg/db played in the teacher engine.
package localstore

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a single-writer SQLite connection.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if necessary) the local operational database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}

	conn.Exec("PRAGMA journal_mode = WAL;")
	conn.Exec("PRAGMA synchronous = NORMAL;")
	conn.Exec("PRAGMA foreign_keys = ON;")

	// A worker's local store is only ever touched by that worker's own
	// goroutines (plus the buffered audit sink's flush timer), so a single
	// connection avoids SQLite's concurrent-writer contention entirely.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) createTables() error {
	for _, stmt := range []string{auditLogSchema, chunkMetricsSchema} {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("localstore: create table: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// BulkInsert inserts rows into table in batches sized so that no statement
// exceeds SQLite's default maximum of 999 bind variables. The first batch
// that fails stops the call and its error is returned; batches written
// before it stay written.
func (db *DB) BulkInsert(table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	const sqliteMaxVariables = 999
	colCount := len(columns)
	batchSize := sqliteMaxVariables / colCount
	if batchSize <= 0 {
		batchSize = 1
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", colCount), ",") + ")"

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		groups := make([]string, len(batch))
		args := make([]any, 0, len(batch)*colCount)
		for i, row := range batch {
			groups[i] = placeholder
			args = append(args, row...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), strings.Join(groups, ", "))
		if _, err := db.conn.Exec(query, args...); err != nil {
			return fmt.Errorf("localstore: bulk insert into %s: %w", table, err)
		}
	}
	return nil
}

// Exec runs a direct statement against the local store.
func (db *DB) Exec(query string, args ...any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(query, args...)
	return err
}

// Query runs a direct query against the local store.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Query(query, args...)
}
