// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package targetstore holds the connection pool, the pgx-backed
// implementations of the domain packages' Store interfaces (Providers,
// Products, Histories, Multimedia, References), and the batched-insert
// primitive, grounded on the teacher's
// pkg/db.BulkWrite (batch-then-fallback-to-row-by-row shape), adapted
// from SQLite's "(?, ?, ?)" placeholders to pgx's "($1, $2, $3)".
package targetstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
)

// Pool wraps the target store's connection pool.
type Pool struct {
	*pgxpool.Pool
}

// Open connects to the target store. Statement timeout, idle-in-transaction
// timeout, and lock-wait timeout are expected to be set via the DSN's
// connection parameters (recommended 5m/10m/2m per spec.md §5); building
// that DSN is an external collaborator's responsibility (spec.md §1).
func Open(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, migrationerr.Configuration("targetstore.Open", "parsing PRODUCTS_DATABASE_URL: %v", err)
	}
	// Each worker holds its own small pool per spec.md §5 ("1-5 connections").
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, migrationerr.TransientStore("targetstore.Open", err)
	}
	return &Pool{pool}, nil
}

// BulkInsert inserts rows into table in sub-batches of batchSize, falling
// back to row-by-row on a batch failure to isolate bad rows and continue
// on individual failures — spec.md §4.7 step 6 / §4.8 step 5.
func (p *Pool) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (inserted int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		n, batchErr := p.execBatch(ctx, table, columns, batch)
		if batchErr == nil {
			inserted += n
			continue
		}

		// Batch failed: fall back to row-by-row to isolate the bad row(s).
		for _, row := range batch {
			if _, rowErr := p.execBatch(ctx, table, columns, [][]any{row}); rowErr != nil {
				err = migrationerr.TargetWriteConflict("targetstore.BulkInsert", rowErr)
				continue
			}
			inserted++
		}
	}
	return inserted, err
}

func (p *Pool) execBatch(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	query, args := buildInsertQuery(table, columns, rows)
	tag, err := p.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// buildInsertQuery builds "INSERT INTO t (a, b) VALUES ($1, $2), ($3, $4)".
func buildInsertQuery(table string, columns []string, rows [][]any) (string, []any) {
	colCount := len(columns)
	args := make([]any, 0, len(rows)*colCount)
	groups := make([]string, len(rows))

	argN := 1
	for i, row := range rows {
		placeholders := make([]string, colCount)
		for j := 0; j < colCount; j++ {
			placeholders[j] = fmt.Sprintf("$%d", argN)
			argN++
		}
		groups[i] = "(" + strings.Join(placeholders, ", ") + ")"
		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), strings.Join(groups, ", "))
	return query, args
}
