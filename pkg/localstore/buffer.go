// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package localstore

import (
	"sync"
	"time"
)

// AuditEntry is one durable log line written to the local store.
type AuditEntry struct {
	ID        string
	Timestamp string
	Level     string
	Entity    string
	EntityID  string
	Message   string
	ChunkID   string
}

// AuditBuffer batches AuditEntry writes and flushes them to the local
// store on a count or time trigger, the same write-behind shape as the
// teacher's pkg/db.LogBuffer, so a burst of per-record log lines
// doesn't serialize on disk I/O one row at a time.
type AuditBuffer struct {
	db       *DB
	mu       sync.Mutex
	pending  []AuditEntry
	maxBatch int
	ticker   *time.Ticker
	stop     chan struct{}
	once     sync.Once
}

// NewAuditBuffer creates a buffer that flushes every maxBatch entries or
// every flushInterval, whichever comes first.
func NewAuditBuffer(db *DB, maxBatch int, flushInterval time.Duration) *AuditBuffer {
	b := &AuditBuffer{
		db:       db,
		pending:  make([]AuditEntry, 0, maxBatch),
		maxBatch: maxBatch,
		ticker:   time.NewTicker(flushInterval),
		stop:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *AuditBuffer) run() {
	for {
		select {
		case <-b.ticker.C:
			_ = b.Flush()
		case <-b.stop:
			return
		}
	}
}

// Add enqueues an entry, flushing synchronously if the batch is full.
func (b *AuditBuffer) Add(e AuditEntry) {
	b.mu.Lock()
	b.pending = append(b.pending, e)
	full := len(b.pending) >= b.maxBatch
	b.mu.Unlock()

	if full {
		_ = b.Flush()
	}
}

// Flush writes any pending entries to the local store immediately.
func (b *AuditBuffer) Flush() error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.pending
	b.pending = make([]AuditEntry, 0, b.maxBatch)
	b.mu.Unlock()

	rows := make([][]any, len(batch))
	for i, e := range batch {
		rows[i] = []any{e.ID, e.Timestamp, e.Level, e.Entity, e.EntityID, e.Message, e.ChunkID}
	}
	columns := []string{"id", "timestamp", "level", "entity", "entity_id", "message", "chunk_id"}
	return b.db.BulkInsert("audit_log", columns, rows)
}

// Stop flushes any remaining entries and stops the background ticker.
func (b *AuditBuffer) Stop() {
	b.once.Do(func() {
		close(b.stop)
		b.ticker.Stop()
		_ = b.Flush()
	})
}
