// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package localstore

const auditLogSchema = `CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	level TEXT NOT NULL,
	entity TEXT,
	entity_id TEXT,
	message TEXT NOT NULL,
	chunk_id TEXT
)`

const chunkMetricsSchema = `CREATE TABLE IF NOT EXISTS chunk_metrics (
	chunk_id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	providers_created INTEGER NOT NULL DEFAULT 0,
	products_created INTEGER NOT NULL DEFAULT 0,
	products_updated INTEGER NOT NULL DEFAULT 0,
	histories_filled INTEGER NOT NULL DEFAULT 0,
	multimedia_created INTEGER NOT NULL DEFAULT 0,
	duplicates_skipped INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
)`
