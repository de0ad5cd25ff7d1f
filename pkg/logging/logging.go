// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package logging wires the engine's structured logger. It mirrors the
// teacher's logservice dual-sink design (a live sink plus a durable
// local audit trail) but delegates formatting and leveling to
// zerolog instead of a hand-rolled UDP JSON packet format.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// L is the global process logger. It must be initialized via Init before use.
var L zerolog.Logger

// Init configures the global logger. format is "console" (human-readable,
// for local/dev runs) or anything else for JSON (production).
func Init(format, workerID string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if format == "console" {
		L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Str("worker", workerID).Logger()
		return
	}

	L = zerolog.New(os.Stderr).With().Timestamp().Str("worker", workerID).Logger()
}

// ForRecord returns a child logger tagged with a source product's identity,
// matching the teacher's convention of tagging every log line with
// (entity, entityID, queue) context.
func ForRecord(externalID, platform, country string) zerolog.Logger {
	return L.With().
		Str("externalId", externalID).
		Str("platform", platform).
		Str("country", country).
		Logger()
}

// ForChunk returns a child logger tagged with a chunk id.
func ForChunk(chunkID string) zerolog.Logger {
	return L.With().Str("chunk", chunkID).Logger()
}
