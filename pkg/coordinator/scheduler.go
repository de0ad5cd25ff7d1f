// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package coordinator implements the Chunk Scheduler (C7): partition
// total work into fixed-size chunks, lease chunks with TTL-bounded
// exclusive locks, renew during processing, mark completion, requeue on
// failure, and report progress (spec.md §4.1). Grounded on the
// teacher's pkg/queue.Queue state machine (lifecycle states, lease
// accounting, round-style progress reporting) but backed by an
// external coordination service instead of an in-process BoltDB, since
// I6 requires cross-process mutual exclusion.
package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
)

const (
	chunksKey  = "migration:chunks"
	lockPrefix = "migration:lock:"
)

// Scheduler hands out chunk leases to workers via the coordination service.
type Scheduler struct {
	redis     RedisClient
	chunkSize int
	lockTTL   time.Duration
	workerID  string
	now       func() time.Time
}

// New constructs a Scheduler. chunkSize and lockTTL come from
// configuration (spec.md §6 CHUNK_SIZE, LOCK_TTL_SECONDS).
func New(redis RedisClient, chunkSize int, lockTTL time.Duration, workerID string) *Scheduler {
	return &Scheduler{redis: redis, chunkSize: chunkSize, lockTTL: lockTTL, workerID: workerID, now: time.Now}
}

// InitializeChunks creates ceil(total/chunkSize) pending chunk entries.
// Idempotent only insofar as it's a no-op when chunks already exist —
// callers are expected to check presence first (spec.md §4.1).
func (s *Scheduler) InitializeChunks(ctx context.Context, total int) (int, error) {
	existing, err := s.redis.HLen(ctx, chunksKey)
	if err != nil {
		return 0, migrationerr.CoordinationUnavailable("InitializeChunks", err)
	}
	if existing > 0 {
		return existing, nil
	}

	numChunks := (total + s.chunkSize - 1) / s.chunkSize
	for i := 0; i < numChunks; i++ {
		start := i * s.chunkSize
		end := start + s.chunkSize
		if end > total {
			end = total
		}
		chunk := ChunkState{
			ChunkID:     i,
			StartOffset: start,
			EndOffset:   end,
			Status:      StatusPending,
		}
		raw, err := chunk.marshal()
		if err != nil {
			return 0, err
		}
		if err := s.redis.HSet(ctx, chunksKey, strconv.Itoa(i), raw); err != nil {
			return 0, migrationerr.CoordinationUnavailable("InitializeChunks", err)
		}
	}
	return numChunks, nil
}

// GetNextChunk scans the chunk map for the first pending entry it can
// lease, returning nil if none is currently leasable (spec.md §4.1
// "Scheduling policy": first-fit over hash-map iteration order).
func (s *Scheduler) GetNextChunk(ctx context.Context) (*ChunkState, error) {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return nil, migrationerr.CoordinationUnavailable("GetNextChunk", err)
	}

	for field, raw := range all {
		chunk, err := unmarshalChunk(raw)
		if err != nil {
			continue
		}
		if chunk.Status != StatusPending {
			continue
		}

		acquired, err := s.redis.SetNX(ctx, lockKey(chunk.ChunkID), s.workerID, s.lockTTL)
		if err != nil {
			return nil, migrationerr.CoordinationUnavailable("GetNextChunk", err)
		}
		if !acquired {
			continue
		}

		chunk.Status = StatusProcessing
		chunk.WorkerID = s.workerID
		chunk.LastUpdate = nowRFC3339(s.now())
		raw, err := chunk.marshal()
		if err != nil {
			return nil, err
		}
		if err := s.redis.HSet(ctx, chunksKey, field, raw); err != nil {
			return nil, migrationerr.CoordinationUnavailable("GetNextChunk", err)
		}
		return &chunk, nil
	}
	return nil, nil
}

// RenewLock extends a held lease's TTL. Called periodically by the
// driver's lease-renewal task while the chunk is being processed
// (spec.md §4.1 "Lease renewal contract").
func (s *Scheduler) RenewLock(ctx context.Context, chunkID int) error {
	if err := s.redis.Expire(ctx, lockKey(chunkID), s.lockTTL); err != nil {
		return migrationerr.CoordinationUnavailable("RenewLock", err)
	}
	return nil
}

// MarkChunkCompleted merges result into the chunk entry, sets
// status=completed, and releases the lock (spec.md §4.1).
func (s *Scheduler) MarkChunkCompleted(ctx context.Context, chunkID int, result Result) error {
	chunk, found, err := s.getChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	if !found {
		return migrationerr.ReferenceMissing("MarkChunkCompleted", "no chunk %d", chunkID)
	}

	chunk.Status = StatusCompleted
	chunk.LastUpdate = nowRFC3339(s.now())
	chunk.ProcessedCount += result.Processed
	chunk.ProvidersCreated += result.ProvidersCreated
	chunk.ProductsCreated += result.ProductsCreated
	chunk.ProductsUpdated += result.ProductsUpdated
	chunk.HistoriesFilled += result.HistoriesFilled
	chunk.MultimediaCreated += result.MultimediaCreated
	chunk.DuplicatesSkipped += result.DuplicatesSkipped
	chunk.Errors += result.Errors

	if err := s.saveChunk(ctx, chunk); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, lockKey(chunkID)); err != nil {
		return migrationerr.CoordinationUnavailable("MarkChunkCompleted", err)
	}
	return nil
}

// MarkChunkPending reverts a chunk to pending so another worker (or the
// same worker on a later loop) may retry it, on a worker-local failure
// (spec.md §4.1).
func (s *Scheduler) MarkChunkPending(ctx context.Context, chunkID int) error {
	chunk, found, err := s.getChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	if !found {
		return migrationerr.ReferenceMissing("MarkChunkPending", "no chunk %d", chunkID)
	}

	chunk.Status = StatusPending
	chunk.WorkerID = ""
	chunk.LastUpdate = nowRFC3339(s.now())
	if err := s.saveChunk(ctx, chunk); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, lockKey(chunkID)); err != nil {
		return migrationerr.CoordinationUnavailable("MarkChunkPending", err)
	}
	return nil
}

// AreAllChunksCompleted is true iff the map is non-empty and every
// entry has status=completed (spec.md §4.1).
func (s *Scheduler) AreAllChunksCompleted(ctx context.Context) (bool, error) {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return false, migrationerr.CoordinationUnavailable("AreAllChunksCompleted", err)
	}
	if len(all) == 0 {
		return false, nil
	}
	for _, raw := range all {
		chunk, err := unmarshalChunk(raw)
		if err != nil {
			return false, nil
		}
		if chunk.Status != StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// Progress is a read-only summary for operator visibility (spec.md §4.1
// getProgress, and the CLI status subcommand SPEC_FULL.md adds).
type Progress struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
}

// GetProgress summarizes chunk counts by status.
func (s *Scheduler) GetProgress(ctx context.Context) (Progress, error) {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return Progress{}, migrationerr.CoordinationUnavailable("GetProgress", err)
	}
	var p Progress
	p.Total = len(all)
	for _, raw := range all {
		chunk, err := unmarshalChunk(raw)
		if err != nil {
			continue
		}
		switch chunk.Status {
		case StatusPending:
			p.Pending++
		case StatusProcessing:
			p.Processing++
		case StatusCompleted:
			p.Completed++
		}
	}
	return p, nil
}

// Reset unconditionally deletes the chunk map and every outstanding
// lock (spec.md §4.1).
func (s *Scheduler) Reset(ctx context.Context) error {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return migrationerr.CoordinationUnavailable("Reset", err)
	}
	locks := make([]string, 0, len(all)+1)
	for field := range all {
		locks = append(locks, lockKeyFromField(field))
	}
	locks = append(locks, chunksKey)
	if err := s.redis.Del(ctx, locks...); err != nil {
		return migrationerr.CoordinationUnavailable("Reset", err)
	}
	return nil
}

func (s *Scheduler) getChunk(ctx context.Context, chunkID int) (ChunkState, bool, error) {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return ChunkState{}, false, migrationerr.CoordinationUnavailable("getChunk", err)
	}
	raw, ok := all[strconv.Itoa(chunkID)]
	if !ok {
		return ChunkState{}, false, nil
	}
	chunk, err := unmarshalChunk(raw)
	if err != nil {
		return ChunkState{}, false, migrationerr.SourceDataMalformed("getChunk", err)
	}
	return chunk, true, nil
}

func (s *Scheduler) saveChunk(ctx context.Context, chunk ChunkState) error {
	raw, err := chunk.marshal()
	if err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, chunksKey, strconv.Itoa(chunk.ChunkID), raw); err != nil {
		return migrationerr.CoordinationUnavailable("saveChunk", err)
	}
	return nil
}

func lockKey(chunkID int) string {
	return fmt.Sprintf("%s%d", lockPrefix, chunkID)
}

func lockKeyFromField(field string) string {
	return lockPrefix + field
}
