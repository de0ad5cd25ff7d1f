// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package coordinator

import (
	"context"
	"strconv"
	"time"

	"github.com/sylos-labs/catalog-migrator/pkg/logging"
	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
)

// Sweeper resolves the open question in spec.md §4.1: a chunk orphaned
// by a hard crash stays "processing" forever once its lease key
// expires, since nothing else reverts it. The sweeper periodically
// finds chunks whose lock key has expired (or never existed) while
// their map entry still claims status=processing, and reverts them to
// pending so another worker can pick them up.
type Sweeper struct {
	scheduler *Scheduler
	redis     RedisClient
	interval  time.Duration
}

// NewSweeper constructs a Sweeper that checks for orphaned chunks every interval.
func NewSweeper(scheduler *Scheduler, redis RedisClient, interval time.Duration) *Sweeper {
	return &Sweeper{scheduler: scheduler, redis: redis, interval: interval}
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := s.SweepOnce(ctx)
			if err != nil {
				logging.L.Warn().Err(err).Msg("stale-lease sweep failed")
			} else if reclaimed > 0 {
				logging.L.Info().Int("reclaimed", reclaimed).Msg("reclaimed orphaned chunks")
			}
		}
	}
}

// SweepOnce performs a single sweep pass, returning the number of
// chunks it reclaimed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	all, err := s.redis.HGetAll(ctx, chunksKey)
	if err != nil {
		return 0, migrationerr.CoordinationUnavailable("Sweeper.SweepOnce", err)
	}

	reclaimed := 0
	for field, raw := range all {
		chunk, err := unmarshalChunk(raw)
		if err != nil || chunk.Status != StatusProcessing {
			continue
		}

		chunkID, err := strconv.Atoi(field)
		if err != nil {
			continue
		}

		_, held, err := s.redis.Get(ctx, lockKey(chunkID))
		if err != nil {
			continue
		}
		if held {
			continue // lease still live; owner is still working it
		}

		if err := s.scheduler.MarkChunkPending(ctx, chunkID); err != nil {
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

// ActiveLockWorkerIDs returns the set of workerIds currently holding a
// lock, derived from the lockPrefix keyspace. Used by the status CLI
// subcommand; SweepOnce itself only needs presence, not identity.
func ActiveLockWorkerIDs(ctx context.Context, redis RedisClient) (map[string]bool, error) {
	keys, err := redis.Keys(ctx, lockPrefix+"*")
	if err != nil {
		return nil, err
	}
	workers := make(map[string]bool, len(keys))
	for _, k := range keys {
		v, ok, err := redis.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		workers[v] = true
	}
	return workers, nil
}
