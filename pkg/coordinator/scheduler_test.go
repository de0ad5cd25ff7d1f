// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sylos-labs/catalog-migrator/pkg/coordinator/coordinatortest"
)

func TestInitializeChunksCreatesExpectedCount(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")

	n, err := s.InitializeChunks(context.Background(), 1200)
	require.NoError(t, err)
	require.Equal(t, 3, n) // ceil(1200/500) = 3
}

func TestInitializeChunksIsANoOpWhenAlreadyPresent(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")

	_, err := s.InitializeChunks(context.Background(), 1200)
	require.NoError(t, err)

	n, err := s.InitializeChunks(context.Background(), 9999)
	require.NoError(t, err)
	require.Equal(t, 3, n, "second call must not re-derive chunk count from the new total")
}

func TestGetNextChunkLeasesAPendingChunk(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 1000)
	require.NoError(t, err)

	chunk, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)
	require.NotNil(t, chunk)
	require.Equal(t, StatusProcessing, chunk.Status)
	require.Equal(t, "worker-1", chunk.WorkerID)
}

func TestGetNextChunkReturnsNilWhenAllLeased(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500) // exactly 1 chunk
	require.NoError(t, err)

	first, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestLeaseExclusivityAcrossConcurrentWorkers(t *testing.T) {
	// P4: at most one worker holds a given chunk's lease at any instant.
	redis := coordinatortest.NewFakeRedis()
	const numChunks = 20
	schedulers := make([]*Scheduler, 8)
	for i := range schedulers {
		schedulers[i] = New(redis, 1, 60*time.Second, workerName(i))
	}
	_, err := schedulers[0].InitializeChunks(context.Background(), numChunks)
	require.NoError(t, err)

	claimed := make(map[int]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, s := range schedulers {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				chunk, err := s.GetNextChunk(context.Background())
				require.NoError(t, err)
				if chunk == nil {
					return
				}
				mu.Lock()
				if existing, ok := claimed[chunk.ChunkID]; ok {
					t.Errorf("chunk %d leased twice: by %s and %s", chunk.ChunkID, existing, chunk.WorkerID)
				}
				claimed[chunk.ChunkID] = chunk.WorkerID
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, numChunks)
}

func workerName(i int) string {
	return "worker-" + string(rune('a'+i))
}

func TestMarkChunkCompletedAggregatesMetricsAndReleasesLock(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500)
	require.NoError(t, err)

	chunk, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)

	err = s.MarkChunkCompleted(context.Background(), chunk.ChunkID, Result{Processed: 10, ProductsCreated: 8})
	require.NoError(t, err)

	all, err := s.AreAllChunksCompleted(context.Background())
	require.NoError(t, err)
	require.True(t, all)

	_, held, err := redis.Get(context.Background(), lockKey(chunk.ChunkID))
	require.NoError(t, err)
	require.False(t, held, "lock must be released on completion")
}

func TestMarkChunkPendingAllowsRelease(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500)
	require.NoError(t, err)

	chunk, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.MarkChunkPending(context.Background(), chunk.ChunkID))

	next, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, chunk.ChunkID, next.ChunkID)
}

func TestAreAllChunksCompletedFalseWhenEmpty(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")

	all, err := s.AreAllChunksCompleted(context.Background())
	require.NoError(t, err)
	require.False(t, all)
}

func TestGetProgressCountsByStatus(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 1500) // 3 chunks
	require.NoError(t, err)

	_, err = s.GetNextChunk(context.Background())
	require.NoError(t, err)

	p, err := s.GetProgress(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, p.Total)
	require.Equal(t, 1, p.Processing)
	require.Equal(t, 2, p.Pending)
}

func TestResetDeletesChunksAndLocks(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500)
	require.NoError(t, err)
	_, err = s.GetNextChunk(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))

	n, err := redis.HLen(context.Background(), chunksKey)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, held, err := redis.Get(context.Background(), lockKey(0))
	require.NoError(t, err)
	require.False(t, held, "lock must be deleted by reset")
}

func TestSweeperReclaimsChunkWithExpiredLease(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500)
	require.NoError(t, err)
	chunk, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)

	redis.ExpireKeyNow(lockKey(chunk.ChunkID))

	sweeper := NewSweeper(s, redis, time.Second)
	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	next, err := s.GetNextChunk(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, chunk.ChunkID, next.ChunkID)
}

func TestSweeperLeavesActiveLeasesAlone(t *testing.T) {
	redis := coordinatortest.NewFakeRedis()
	s := New(redis, 500, 60*time.Second, "worker-1")
	_, err := s.InitializeChunks(context.Background(), 500)
	require.NoError(t, err)
	_, err = s.GetNextChunk(context.Background())
	require.NoError(t, err)

	sweeper := NewSweeper(s, redis, time.Second)
	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
