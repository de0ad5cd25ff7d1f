// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sylos-labs/catalog-migrator/pkg/coordinator"
	"github.com/sylos-labs/catalog-migrator/pkg/history"
	"github.com/sylos-labs/catalog-migrator/pkg/product"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

type fakeReader struct {
	records []sourcemodel.Product
	err     error
}

func (f *fakeReader) Read(ctx context.Context, skip, take int) ([]sourcemodel.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	end := skip + take
	if end > len(f.records) {
		end = len(f.records)
	}
	if skip > len(f.records) {
		return nil, nil
	}
	return f.records[skip:end], nil
}

func (f *fakeReader) Count(ctx context.Context) (int, error) {
	return len(f.records), nil
}

func (f *fakeReader) HistoryFor(ctx context.Context, externalProductID, platformName, countryCode string) ([]sourcemodel.History, error) {
	return nil, nil
}

type fakeRefs struct{}

func (fakeRefs) ResolvePlatformCountry(ctx context.Context, platformName, countryCode string) (string, error) {
	return "pc-1", nil
}

func (fakeRefs) ResolveBaseCategoryByName(ctx context.Context, name, platform string) (string, error) {
	return "bc-1", nil
}

type fakeProviders struct {
	mu      sync.Mutex
	calls   int
	created bool
}

func (f *fakeProviders) Resolve(ctx context.Context, p sourcemodel.Product) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "provider-1", f.created, nil
}

type fakeProducts struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProducts) Upsert(ctx context.Context, src sourcemodel.Product, providerID, platformCountryID, baseCategoryID string) (product.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return product.Result{ProductID: src.SourceID, Created: true}, nil
}

type fakeHistories struct{}

func (fakeHistories) Fill(ctx context.Context, productID string, source []sourcemodel.History, aggregates history.Aggregates) (int, error) {
	return 0, nil
}

type fakeMultimedia struct{}

func (fakeMultimedia) Reconcile(ctx context.Context, productID, country string, gallery []sourcemodel.GalleryEntry) (int, error) {
	return 0, nil
}

// fakeScheduler is a minimal in-memory stand-in for coordinator.Scheduler,
// handing out a fixed set of chunks exactly once each.
type fakeScheduler struct {
	mu          sync.Mutex
	chunks      []coordinator.ChunkState
	next        int
	renewCalls  int
	completed   []coordinator.ChunkState
	reverted    []int
	initialized bool
	numChunks   int
}

func (s *fakeScheduler) InitializeChunks(ctx context.Context, total int) (int, error) {
	s.initialized = true
	return s.numChunks, nil
}

func (s *fakeScheduler) GetNextChunk(ctx context.Context) (*coordinator.ChunkState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.chunks) {
		return nil, nil
	}
	c := s.chunks[s.next]
	s.next++
	return &c, nil
}

func (s *fakeScheduler) RenewLock(ctx context.Context, chunkID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewCalls++
	return nil
}

func (s *fakeScheduler) MarkChunkCompleted(ctx context.Context, chunkID int, result coordinator.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, coordinator.ChunkState{ChunkID: chunkID, ProcessedCount: result.Processed, ProvidersCreated: result.ProvidersCreated})
	return nil
}

func (s *fakeScheduler) MarkChunkPending(ctx context.Context, chunkID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverted = append(s.reverted, chunkID)
	return nil
}

func (s *fakeScheduler) AreAllChunksCompleted(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next >= len(s.chunks) && len(s.completed)+len(s.reverted) >= len(s.chunks), nil
}

func newDriver(reader Reader, sched Scheduler) *Driver {
	return New(Deps{
		Reader:     reader,
		Refs:       fakeRefs{},
		Providers:  &fakeProviders{},
		Products:   &fakeProducts{},
		Histories:  fakeHistories{},
		Multimedia: fakeMultimedia{},
		Scheduler:  sched,
		RenewEvery: 10 * time.Millisecond,
	})
}

func TestExecuteShortCircuitsOnZeroRecords(t *testing.T) {
	reader := &fakeReader{}
	sched := &fakeScheduler{numChunks: 0}
	d := newDriver(reader, sched)

	err := d.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, sched.initialized)
	require.Empty(t, sched.completed)
}

func TestExecuteProcessesAllChunksThenCompletes(t *testing.T) {
	records := []sourcemodel.Product{
		{SourceID: "s1", ExternalID: "e1", PlatformName: "dropi", CountryCode: "CO"},
		{SourceID: "s2", ExternalID: "e2", PlatformName: "dropi", CountryCode: "CO"},
	}
	reader := &fakeReader{records: records}
	sched := &fakeScheduler{
		numChunks: 2,
		chunks: []coordinator.ChunkState{
			{ChunkID: 0, StartOffset: 0, EndOffset: 1, Status: coordinator.StatusProcessing},
			{ChunkID: 1, StartOffset: 1, EndOffset: 2, Status: coordinator.StatusProcessing},
		},
	}
	d := newDriver(reader, sched)

	err := d.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, sched.completed, 2)
	require.Empty(t, sched.reverted)
}

func TestExecuteSkipsDuplicateRecordsAcrossChunks(t *testing.T) {
	records := []sourcemodel.Product{
		{SourceID: "dup", ExternalID: "e1", PlatformName: "dropi", CountryCode: "CO"},
		{SourceID: "dup", ExternalID: "e1", PlatformName: "dropi", CountryCode: "CO"},
	}
	reader := &fakeReader{records: records}
	sched := &fakeScheduler{
		numChunks: 2,
		chunks: []coordinator.ChunkState{
			{ChunkID: 0, StartOffset: 0, EndOffset: 1},
			{ChunkID: 1, StartOffset: 1, EndOffset: 2},
		},
	}
	products := &fakeProducts{}
	d := New(Deps{
		Reader:     reader,
		Refs:       fakeRefs{},
		Providers:  &fakeProviders{},
		Products:   products,
		Histories:  fakeHistories{},
		Multimedia: fakeMultimedia{},
		Scheduler:  sched,
		RenewEvery: 10 * time.Millisecond,
	})

	require.NoError(t, d.Execute(context.Background()))
	require.Equal(t, 1, products.calls, "second occurrence of the same sourceId must be skipped")
}

func TestExecuteRevertsChunkOnProcessingError(t *testing.T) {
	reader := &fakeReader{err: errors.New("boom")}
	sched := &fakeScheduler{
		numChunks: 1,
		chunks:    []coordinator.ChunkState{{ChunkID: 0, StartOffset: 0, EndOffset: 1}},
	}
	d := newDriver(reader, sched)

	require.NoError(t, d.Execute(context.Background()))
	require.Equal(t, []int{0}, sched.reverted)
	require.Empty(t, sched.completed)
}

func TestExecuteAggregatesProvidersCreatedMetric(t *testing.T) {
	records := []sourcemodel.Product{
		{SourceID: "s1", ExternalID: "e1", PlatformName: "dropi", CountryCode: "CO"},
	}
	reader := &fakeReader{records: records}
	sched := &fakeScheduler{
		numChunks: 1,
		chunks:    []coordinator.ChunkState{{ChunkID: 0, StartOffset: 0, EndOffset: 1}},
	}
	providers := &fakeProviders{created: true}
	d := New(Deps{
		Reader:     reader,
		Refs:       fakeRefs{},
		Providers:  providers,
		Products:   &fakeProducts{},
		Histories:  fakeHistories{},
		Multimedia: fakeMultimedia{},
		Scheduler:  sched,
		RenewEvery: 10 * time.Millisecond,
	})

	require.NoError(t, d.Execute(context.Background()))
	require.Len(t, sched.completed, 1)
	require.Equal(t, 1, sched.completed[0].ProcessedCount)
	require.Equal(t, 1, sched.completed[0].ProvidersCreated)
}

func TestRenewLeaseLoopStopsWhenContextCancelled(t *testing.T) {
	sched := &fakeScheduler{numChunks: 0}
	d := newDriver(&fakeReader{}, sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.renewEvery = 5 * time.Millisecond
	go func() {
		d.renewLeaseLoop(ctx, 0)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renewLeaseLoop did not exit after context cancellation")
	}
	require.GreaterOrEqual(t, sched.renewCalls, 1)
}
