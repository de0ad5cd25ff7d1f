// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

type fakeStore struct {
	existing      map[string]bool
	inserted      []targetmodel.History
	failBatch     bool
	failDates     map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[string]bool), failDates: make(map[string]bool)}
}

func (f *fakeStore) ExistingDates(ctx context.Context, productID string) (map[string]bool, error) {
	return f.existing, nil
}

func (f *fakeStore) InsertBatch(ctx context.Context, rows []targetmodel.History) error {
	if f.failBatch {
		return errors.New("batch failed")
	}
	for _, r := range rows {
		if f.failDates[r.Date] {
			return errors.New("bad row in batch")
		}
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeStore) InsertOne(ctx context.Context, row targetmodel.History) error {
	if f.failDates[row.Date] {
		return errors.New("bad row")
	}
	f.inserted = append(f.inserted, row)
	return nil
}

func TestFillReturnsZeroWhenNoGap(t *testing.T) {
	store := newFakeStore()
	store.existing["2026-01-01"] = true
	g := New(store)

	n, err := g.Fill(context.Background(), "prod-1", []sourcemodel.History{
		{Date: "2026-01-01"},
	}, Aggregates{})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFillInsertsMissingDatesSortedWithLastRowEnriched(t *testing.T) {
	store := newFakeStore()
	g := New(store)

	source := []sourcemodel.History{
		{Date: "2026-01-03", Stock: 3},
		{Date: "2026-01-01", Stock: 1},
		{Date: "2026-01-02", Stock: 2},
	}
	aggregates := Aggregates{TotalSoldUnits: 99, SuggestedPrice: 12.5}

	n, err := g.Fill(context.Background(), "prod-1", source, aggregates)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Len(t, store.inserted, 3)

	require.Equal(t, "2026-01-01", store.inserted[0].Date)
	require.Equal(t, "2026-01-02", store.inserted[1].Date)
	require.Equal(t, "2026-01-03", store.inserted[2].Date)

	require.Zero(t, store.inserted[0].TotalSoldUnits)
	require.Zero(t, store.inserted[1].TotalSoldUnits)
	require.Equal(t, int64(99), store.inserted[2].TotalSoldUnits)
	require.Equal(t, 12.5, store.inserted[2].SuggestedPrice)
}

func TestFillSkipsDatesAlreadyPresent(t *testing.T) {
	store := newFakeStore()
	store.existing["2026-01-01"] = true
	g := New(store)

	source := []sourcemodel.History{
		{Date: "2026-01-01"},
		{Date: "2026-01-02"},
	}
	n, err := g.Fill(context.Background(), "prod-1", source, Aggregates{})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "2026-01-02", store.inserted[0].Date)
}

func TestFillFallsBackToRowByRowOnBatchFailure(t *testing.T) {
	store := newFakeStore()
	store.failBatch = true
	store.failDates["2026-01-02"] = true
	g := New(store)

	source := []sourcemodel.History{
		{Date: "2026-01-01"},
		{Date: "2026-01-02"},
		{Date: "2026-01-03"},
	}
	n, err := g.Fill(context.Background(), "prod-1", source, Aggregates{})
	require.NoError(t, err)
	// The bad row is skipped; the other two succeed row-by-row.
	require.Equal(t, 2, n)
}

func TestFillCapsAtMaxGapDates(t *testing.T) {
	store := newFakeStore()
	g := New(store)

	source := make([]sourcemodel.History, 0, maxGapDates+10)
	for i := 0; i < maxGapDates+10; i++ {
		source = append(source, sourcemodel.History{Date: dateForIndex(i)})
	}

	n, err := g.Fill(context.Background(), "prod-1", source, Aggregates{})
	require.NoError(t, err)
	require.Equal(t, maxGapDates, n)
}

func dateForIndex(i int) string {
	// Produces distinct sortable strings; exact calendar validity doesn't
	// matter for this test, only uniqueness and lexical order.
	return fmt.Sprintf("2020-01-%05d", i)
}
