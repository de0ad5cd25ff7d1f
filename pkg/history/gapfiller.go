// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package history implements the History Gap Filler (C5): compute the
// set of dates present in source but absent in target for a product,
// and bulk-insert those rows in bounded sub-batches (spec.md §4.7).
package history

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// maxGapDates bounds the IN-list size fetched per invocation; with more
// than this many missing dates, the remainder is left for a future run
// (spec.md §4.7 step 4, Q2 — see the convergence-loop supplement in
// SPEC_FULL.md, which simply calls Fill repeatedly until it returns 0).
const maxGapDates = 1000

// batchSize is the sub-batch size for inserts (spec.md §4.7 step 6).
const batchSize = 50

// Aggregates carries a product's current window aggregates, applied only
// to the most recent synthesized history row (spec.md §4.7 step 5).
type Aggregates struct {
	SoldUnitsLast7Days  int64
	SoldUnitsLast30Days int64
	TotalSoldUnits      int64
	BillingLast7Days    float64
	BillingLast30Days   float64
	TotalBilling        float64
	SuggestedPrice      float64
}

// Store is the subset of target-store reads/writes the gap filler needs.
type Store interface {
	ExistingDates(ctx context.Context, productID string) (map[string]bool, error)
	InsertBatch(ctx context.Context, rows []targetmodel.History) error
	InsertOne(ctx context.Context, row targetmodel.History) error
}

// GapFiller fills missing history rows for a product.
type GapFiller struct {
	store Store
}

// New constructs a GapFiller.
func New(store Store) *GapFiller {
	return &GapFiller{store: store}
}

// Fill inserts history rows present in source but absent in target for
// productID, returning the count successfully inserted.
func (g *GapFiller) Fill(ctx context.Context, productID string, source []sourcemodel.History, aggregates Aggregates) (int, error) {
	existing, err := g.store.ExistingDates(ctx, productID)
	if err != nil {
		return 0, migrationerr.TransientStore("history.Fill", err)
	}

	missing := make([]sourcemodel.History, 0, len(source))
	seen := make(map[string]bool)
	for _, h := range source {
		if existing[h.Date] || seen[h.Date] {
			continue
		}
		seen[h.Date] = true
		missing = append(missing, h)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i].Date < missing[j].Date })
	if len(missing) > maxGapDates {
		missing = missing[:maxGapDates]
	}

	rows := make([]targetmodel.History, len(missing))
	for i, h := range missing {
		rows[i] = targetmodel.History{
			ID:        uuid.NewString(),
			Date:      h.Date,
			ProductID: productID,
			Stock:     h.Stock,
			SalePrice: h.SalePrice,
			SoldUnits: h.SoldUnits,
		}
	}
	// Last (most recent) row carries the product's current window
	// aggregates; all others are zero-filled.
	last := len(rows) - 1
	rows[last].SoldUnitsLast7Days = aggregates.SoldUnitsLast7Days
	rows[last].SoldUnitsLast30Days = aggregates.SoldUnitsLast30Days
	rows[last].TotalSoldUnits = aggregates.TotalSoldUnits
	rows[last].BillingLast7Days = aggregates.BillingLast7Days
	rows[last].BillingLast30Days = aggregates.BillingLast30Days
	rows[last].TotalBilling = aggregates.TotalBilling
	rows[last].SuggestedPrice = aggregates.SuggestedPrice

	inserted := 0
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		if err := g.store.InsertBatch(ctx, batch); err == nil {
			inserted += len(batch)
			continue
		}

		// Batch failed: fall back to row-by-row to isolate bad rows.
		for _, row := range batch {
			if err := g.store.InsertOne(ctx, row); err != nil {
				continue
			}
			inserted++
		}
	}
	return inserted, nil
}
