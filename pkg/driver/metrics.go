// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package driver

import "github.com/sylos-labs/catalog-migrator/pkg/coordinator"

// ChunkMetrics accumulates per-chunk counters as records are processed,
// then converts to coordinator.Result for reporting (spec.md §4.2
// "Metrics aggregated per chunk").
type ChunkMetrics struct {
	Processed         int
	ProvidersCreated  int
	ProductsCreated   int
	ProductsUpdated   int
	HistoriesFilled   int
	MultimediaCreated int
	DuplicatesSkipped int
	Errors            int
}

func (m ChunkMetrics) toResult() coordinator.Result {
	return coordinator.Result{
		Processed:         m.Processed,
		ProvidersCreated:  m.ProvidersCreated,
		ProductsCreated:   m.ProductsCreated,
		ProductsUpdated:   m.ProductsUpdated,
		HistoriesFilled:   m.HistoriesFilled,
		MultimediaCreated: m.MultimediaCreated,
		DuplicatesSkipped: m.DuplicatesSkipped,
		Errors:            m.Errors,
	}
}
