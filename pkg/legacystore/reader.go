// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package legacystore implements the Source Reader (C1): a uniform
// read(skip, take)/count() contract over either the live legacy store
// or a pre-exported snapshot file, selected by the presence of the
// snapshot file (spec.md §4.3). This mirrors the teacher's dual
// fsservices.FSAdapter design (pkg/fsservices: LocalFS vs SpectraFS
// behind one interface), generalized from filesystem adapters to
// paginated record readers.
package legacystore

import (
	"context"
	"os"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

// Reader is the uniform contract both backends satisfy. Both backends must
// yield records in a deterministic order so chunk start/end offsets are
// well-defined across workers (spec.md §4.3).
type Reader interface {
	// Read returns up to take products starting at offset skip, in
	// deterministic order.
	Read(ctx context.Context, skip, take int) ([]sourcemodel.Product, error)
	// Count returns the total number of eligible products.
	Count(ctx context.Context) (int, error)
	// HistoryFor returns every source history row for the given
	// (externalProductID, platformName, countryCode) triple.
	HistoryFor(ctx context.Context, externalProductID, platformName, countryCode string) ([]sourcemodel.History, error)
}

// Select picks the snapshot backend if snapshotPath exists on disk,
// otherwise the store backend — "selection is by presence of the
// snapshot file" per spec.md §4.3.
func Select(ctx context.Context, store *StoreBackend, snapshotPath string) (Reader, error) {
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err == nil {
			return NewSnapshotBackend(snapshotPath)
		}
	}
	return store, nil
}
