// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package driver

import (
	"context"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

// cappedReader wraps a Reader to report at most cap total records,
// clamping any Read window accordingly. Used for TEST_MODE smoke runs
// (spec.md §6 TEST_MODE) without touching the underlying backend.
type cappedReader struct {
	inner Reader
	max   int
}

// NewCappedReader limits reader to at most cap records.
func NewCappedReader(reader Reader, max int) Reader {
	return &cappedReader{inner: reader, max: max}
}

func (c *cappedReader) Count(ctx context.Context) (int, error) {
	total, err := c.inner.Count(ctx)
	if err != nil {
		return 0, err
	}
	if total > c.max {
		return c.max, nil
	}
	return total, nil
}

func (c *cappedReader) Read(ctx context.Context, skip, take int) ([]sourcemodel.Product, error) {
	if skip >= c.max {
		return nil, nil
	}
	if skip+take > c.max {
		take = c.max - skip
	}
	return c.inner.Read(ctx, skip, take)
}

func (c *cappedReader) HistoryFor(ctx context.Context, externalProductID, platformName, countryCode string) ([]sourcemodel.History, error) {
	return c.inner.HistoryFor(ctx, externalProductID, platformName, countryCode)
}
