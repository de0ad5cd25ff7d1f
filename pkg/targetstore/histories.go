// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package targetstore

import (
	"context"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// historyBatchSize mirrors history.batchSize; kept separate since this
// package must not import the history package (it is the other way
// around: history.Store is satisfied by this type).
const historyBatchSize = 50

var historyColumns = []string{
	"id", "date", "product_id", "stock", "sale_price", "sold_units",
	"sold_units_last_7_days", "sold_units_last_30_days", "total_sold_units",
	"billing_last_7_days", "billing_last_30_days", "total_billing", "suggested_price",
}

// Histories satisfies history.Store against the redesigned target store.
type Histories struct {
	pool *Pool
}

// NewHistories constructs a Histories store.
func NewHistories(pool *Pool) *Histories {
	return &Histories{pool: pool}
}

func (s *Histories) ExistingDates(ctx context.Context, productID string) (map[string]bool, error) {
	const query = `SELECT date FROM histories WHERE product_id = $1`
	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, migrationerr.TransientStore("targetstore.Histories.ExistingDates", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, migrationerr.TransientStore("targetstore.Histories.ExistingDates", err)
		}
		out[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, migrationerr.TransientStore("targetstore.Histories.ExistingDates", err)
	}
	return out, nil
}

// InsertBatch writes rows as one multi-row statement, so a failure leaves
// none of them written and GapFiller.Fill's row-by-row fallback cannot
// insert a row twice.
func (s *Histories) InsertBatch(ctx context.Context, rows []targetmodel.History) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([][]any, len(rows))
	for i, h := range rows {
		batch[i] = historyRow(h)
	}
	if _, err := s.pool.execBatch(ctx, "histories", historyColumns, batch); err != nil {
		return migrationerr.TargetWriteConflict("targetstore.Histories.InsertBatch", err)
	}
	return nil
}

func (s *Histories) InsertOne(ctx context.Context, row targetmodel.History) error {
	_, err := s.pool.BulkInsert(ctx, "histories", historyColumns, [][]any{historyRow(row)}, 1)
	return err
}

func historyRow(h targetmodel.History) []any {
	return []any{
		h.ID, h.Date, h.ProductID, h.Stock, h.SalePrice, h.SoldUnits,
		h.SoldUnitsLast7Days, h.SoldUnitsLast30Days, h.TotalSoldUnits,
		h.BillingLast7Days, h.BillingLast30Days, h.TotalBilling, h.SuggestedPrice,
	}
}
