// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package legacystore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

// StoreBackend queries the live legacy relational store.
type StoreBackend struct {
	pool *pgxpool.Pool
}

// NewStoreBackend connects to the legacy store using the connection
// string's own pool settings (statement/idle/lock-wait timeouts are
// expected to be encoded in the DSN per spec.md §5's recommendation of
// 5m/10m/2m, configured by the external collaborator that builds the
// DSN — out of scope for this package per spec.md §1).
func NewStoreBackend(ctx context.Context, dsn string) (*StoreBackend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, migrationerr.Configuration("legacystore.NewStoreBackend", "parsing legacy database DSN: %v", err)
	}
	// Read-only workload from a handful of workers; keep the pool small
	// per spec.md §5 ("1-5 connections").
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, migrationerr.TransientStore("legacystore.NewStoreBackend", err)
	}
	return &StoreBackend{pool: pool}, nil
}

func (s *StoreBackend) Close() {
	s.pool.Close()
}

// Read returns products ordered by (createdAt asc, sourceId asc) for
// stable pagination, excluding platformName == "rocketfy" per spec.md §4.3.
func (s *StoreBackend) Read(ctx context.Context, skip, take int) ([]sourcemodel.Product, error) {
	const query = `
		SELECT source_id, external_id, name, description, platform_name, country_code,
		       price, total_sold_units, sold_units_last_7_days, sold_units_last_30_days,
		       total_billing, billing_last_7_days, billing_last_30_days, suggested_price,
		       stock, variations_amount, score, visible,
		       categories_json, provider_json, gallery_json, created_at, updated_at
		FROM legacy_products
		WHERE platform_name <> 'rocketfy'
		ORDER BY created_at ASC, source_id ASC
		OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, skip, take)
	if err != nil {
		return nil, migrationerr.TransientStore("legacystore.Read", err)
	}
	defer rows.Close()

	var out []sourcemodel.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, migrationerr.TransientStore("legacystore.Read", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, migrationerr.TransientStore("legacystore.Read", err)
	}
	return out, nil
}

// Count returns the number of eligible legacy products.
func (s *StoreBackend) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM legacy_products WHERE platform_name <> 'rocketfy'`).Scan(&n)
	if err != nil {
		return 0, migrationerr.TransientStore("legacystore.Count", err)
	}
	return n, nil
}

// HistoryFor returns every source history row for the given product key.
func (s *StoreBackend) HistoryFor(ctx context.Context, externalProductID, platformName, countryCode string) ([]sourcemodel.History, error) {
	const query = `
		SELECT external_product_id, platform_name, country_code, date, stock, sale_price,
		       sold_units, sales_amount, stock_adjustment, stock_adjustment_reason
		FROM legacy_history
		WHERE external_product_id = $1 AND platform_name = $2 AND country_code = $3`

	rows, err := s.pool.Query(ctx, query, externalProductID, platformName, countryCode)
	if err != nil {
		return nil, migrationerr.TransientStore("legacystore.HistoryFor", err)
	}
	defer rows.Close()

	var out []sourcemodel.History
	for rows.Next() {
		var h sourcemodel.History
		var reason *string
		if err := rows.Scan(&h.ExternalProductID, &h.PlatformName, &h.CountryCode, &h.Date, &h.Stock,
			&h.SalePrice, &h.SoldUnits, &h.SalesAmount, &h.StockAdjustment, &reason); err != nil {
			return nil, migrationerr.TransientStore("legacystore.HistoryFor", err)
		}
		if reason != nil {
			h.StockAdjustmentReason = *reason
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, migrationerr.TransientStore("legacystore.HistoryFor", err)
	}
	return out, nil
}

// scannable is satisfied by pgx.Rows; kept narrow so scanProduct can be
// exercised against a fake in tests without a live connection.
type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(r scannable) (sourcemodel.Product, error) {
	var p sourcemodel.Product
	var categoriesJSON, providerJSON, galleryJSON []byte

	err := r.Scan(&p.SourceID, &p.ExternalID, &p.Name, &p.Description, &p.PlatformName, &p.CountryCode,
		&p.Price, &p.TotalSoldUnits, &p.SoldUnitsLast7Days, &p.SoldUnitsLast30Days,
		&p.TotalBilling, &p.BillingLast7Days, &p.BillingLast30Days, &p.SuggestedPrice,
		&p.Stock, &p.VariationsAmount, &p.Score, &p.Visible,
		&categoriesJSON, &providerJSON, &galleryJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("scan product row: %w", err)
	}

	if err := decodeCategories(categoriesJSON, &p.Categories); err != nil {
		return p, err
	}
	p.Provider = decodeProvider(providerJSON)
	p.Gallery = decodeGallery(galleryJSON)

	return p, nil
}
