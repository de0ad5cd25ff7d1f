// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package targetstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// Products satisfies product.Store against the redesigned target store.
type Products struct {
	pool *Pool
}

// NewProducts constructs a Products store.
func NewProducts(pool *Pool) *Products {
	return &Products{pool: pool}
}

func (s *Products) FindByID(ctx context.Context, id string) (targetmodel.Product, bool, error) {
	const query = `
		SELECT id, external_id, name, description, price,
		       total_sold_units, sold_units_last_7_days, sold_units_last_30_days,
		       total_billing, billing_last_7_days, billing_last_30_days, suggested_price,
		       stock, variations_amount, score, status,
		       platform_country_id, provider_id, base_category_id, created_at, updated_at
		FROM products WHERE id = $1`
	var p targetmodel.Product
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.ExternalID, &p.Name, &p.Description, &p.Price,
		&p.TotalSoldUnits, &p.SoldUnitsLast7Days, &p.SoldUnitsLast30Days,
		&p.TotalBilling, &p.BillingLast7Days, &p.BillingLast30Days, &p.SuggestedPrice,
		&p.Stock, &p.VariationsAmount, &p.Score, &p.Status,
		&p.PlatformCountryID, &p.ProviderID, &p.BaseCategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return targetmodel.Product{}, false, nil
	}
	if err != nil {
		return targetmodel.Product{}, false, migrationerr.TransientStore("targetstore.Products.FindByID", err)
	}
	return p, true, nil
}

func (s *Products) Insert(ctx context.Context, p targetmodel.Product) error {
	const query = `
		INSERT INTO products (
			id, external_id, name, description, price,
			total_sold_units, sold_units_last_7_days, sold_units_last_30_days,
			total_billing, billing_last_7_days, billing_last_30_days, suggested_price,
			stock, variations_amount, score, status,
			platform_country_id, provider_id, base_category_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.ExternalID, p.Name, p.Description, p.Price,
		p.TotalSoldUnits, p.SoldUnitsLast7Days, p.SoldUnitsLast30Days,
		p.TotalBilling, p.BillingLast7Days, p.BillingLast30Days, p.SuggestedPrice,
		p.Stock, p.VariationsAmount, p.Score, p.Status,
		p.PlatformCountryID, p.ProviderID, p.BaseCategoryID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return migrationerr.TargetWriteConflict("targetstore.Products.Insert", err)
	}
	return nil
}

func (s *Products) Update(ctx context.Context, p targetmodel.Product) error {
	const query = `
		UPDATE products SET
			name = $2, description = $3, price = $4,
			total_sold_units = $5, sold_units_last_7_days = $6, sold_units_last_30_days = $7,
			total_billing = $8, billing_last_7_days = $9, billing_last_30_days = $10, suggested_price = $11,
			stock = $12, variations_amount = $13, score = $14, status = $15,
			provider_id = $16, base_category_id = $17, updated_at = $18
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Price,
		p.TotalSoldUnits, p.SoldUnitsLast7Days, p.SoldUnitsLast30Days,
		p.TotalBilling, p.BillingLast7Days, p.BillingLast30Days, p.SuggestedPrice,
		p.Stock, p.VariationsAmount, p.Score, p.Status,
		p.ProviderID, p.BaseCategoryID, p.UpdatedAt,
	)
	if err != nil {
		return migrationerr.TargetWriteConflict("targetstore.Products.Update", err)
	}
	return nil
}
