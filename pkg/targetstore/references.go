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

// References satisfies reference.Store against the read-only reference
// tables (platforms, countries, platform-countries, base categories,
// platform category mappings).
type References struct {
	pool          *Pool
	fallbackCatID string
}

// NewReferences constructs a References store. fallbackBaseCategoryID is
// the hard-coded "other" base category id (spec.md §4.4 step 6), supplied
// by the caller since it is an environment/deployment constant, not
// something this package can discover.
func NewReferences(pool *Pool, fallbackBaseCategoryID string) *References {
	return &References{pool: pool, fallbackCatID: fallbackBaseCategoryID}
}

func (s *References) FindPlatformID(ctx context.Context, platformToken string) (string, bool, error) {
	const query = `SELECT id FROM platforms WHERE token = $1`
	var id string
	err := s.pool.QueryRow(ctx, query, platformToken).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, migrationerr.TransientStore("targetstore.References.FindPlatformID", err)
	}
	return id, true, nil
}

func (s *References) FindCountryByCode(ctx context.Context, code string) (targetmodel.Country, bool, error) {
	const query = `SELECT id, code FROM countries WHERE code = $1`
	var c targetmodel.Country
	err := s.pool.QueryRow(ctx, query, code).Scan(&c.ID, &c.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return targetmodel.Country{}, false, nil
	}
	if err != nil {
		return targetmodel.Country{}, false, migrationerr.TransientStore("targetstore.References.FindCountryByCode", err)
	}
	return c, true, nil
}

func (s *References) FindPlatformCountry(ctx context.Context, platformID, countryID string) (targetmodel.PlatformCountry, bool, error) {
	const query = `SELECT id, platform_id, country_id FROM platform_countries WHERE platform_id = $1 AND country_id = $2`
	var pc targetmodel.PlatformCountry
	err := s.pool.QueryRow(ctx, query, platformID, countryID).Scan(&pc.ID, &pc.PlatformID, &pc.CountryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return targetmodel.PlatformCountry{}, false, nil
	}
	if err != nil {
		return targetmodel.PlatformCountry{}, false, migrationerr.TransientStore("targetstore.References.FindPlatformCountry", err)
	}
	return pc, true, nil
}

func (s *References) AllBaseCategories(ctx context.Context) ([]targetmodel.BaseCategory, error) {
	const query = `SELECT id, name FROM base_categories`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, migrationerr.TransientStore("targetstore.References.AllBaseCategories", err)
	}
	defer rows.Close()

	var out []targetmodel.BaseCategory
	for rows.Next() {
		var c targetmodel.BaseCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, migrationerr.TransientStore("targetstore.References.AllBaseCategories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, migrationerr.TransientStore("targetstore.References.AllBaseCategories", err)
	}
	return out, nil
}

func (s *References) FindPlatformCategoryBaseID(ctx context.Context, platformID, categoryName string) (string, bool, error) {
	const query = `
		SELECT base_category_id FROM platform_category_mappings
		WHERE platform_id = $1 AND lower(category_name) = lower($2)`
	var id string
	err := s.pool.QueryRow(ctx, query, platformID, categoryName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, migrationerr.TransientStore("targetstore.References.FindPlatformCategoryBaseID", err)
	}
	return id, true, nil
}

func (s *References) FallbackBaseCategoryID() string {
	return s.fallbackCatID
}
