// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package targetstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// Providers satisfies provider.Store against the redesigned target store.
type Providers struct {
	pool *Pool
}

// NewProviders constructs a Providers store.
func NewProviders(pool *Pool) *Providers {
	return &Providers{pool: pool}
}

func scanProvider(r pgx.Row) (targetmodel.Provider, bool, error) {
	var p targetmodel.Provider
	err := r.Scan(&p.ID, &p.Name, &p.ExternalID, &p.Verified, &p.PlatformCountryID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return targetmodel.Provider{}, false, nil
	}
	if err != nil {
		return targetmodel.Provider{}, false, err
	}
	return p, true, nil
}

func (s *Providers) FindByNameAndExternalID(ctx context.Context, name, externalID, platformCountryID string) (targetmodel.Provider, bool, error) {
	const query = `
		SELECT id, name, external_id, verified, platform_country_id, created_at, updated_at
		FROM providers
		WHERE lower(name) = lower($1) AND external_id = $2 AND platform_country_id = $3`
	p, found, err := scanProvider(s.pool.QueryRow(ctx, query, name, externalID, platformCountryID))
	if err != nil {
		return targetmodel.Provider{}, false, migrationerr.TransientStore("targetstore.Providers.FindByNameAndExternalID", err)
	}
	return p, found, nil
}

func (s *Providers) FindByExternalIDAndPlatformCountry(ctx context.Context, externalID, platformCountryID string) (targetmodel.Provider, bool, error) {
	const query = `
		SELECT id, name, external_id, verified, platform_country_id, created_at, updated_at
		FROM providers
		WHERE external_id = $1 AND platform_country_id = $2`
	p, found, err := scanProvider(s.pool.QueryRow(ctx, query, externalID, platformCountryID))
	if err != nil {
		return targetmodel.Provider{}, false, migrationerr.TransientStore("targetstore.Providers.FindByExternalIDAndPlatformCountry", err)
	}
	return p, found, nil
}

func (s *Providers) UpdateVerified(ctx context.Context, id string, verified bool, now time.Time) error {
	const query = `UPDATE providers SET verified = $2, updated_at = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, verified, now); err != nil {
		return migrationerr.TransientStore("targetstore.Providers.UpdateVerified", err)
	}
	return nil
}

func (s *Providers) UpdateExternalIDAndVerified(ctx context.Context, id, externalID string, verified bool, now time.Time) error {
	const query = `UPDATE providers SET external_id = $2, verified = $3, updated_at = $4 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, externalID, verified, now); err != nil {
		return migrationerr.TransientStore("targetstore.Providers.UpdateExternalIDAndVerified", err)
	}
	return nil
}

func (s *Providers) UpdateName(ctx context.Context, id, name string, verified bool, now time.Time) error {
	const query = `UPDATE providers SET name = $2, verified = $3, updated_at = $4 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, name, verified, now); err != nil {
		return migrationerr.TransientStore("targetstore.Providers.UpdateName", err)
	}
	return nil
}

func (s *Providers) Create(ctx context.Context, p targetmodel.Provider) (string, error) {
	const query = `
		INSERT INTO providers (id, name, external_id, verified, platform_country_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, query, p.ID, p.Name, p.ExternalID, p.Verified, p.PlatformCountryID, p.CreatedAt, p.UpdatedAt); err != nil {
		return "", migrationerr.TargetWriteConflict("targetstore.Providers.Create", err)
	}
	return p.ID, nil
}
