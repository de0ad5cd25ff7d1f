// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package provider implements the Provider Reconciler (C3): given a
// source product's embedded provider blob, always return a stable
// target provider id, handling natural-key collisions and missing or
// invalid data via a deterministic fallback (spec.md §4.5). Modeled as
// the small state machine spec.md §9 calls for — lookup-by-name-and-
// external, detect collision, update-safe-fields-only or update-all;
// lookup-by-external, update-name; create-new; fallback — rather than
// nested conditionals.
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// PlatformCountryResolver is the subset of the reference resolver (C2)
// the reconciler needs.
type PlatformCountryResolver interface {
	ResolvePlatformCountry(ctx context.Context, platformName, countryCode string) (string, error)
}

// Store is the subset of target-store reads/writes the reconciler needs.
type Store interface {
	FindByNameAndExternalID(ctx context.Context, name, externalID, platformCountryID string) (targetmodel.Provider, bool, error)
	FindByExternalIDAndPlatformCountry(ctx context.Context, externalID, platformCountryID string) (targetmodel.Provider, bool, error)
	UpdateVerified(ctx context.Context, id string, verified bool, now time.Time) error
	UpdateExternalIDAndVerified(ctx context.Context, id, externalID string, verified bool, now time.Time) error
	UpdateName(ctx context.Context, id, name string, verified bool, now time.Time) error
	Create(ctx context.Context, p targetmodel.Provider) (string, error)
}

// Reconciler resolves a stable provider id for each source product.
type Reconciler struct {
	store Store
	refs  PlatformCountryResolver
	now   func() time.Time
}

// New constructs a Reconciler.
func New(store Store, refs PlatformCountryResolver) *Reconciler {
	return &Reconciler{store: store, refs: refs, now: time.Now}
}

// Resolve always returns a valid provider id, never an error that leaves
// the caller without one — per spec.md §4.5, it falls back internally
// rather than propagating reference-resolution failures upward, except
// when even the fallback path cannot resolve a platform-country (in
// which case the product itself cannot be migrated, so the error is
// surfaced) or a target-store call fails. created reports whether a new
// Provider row was inserted, for chunk-level metrics (spec.md §4.2
// providersCreated).
func (r *Reconciler) Resolve(ctx context.Context, p sourcemodel.Product) (id string, created bool, err error) {
	if !p.Provider.Present || p.Provider.ExternalID == "" {
		return r.createFallbackProvider(ctx, p)
	}

	platformCountryID, err := r.refs.ResolvePlatformCountry(ctx, p.PlatformName, p.CountryCode)
	if err != nil {
		return r.createFallbackProvider(ctx, p)
	}

	name := p.Provider.Name
	if name == "" {
		name = "null"
	}
	externalID := p.Provider.ExternalID
	verified := p.Provider.Verified
	now := r.now()

	// Step 4: lookup by (name ILIKE, externalId).
	existing, found, err := r.store.FindByNameAndExternalID(ctx, name, externalID, platformCountryID)
	if err != nil {
		return "", false, migrationerr.TransientStore("provider.Resolve", err)
	}
	if found {
		if existing.ExternalID != externalID {
			// Assigning externalID to this provider would change its
			// natural key; check whether a *different* provider already
			// holds (externalID, platformCountryID).
			collision, collFound, err := r.store.FindByExternalIDAndPlatformCountry(ctx, externalID, platformCountryID)
			if err != nil {
				return "", false, migrationerr.TransientStore("provider.Resolve", err)
			}
			if collFound && collision.ID != existing.ID {
				if err := r.store.UpdateVerified(ctx, existing.ID, verified, now); err != nil {
					return "", false, migrationerr.TransientStore("provider.Resolve", err)
				}
				return existing.ID, false, nil
			}
		}
		if err := r.store.UpdateExternalIDAndVerified(ctx, existing.ID, externalID, verified, now); err != nil {
			return "", false, migrationerr.TransientStore("provider.Resolve", err)
		}
		return existing.ID, false, nil
	}

	// Step 5: lookup by (externalId, platformCountryId).
	existing, found, err = r.store.FindByExternalIDAndPlatformCountry(ctx, externalID, platformCountryID)
	if err != nil {
		return "", false, migrationerr.TransientStore("provider.Resolve", err)
	}
	if found {
		if err := r.store.UpdateName(ctx, existing.ID, name, verified, now); err != nil {
			return "", false, migrationerr.TransientStore("provider.Resolve", err)
		}
		return existing.ID, false, nil
	}

	// Step 6: create new.
	newID, err := r.store.Create(ctx, targetmodel.Provider{
		ID:                uuid.NewString(),
		Name:              name,
		ExternalID:        externalID,
		Verified:          verified,
		PlatformCountryID: platformCountryID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return "", false, migrationerr.TransientStore("provider.Resolve", err)
	}
	return newID, true, nil
}

// createFallbackProvider creates (or returns an existing) synthetic
// provider named "null" keyed by the product's own externalId, per
// spec.md §4.5.
func (r *Reconciler) createFallbackProvider(ctx context.Context, p sourcemodel.Product) (string, bool, error) {
	platformCountryID, err := r.refs.ResolvePlatformCountry(ctx, p.PlatformName, p.CountryCode)
	if err != nil {
		return "", false, migrationerr.ReferenceMissing("provider.createFallbackProvider", "cannot resolve platform-country for fallback provider: %v", err)
	}

	existing, found, err := r.store.FindByExternalIDAndPlatformCountry(ctx, p.ExternalID, platformCountryID)
	if err != nil {
		return "", false, migrationerr.TransientStore("provider.createFallbackProvider", err)
	}
	if found {
		return existing.ID, false, nil
	}

	now := r.now()
	id, err := r.store.Create(ctx, targetmodel.Provider{
		ID:                uuid.NewString(),
		Name:              "null",
		ExternalID:        p.ExternalID,
		Verified:          false,
		PlatformCountryID: platformCountryID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return "", false, migrationerr.TransientStore("provider.createFallbackProvider", err)
	}
	return id, true, nil
}
