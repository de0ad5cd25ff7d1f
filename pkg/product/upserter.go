// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package product implements the Product Upserter (C4): insert or update
// a target product keyed by stable identity, preserving createdAt on
// update and avoiding a spurious updatedAt bump when nothing actually
// changed (spec.md §4.6, Q4).
package product

import (
	"context"
	"time"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

const defaultName = "Sin nombre"

// Store is the subset of target-store reads/writes the upserter needs.
type Store interface {
	FindByID(ctx context.Context, id string) (targetmodel.Product, bool, error)
	Insert(ctx context.Context, p targetmodel.Product) error
	Update(ctx context.Context, p targetmodel.Product) error
}

// Result reports what the upsert did, for chunk-level metrics aggregation.
type Result struct {
	ProductID string
	Created   bool
	Updated   bool // false when an existing record was found unchanged
}

// Upserter resolves a SourceProduct into a target Product row.
type Upserter struct {
	store Store
	now   func() time.Time
}

// New constructs an Upserter.
func New(store Store) *Upserter {
	return &Upserter{store: store, now: time.Now}
}

// Upsert inserts or updates the target product for src, given its already
// resolved providerId, platformCountryId, and baseCategoryId.
func (u *Upserter) Upsert(ctx context.Context, src sourcemodel.Product, providerID, platformCountryID, baseCategoryID string) (Result, error) {
	name := src.Name
	if name == "" {
		name = defaultName
	}
	status := targetmodel.StatusInactive
	if src.Visible {
		status = targetmodel.StatusActive
	}

	existing, found, err := u.store.FindByID(ctx, src.SourceID)
	if err != nil {
		return Result{}, migrationerr.TransientStore("product.Upsert", err)
	}

	now := u.now()

	if !found {
		createdAt := src.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		p := targetmodel.Product{
			ID:                  src.SourceID,
			ExternalID:          src.ExternalID,
			Name:                name,
			Description:         src.Description,
			Price:               src.Price,
			TotalSoldUnits:      src.TotalSoldUnits,
			SoldUnitsLast7Days:  src.SoldUnitsLast7Days,
			SoldUnitsLast30Days: src.SoldUnitsLast30Days,
			TotalBilling:        src.TotalBilling,
			BillingLast7Days:    src.BillingLast7Days,
			BillingLast30Days:   src.BillingLast30Days,
			SuggestedPrice:      src.SuggestedPrice,
			Stock:               src.Stock,
			VariationsAmount:    src.VariationsAmount,
			Score:               src.Score,
			Status:              status,
			PlatformCountryID:   platformCountryID,
			ProviderID:          providerID,
			BaseCategoryID:      baseCategoryID,
			CreatedAt:           createdAt,
			UpdatedAt:           now,
		}
		if err := u.store.Insert(ctx, p); err != nil {
			return Result{}, migrationerr.TargetWriteConflict("product.Upsert", err)
		}
		return Result{ProductID: p.ID, Created: true}, nil
	}

	updated := targetmodel.Product{
		ID:                  existing.ID,
		ExternalID:          existing.ExternalID,
		Name:                name,
		Description:         src.Description,
		Price:               src.Price,
		TotalSoldUnits:      src.TotalSoldUnits,
		SoldUnitsLast7Days:  src.SoldUnitsLast7Days,
		SoldUnitsLast30Days: src.SoldUnitsLast30Days,
		TotalBilling:        src.TotalBilling,
		BillingLast7Days:    src.BillingLast7Days,
		BillingLast30Days:   src.BillingLast30Days,
		SuggestedPrice:      src.SuggestedPrice,
		Stock:               src.Stock,
		VariationsAmount:    src.VariationsAmount,
		Score:               src.Score,
		Status:              status,
		PlatformCountryID:   existing.PlatformCountryID,
		ProviderID:          providerID,
		BaseCategoryID:      baseCategoryID,
		CreatedAt:           existing.CreatedAt,
		UpdatedAt:           existing.UpdatedAt,
	}

	if mutableFieldsEqual(existing, updated) {
		// Nothing actually changed: skip the write so a re-run against an
		// unchanged source produces zero net updates (spec.md I4), rather
		// than bumping updatedAt on every idempotent pass.
		return Result{ProductID: existing.ID, Created: false, Updated: false}, nil
	}

	updated.UpdatedAt = now
	if err := u.store.Update(ctx, updated); err != nil {
		return Result{}, migrationerr.TargetWriteConflict("product.Upsert", err)
	}
	return Result{ProductID: updated.ID, Created: false, Updated: true}, nil
}

// mutableFieldsEqual compares every field the upsert is allowed to change
// (everything except createdAt, externalId, platformCountryId, id, and
// updatedAt itself), per spec.md §4.6.
func mutableFieldsEqual(a, b targetmodel.Product) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Price == b.Price &&
		a.TotalSoldUnits == b.TotalSoldUnits &&
		a.SoldUnitsLast7Days == b.SoldUnitsLast7Days &&
		a.SoldUnitsLast30Days == b.SoldUnitsLast30Days &&
		a.TotalBilling == b.TotalBilling &&
		a.BillingLast7Days == b.BillingLast7Days &&
		a.BillingLast30Days == b.BillingLast30Days &&
		a.SuggestedPrice == b.SuggestedPrice &&
		a.Stock == b.Stock &&
		a.VariationsAmount == b.VariationsAmount &&
		a.Score == b.Score &&
		a.Status == b.Status &&
		a.ProviderID == b.ProviderID &&
		a.BaseCategoryID == b.BaseCategoryID
}
