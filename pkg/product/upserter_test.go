// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package product

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

type fakeStore struct {
	products map[string]targetmodel.Product
	inserts  int
	updates  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[string]targetmodel.Product)}
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (targetmodel.Product, bool, error) {
	p, ok := f.products[id]
	return p, ok, nil
}

func (f *fakeStore) Insert(ctx context.Context, p targetmodel.Product) error {
	f.inserts++
	f.products[p.ID] = p
	return nil
}

func (f *fakeStore) Update(ctx context.Context, p targetmodel.Product) error {
	f.updates++
	f.products[p.ID] = p
	return nil
}

func sampleSource() sourcemodel.Product {
	return sourcemodel.Product{
		SourceID:     "src-1",
		ExternalID:   "ext-1",
		Name:         "Widget",
		Description:  "A widget",
		PlatformName: "dropi",
		CountryCode:  "CO",
		Price:        9.99,
		Stock:        10,
		Visible:      true,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsertInsertsNewProduct(t *testing.T) {
	store := newFakeStore()
	u := New(store)

	res, err := u.Upsert(context.Background(), sampleSource(), "prov-1", "pc-1", "cat-1")
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "src-1", res.ProductID)

	p := store.products["src-1"]
	require.Equal(t, targetmodel.StatusActive, p.Status)
	require.Equal(t, "Widget", p.Name)
	require.Equal(t, sampleSource().CreatedAt, p.CreatedAt)
}

func TestUpsertDefaultsEmptyName(t *testing.T) {
	store := newFakeStore()
	u := New(store)

	src := sampleSource()
	src.Name = ""
	res, err := u.Upsert(context.Background(), src, "prov-1", "pc-1", "cat-1")
	require.NoError(t, err)
	require.Equal(t, defaultName, store.products[res.ProductID].Name)
}

func TestUpsertInactiveWhenNotVisible(t *testing.T) {
	store := newFakeStore()
	u := New(store)

	src := sampleSource()
	src.Visible = false
	res, err := u.Upsert(context.Background(), src, "prov-1", "pc-1", "cat-1")
	require.NoError(t, err)
	require.Equal(t, targetmodel.StatusInactive, store.products[res.ProductID].Status)
}

func TestUpsertUpdatesExistingChangedProduct(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.products["src-1"] = targetmodel.Product{
		ID: "src-1", ExternalID: "ext-1", Name: "Old Name", Price: 5.0,
		Status: targetmodel.StatusInactive, PlatformCountryID: "pc-1",
		ProviderID: "prov-1", BaseCategoryID: "cat-1",
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	u := New(store)

	res, err := u.Upsert(context.Background(), sampleSource(), "prov-1", "pc-1", "cat-1")
	require.NoError(t, err)
	require.False(t, res.Created)
	require.True(t, res.Updated)

	p := store.products["src-1"]
	require.Equal(t, "Widget", p.Name)
	require.Equal(t, createdAt, p.CreatedAt, "createdAt must be preserved across an update")
	require.True(t, p.UpdatedAt.After(createdAt))
}

func TestUpsertSkipsWriteWhenUnchanged(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := sampleSource()
	store.products["src-1"] = targetmodel.Product{
		ID: "src-1", ExternalID: "ext-1", Name: src.Name, Description: src.Description,
		Price: src.Price, Stock: src.Stock, Status: targetmodel.StatusActive,
		PlatformCountryID: "pc-1", ProviderID: "prov-1", BaseCategoryID: "cat-1",
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	u := New(store)

	res, err := u.Upsert(context.Background(), src, "prov-1", "pc-1", "cat-1")
	require.NoError(t, err)
	require.False(t, res.Created)
	require.False(t, res.Updated, "unchanged product must not trigger a write")
	require.Equal(t, 0, store.updates, "no update call should have been made")
	require.Equal(t, createdAt, store.products["src-1"].UpdatedAt, "updatedAt must not bump when nothing changed")
}
