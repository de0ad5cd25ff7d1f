// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package multimedia

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

type fakeStore struct {
	existing []targetmodel.Multimedia
	updated  map[string]string
	inserted []targetmodel.Multimedia
}

func newFakeStore(existing ...targetmodel.Multimedia) *fakeStore {
	return &fakeStore{existing: existing, updated: make(map[string]string)}
}

func (f *fakeStore) ExistingForProduct(ctx context.Context, productID string) ([]targetmodel.Multimedia, error) {
	return f.existing, nil
}

func (f *fakeStore) UpdateURL(ctx context.Context, id, originalURL string, now time.Time) error {
	f.updated[id] = originalURL
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, m targetmodel.Multimedia) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func TestNormalizeURLPassesThroughAbsolute(t *testing.T) {
	require.Equal(t, "https://cdn.x/a.png", normalizeURL("https://cdn.x/a.png", "AR"))
}

func TestNormalizeURLPrefixesDefaultHost(t *testing.T) {
	got := normalizeURL("products/b.jpg", "CO")
	require.Equal(t, "https://"+defaultCDNHost+"/products/b.jpg", got)
}

func TestNormalizeURLUsesCountrySpecificHostAndTrimsLeadingSlash(t *testing.T) {
	got := normalizeURL("/products/c.mp4", "AR")
	require.Equal(t, "https://"+cdnHosts["AR"]+"/products/c.mp4", got)
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	once := normalizeURL("products/a.jpg", "GT")
	twice := normalizeURL(once, "GT")
	require.Equal(t, once, twice)
}

func TestClassifyTypeBySuffix(t *testing.T) {
	require.Equal(t, "video", classifyType("https://x/clip.mp4", ""))
	require.Equal(t, "image", classifyType("https://x/pic.png", ""))
	require.Equal(t, "image", classifyType("https://x/unknown", ""))
}

func TestReconcileNoExistingRowsInsertsAll(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	gallery := []sourcemodel.GalleryEntry{
		{URL: "products/a.jpg"},
		{URL: "products/b.mp4"},
	}
	n, err := r.Reconcile(context.Background(), "prod-1", "CO", gallery)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, store.inserted, 2)
	require.Equal(t, targetmodel.MediaImage, store.inserted[0].Type)
	require.Equal(t, targetmodel.MediaVideo, store.inserted[1].Type)
}

func TestReconcileUpdatesExistingThenAppendsRemainder(t *testing.T) {
	store := newFakeStore(targetmodel.Multimedia{ID: "m1", ProductID: "prod-1"})
	r := New(store)

	gallery := []sourcemodel.GalleryEntry{
		{URL: "products/a.jpg"},
		{URL: "products/b.jpg"},
	}
	n, err := r.Reconcile(context.Background(), "prod-1", "CO", gallery)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Contains(t, store.updated, "m1")
	require.Len(t, store.inserted, 1)
}

func TestReconcileSkipsEntriesWithNoUsableURL(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	gallery := []sourcemodel.GalleryEntry{{}}
	n, err := r.Reconcile(context.Background(), "prod-1", "CO", gallery)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, store.inserted)
}

func TestReconcilePrefersURLOverOtherFields(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	gallery := []sourcemodel.GalleryEntry{
		{URL: "products/primary.jpg", OwnImage: "products/secondary.jpg"},
	}
	_, err := r.Reconcile(context.Background(), "prod-1", "CO", gallery)
	require.NoError(t, err)
	require.Contains(t, store.inserted[0].URL, "primary.jpg")
}
