// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package multimedia implements the Multimedia Reconciler (C6): parse a
// product's gallery blob, normalize URLs, and either update existing
// rows in order or append missing ones (spec.md §4.8).
package multimedia

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// batchSize bounds append/update sub-batches (spec.md §4.8 step 5).
const batchSize = 20

// Store is the subset of target-store reads/writes the reconciler needs.
type Store interface {
	ExistingForProduct(ctx context.Context, productID string) ([]targetmodel.Multimedia, error)
	UpdateURL(ctx context.Context, id, originalURL string, now time.Time) error
	Insert(ctx context.Context, m targetmodel.Multimedia) error
}

// Reconciler reconciles a product's gallery against its target Multimedia rows.
type Reconciler struct {
	store Store
	now   func() time.Time
}

// New constructs a Reconciler.
func New(store Store) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// valid is a gallery entry with a resolved usable URL.
type valid struct {
	url  string
	kind string
}

// Reconcile normalizes gallery and updates or appends target
// Multimedia rows for productID, returning the count of rows touched.
func (r *Reconciler) Reconcile(ctx context.Context, productID, country string, gallery []sourcemodel.GalleryEntry) (int, error) {
	valids := parseGallery(gallery, country)
	if len(valids) == 0 {
		return 0, nil
	}

	existing, err := r.store.ExistingForProduct(ctx, productID)
	if err != nil {
		return 0, migrationerr.TransientStore("multimedia.Reconcile", err)
	}

	now := r.now()
	touched := 0

	overlap := len(existing)
	if len(valids) < overlap {
		overlap = len(valids)
	}

	for i := 0; i < overlap; i += batchSize {
		end := i + batchSize
		if end > overlap {
			end = overlap
		}
		for j := i; j < end; j++ {
			if err := r.store.UpdateURL(ctx, existing[j].ID, valids[j].url, now); err != nil {
				continue
			}
			touched++
		}
	}

	remainder := valids[overlap:]
	for i := 0; i < len(remainder); i += batchSize {
		end := i + batchSize
		if end > len(remainder) {
			end = len(remainder)
		}
		for _, v := range remainder[i:end] {
			m := targetmodel.Multimedia{
				ID:          uuid.NewString(),
				ProductID:   productID,
				URL:         v.url,
				OriginalURL: v.url,
				Type:        targetmodel.MultimediaType(v.kind),
				Extracted:   false,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := r.store.Insert(ctx, m); err != nil {
				continue
			}
			touched++
		}
	}

	return touched, nil
}

func parseGallery(gallery []sourcemodel.GalleryEntry, country string) []valid {
	out := make([]valid, 0, len(gallery))
	for _, g := range gallery {
		raw, ok := bestURL(g.URL, g.OwnImage, g.SourceURL, g.OriginalURL)
		if !ok {
			continue
		}
		normalized := normalizeURL(raw, country)
		out = append(out, valid{url: normalized, kind: classifyType(normalized, g.Type)})
	}
	return out
}
