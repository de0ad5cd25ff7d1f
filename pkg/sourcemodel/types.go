// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package sourcemodel defines the uniform record shapes read out of
// the legacy store or a snapshot file, independent of which backend
// produced them (see spec.md §4.3, Source Reader / C1).
package sourcemodel

import "time"

// Category is one entry in a product's ordered category list.
type Category struct {
	Name       string
	ExternalID string
}

// Provider is the embedded provider blob on a source product. Any field
// may be zero-valued or the blob itself may be entirely absent; the
// provider reconciler (C3) is responsible for making sense of that.
type Provider struct {
	Name       string
	ExternalID string
	Verified   bool

	// Present is true only when a provider blob was parsed and carried a
	// non-empty external id. An absent blob, an unparseable blob, and a
	// blob without an external id all leave it false, so it does not
	// tell those cases apart; the reconciler sends all of them to the
	// fallback provider.
	Present bool
}

// GalleryEntry is one entry in a product's ordered gallery list.
type GalleryEntry struct {
	URL          string
	SourceURL    string
	OwnImage     string
	OriginalURL  string
	Type         string
}

// Product is a snapshot of a legacy product, in the uniform shape both
// Source Reader backends (store and snapshot) must produce.
type Product struct {
	SourceID    string
	ExternalID  string
	Name        string
	Description string

	PlatformName string
	CountryCode  string

	Price float64

	TotalSoldUnits     int64
	SoldUnitsLast7Days  int64
	SoldUnitsLast30Days int64
	TotalBilling        float64
	BillingLast7Days     float64
	BillingLast30Days    float64
	SuggestedPrice       float64

	Stock            int64
	VariationsAmount int64
	Score            float64
	Visible          bool

	Categories []Category
	Provider   Provider
	Gallery    []GalleryEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// History is one source time-series row for a product.
type History struct {
	ExternalProductID     string
	PlatformName          string
	CountryCode           string
	Date                  string // ISO yyyy-mm-dd, kept as text per spec.md §3
	Stock                 int64
	SalePrice             float64
	SoldUnits             int64
	SalesAmount           float64
	StockAdjustment       bool
	StockAdjustmentReason string
}
