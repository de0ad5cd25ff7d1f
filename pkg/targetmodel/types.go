// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package targetmodel defines the redesigned target-store entities
// (semantic shapes, not literal schema) described in spec.md §3.
package targetmodel

import "time"

// ProductStatus is the closed enum for Product.Status.
type ProductStatus string

const (
	StatusActive   ProductStatus = "ACTIVE"
	StatusInactive ProductStatus = "INACTIVE"
)

// MultimediaType is the closed enum for Multimedia.Type.
type MultimediaType string

const (
	MediaImage MultimediaType = "image"
	MediaVideo MultimediaType = "video"
)

// PlatformCountry is read-only to this system; it is the primary
// partition key for nearly every other entity.
type PlatformCountry struct {
	ID         string
	PlatformID string
	CountryID  string
}

// Country is read-only to this system.
type Country struct {
	ID   string
	Code string
}

// BaseCategory is read-only to this system; the universe is closed.
type BaseCategory struct {
	ID   string
	Name string
}

// Provider is unique by (ExternalID, PlatformCountryID).
type Provider struct {
	ID                string
	Name              string
	ExternalID        string
	Verified          bool
	PlatformCountryID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Product is unique by (ExternalID, PlatformCountryID); ID equals the
// source's SourceID (invariant I1).
type Product struct {
	ID          string
	ExternalID  string
	Name        string
	Description string

	Price float64

	TotalSoldUnits      int64
	SoldUnitsLast7Days  int64
	SoldUnitsLast30Days int64
	TotalBilling        float64
	BillingLast7Days    float64
	BillingLast30Days   float64
	SuggestedPrice      float64

	Stock            int64
	VariationsAmount int64
	Score            float64

	Status ProductStatus

	PlatformCountryID string
	ProviderID        string
	BaseCategoryID    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// History is effectively unique by (ProductID, Date), enforced only by
// the gap-fill pre-check rather than a database constraint (spec.md §3).
type History struct {
	ID        string
	Date      string
	ProductID string

	Stock     int64
	SalePrice float64
	SoldUnits int64

	SoldUnitsLast7Days  int64
	SoldUnitsLast30Days int64
	TotalSoldUnits      int64
	BillingLast7Days    float64
	BillingLast30Days   float64
	TotalBilling        float64
	SuggestedPrice      float64
}

// Multimedia represents one gallery entry attached to a product. The
// Extracted flag is flipped by an external service, never by this engine.
type Multimedia struct {
	ID          string
	ProductID   string
	URL         string
	OriginalURL string
	Type        MultimediaType
	Extracted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
