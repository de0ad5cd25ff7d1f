// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package reference implements the Reference Resolver (C2): mapping
// (platform, country) to a platform-country id, and category names to
// base-category ids, each backed by an in-process, process-lifetime,
// read-through cache, since the tables behind them are read-only for the
// duration of a run (spec.md §4.4, §5).
package reference

import (
	"context"
	"strings"
	"sync"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// categorySynonyms is the fixed small table of hand-coded synonym
// mappings from spec.md §4.4 step 5.
var categorySynonyms = map[string]string{
	"bienestar y salud": "salud",
}

// Store is the subset of target-store reads the resolver needs. It is an
// interface so the resolver can be unit tested without a live database.
type Store interface {
	// FindPlatformID looks up a platform's id by its normalized token.
	FindPlatformID(ctx context.Context, platformToken string) (id string, found bool, err error)
	// FindCountryByCode looks up a country by its canonical code.
	FindCountryByCode(ctx context.Context, code string) (targetmodel.Country, bool, error)
	// FindPlatformCountry looks up a platform-country by (platformId, countryId).
	FindPlatformCountry(ctx context.Context, platformID, countryID string) (targetmodel.PlatformCountry, bool, error)
	// AllBaseCategories returns the full closed universe of base categories.
	AllBaseCategories(ctx context.Context) ([]targetmodel.BaseCategory, error)
	// FindPlatformCategoryBaseID looks up a platform-specific category
	// mapping's base-category id for (platformId, categoryName).
	FindPlatformCategoryBaseID(ctx context.Context, platformID, categoryName string) (id string, found bool, err error)
	// FallbackBaseCategoryID is the hard-coded "other" base category id.
	FallbackBaseCategoryID() string
}

// Resolver caches reference lookups for the lifetime of a worker process.
type Resolver struct {
	store Store

	countryMu    sync.RWMutex
	countryCache map[string]targetmodel.Country // keyed by code

	platformCountryMu    sync.RWMutex
	platformCountryCache map[string]targetmodel.PlatformCountry // keyed by platformId|countryId

	categoryOnce  sync.Once
	categoryErr   error
	categoryMu    sync.RWMutex
	byExactName   map[string]string // lowercased name -> id
	byID          map[string]bool   // id existence check
	namesForMatch []categoryName    // for substring containment matching
}

type categoryName struct {
	id      string
	name    string
	lowered string
}

// New constructs a Resolver backed by store.
func New(store Store) *Resolver {
	return &Resolver{
		store:                store,
		countryCache:         make(map[string]targetmodel.Country),
		platformCountryCache: make(map[string]targetmodel.PlatformCountry),
		byExactName:          make(map[string]string),
		byID:                 make(map[string]bool),
	}
}

// ResolvePlatformCountry maps (platformName, countryCode) to a
// platform-country id, per spec.md §4.4.
func (r *Resolver) ResolvePlatformCountry(ctx context.Context, platformName, countryCode string) (string, error) {
	platformToken, _ := NormalizePlatform(platformName)
	code := NormalizeCountryCode(countryCode)

	platformID, found, err := r.store.FindPlatformID(ctx, platformToken)
	if err != nil {
		return "", migrationerr.TransientStore("resolvePlatformCountry", err)
	}
	if !found {
		return "", migrationerr.ReferenceMissing("resolvePlatformCountry", "no platform for token %q", platformToken)
	}

	country, err := r.resolveCountry(ctx, code)
	if err != nil {
		return "", err
	}

	return r.resolvePlatformCountryID(ctx, platformID, country.ID)
}

func (r *Resolver) resolveCountry(ctx context.Context, code string) (targetmodel.Country, error) {
	r.countryMu.RLock()
	c, ok := r.countryCache[code]
	r.countryMu.RUnlock()
	if ok {
		return c, nil
	}

	c, found, err := r.store.FindCountryByCode(ctx, code)
	if err != nil {
		return targetmodel.Country{}, migrationerr.TransientStore("resolveCountry", err)
	}
	if !found {
		return targetmodel.Country{}, migrationerr.ReferenceMissing("resolveCountry", "no country for code %q", code)
	}

	r.countryMu.Lock()
	r.countryCache[code] = c
	r.countryMu.Unlock()
	return c, nil
}

func (r *Resolver) resolvePlatformCountryID(ctx context.Context, platformID, countryID string) (string, error) {
	key := platformID + "|" + countryID
	r.platformCountryMu.RLock()
	pc, ok := r.platformCountryCache[key]
	r.platformCountryMu.RUnlock()
	if ok {
		return pc.ID, nil
	}

	pc, found, err := r.store.FindPlatformCountry(ctx, platformID, countryID)
	if err != nil {
		return "", migrationerr.TransientStore("resolvePlatformCountryID", err)
	}
	if !found {
		return "", migrationerr.ReferenceMissing("resolvePlatformCountryID", "no platform-country for platform=%q country=%q", platformID, countryID)
	}

	r.platformCountryMu.Lock()
	r.platformCountryCache[key] = pc
	r.platformCountryMu.Unlock()
	return pc.ID, nil
}

func (r *Resolver) loadCategoryCache(ctx context.Context) error {
	r.categoryOnce.Do(func() {
		cats, err := r.store.AllBaseCategories(ctx)
		if err != nil {
			r.categoryErr = migrationerr.TransientStore("loadCategoryCache", err)
			return
		}
		r.categoryMu.Lock()
		defer r.categoryMu.Unlock()
		for _, c := range cats {
			lowered := strings.ToLower(strings.TrimSpace(c.Name))
			r.byExactName[lowered] = c.ID
			r.byID[c.ID] = true
			r.namesForMatch = append(r.namesForMatch, categoryName{id: c.ID, name: c.Name, lowered: lowered})
		}
	})
	return r.categoryErr
}

// ResolveBaseCategoryByName implements the six-step fallback cascade from
// spec.md §4.4.
func (r *Resolver) ResolveBaseCategoryByName(ctx context.Context, name, platform string) (string, error) {
	if err := r.loadCategoryCache(ctx); err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(name)
	lowered := strings.ToLower(trimmed)

	r.categoryMu.RLock()
	// 1 & 2: exact / case-normalized match (the cache already stores
	// lowercased keys, so these two strategies collapse into one lookup).
	if id, ok := r.byExactName[lowered]; ok {
		r.categoryMu.RUnlock()
		return id, nil
	}
	r.categoryMu.RUnlock()

	// 3: platform-specific category mapping.
	if platform != "" && trimmed != "" {
		platformToken, _ := NormalizePlatform(platform)
		platformID, found, err := r.store.FindPlatformID(ctx, platformToken)
		if err == nil && found {
			if id, ok, err := r.store.FindPlatformCategoryBaseID(ctx, platformID, trimmed); err == nil && ok {
				return id, nil
			}
		}
	}

	// 4: substring containment either way against cached names.
	if lowered != "" {
		r.categoryMu.RLock()
		for _, c := range r.namesForMatch {
			if strings.Contains(c.lowered, lowered) || strings.Contains(lowered, c.lowered) {
				r.categoryMu.RUnlock()
				return c.id, nil
			}
		}
		r.categoryMu.RUnlock()
	}

	// 5: fixed synonym table.
	if synonym, ok := categorySynonyms[lowered]; ok {
		r.categoryMu.RLock()
		if id, ok := r.byExactName[synonym]; ok {
			r.categoryMu.RUnlock()
			return id, nil
		}
		r.categoryMu.RUnlock()
	}

	// 6: hard-coded fallback.
	return r.store.FallbackBaseCategoryID(), nil
}

// ResolveValidBaseCategoryID implements spec.md §4.4's combinator: prefer
// an existing id if it's still present in the cache, else resolve by
// name, else fall back.
func (r *Resolver) ResolveValidBaseCategoryID(ctx context.Context, existingID, name, platform string) (string, error) {
	if existingID != "" {
		if err := r.loadCategoryCache(ctx); err != nil {
			return "", err
		}
		r.categoryMu.RLock()
		ok := r.byID[existingID]
		r.categoryMu.RUnlock()
		if ok {
			return existingID, nil
		}
	}
	if name != "" {
		return r.ResolveBaseCategoryByName(ctx, name, platform)
	}
	return r.store.FallbackBaseCategoryID(), nil
}
