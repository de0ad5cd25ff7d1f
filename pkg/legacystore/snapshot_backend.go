// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package legacystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/sylos-labs/catalog-migrator/pkg/logging"
	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

// SnapshotBackend reads products from a pre-exported JSON snapshot file
// instead of querying the legacy store, to avoid load during multi-worker
// runs (spec.md §4.3). The decoded array is cached process-wide on first
// use. The snapshot file carries no history section, so every product
// read through this backend reports no source history (see HistoryFor);
// snapshot mode is a product-only fast path for high-volume runs, not a
// full substitute for the live legacy store.
type SnapshotBackend struct {
	path string

	once     sync.Once
	loadErr  error
	products []sourcemodel.Product
}

// NewSnapshotBackend constructs a backend rooted at the given snapshot path.
// The file is not read until the first call to Read or Count.
func NewSnapshotBackend(path string) (*SnapshotBackend, error) {
	if path == "" {
		return nil, migrationerr.Configuration("legacystore.NewSnapshotBackend", "snapshot path is empty")
	}
	return &SnapshotBackend{path: path}, nil
}

func (s *SnapshotBackend) ensureLoaded() error {
	s.once.Do(func() {
		s.products, s.loadErr = loadSnapshotFile(s.path)
	})
	return s.loadErr
}

func (s *SnapshotBackend) Read(ctx context.Context, skip, take int) ([]sourcemodel.Product, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	if skip >= len(s.products) {
		return nil, nil
	}
	end := skip + take
	if end > len(s.products) {
		end = len(s.products)
	}
	out := make([]sourcemodel.Product, end-skip)
	copy(out, s.products[skip:end])
	return out, nil
}

func (s *SnapshotBackend) Count(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(s.products), nil
}

// HistoryFor always returns no rows: the product snapshot carries no
// history section, so a snapshot-backed run fills no history gaps (C5
// is a no-op for every record). A caller needing history during a
// snapshot run should run against the live legacy store instead.
func (s *SnapshotBackend) HistoryFor(ctx context.Context, externalProductID, platformName, countryCode string) ([]sourcemodel.History, error) {
	return nil, nil
}

// rawSnapshotProduct mirrors one product entry of the snapshot file after
// its snake_case keys have been converted to camelCase (camelizeKeysDeep).
type rawSnapshotProduct struct {
	SourceID    string `mapstructure:"sourceId"`
	ExternalID  string `mapstructure:"externalId"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`

	PlatformName string `mapstructure:"platformName"`
	CountryCode  string `mapstructure:"countryCode"`

	Price float64 `mapstructure:"price"`

	TotalSoldUnits      int64   `mapstructure:"totalSoldUnits"`
	SoldUnitsLast7Days  int64   `mapstructure:"soldUnitsLast7Days"`
	SoldUnitsLast30Days int64   `mapstructure:"soldUnitsLast30Days"`
	TotalBilling        float64 `mapstructure:"totalBilling"`
	BillingLast7Days    float64 `mapstructure:"billingLast7Days"`
	BillingLast30Days   float64 `mapstructure:"billingLast30Days"`
	SuggestedPrice      float64 `mapstructure:"suggestedPrice"`

	Stock            int64   `mapstructure:"stock"`
	VariationsAmount int64   `mapstructure:"variationsAmount"`
	Score            float64 `mapstructure:"score"`
	Visible          bool    `mapstructure:"visible"`

	Categories []map[string]any `mapstructure:"categories"`
	Provider   map[string]any   `mapstructure:"provider"`
	Gallery    []map[string]any `mapstructure:"gallery"`

	CreatedAt string `mapstructure:"createdAt"`
	UpdatedAt string `mapstructure:"updatedAt"`
}

// loadSnapshotFile loads the whole snapshot into memory, normalizing
// snake_case keys to camelCase and dropping entries with a missing
// externalId (with a warning), per spec.md §4.3 and §6.
func loadSnapshotFile(path string) ([]sourcemodel.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, migrationerr.Configuration("legacystore.loadSnapshotFile", "reading snapshot %s: %v", path, err)
	}

	raw, err := unwrapSnapshotArray(data)
	if err != nil {
		return nil, migrationerr.Configuration("legacystore.loadSnapshotFile", "parsing snapshot %s: %v", path, err)
	}

	products := make([]sourcemodel.Product, 0, len(raw))
	for i, entry := range raw {
		normalized := camelizeKeysDeep(entry).(map[string]any)

		var rp rawSnapshotProduct
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &rp, WeaklyTypedInput: true})
		if err != nil {
			return nil, fmt.Errorf("building snapshot decoder: %w", err)
		}
		if err := dec.Decode(normalized); err != nil {
			logging.L.Warn().Int("index", i).Err(err).Msg("dropping snapshot entry: decode failed")
			continue
		}

		if rp.ExternalID == "" {
			logging.L.Warn().Int("index", i).Msg("dropping snapshot entry: missing externalId")
			continue
		}

		products = append(products, convertSnapshotProduct(rp))
	}

	return products, nil
}

// unwrapSnapshotArray accepts either a bare JSON array, or the same array
// wrapped in a one-field object (spec.md §6: "take the first value").
func unwrapSnapshotArray(data []byte) ([]map[string]any, error) {
	var arr []map[string]any
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("snapshot is neither an array nor an object: %w", err)
	}
	for _, v := range wrapper {
		if err := json.Unmarshal(v, &arr); err == nil {
			return arr, nil
		}
	}
	return nil, fmt.Errorf("snapshot object contained no array field")
}

// camelizeKeysDeep recursively converts snake_case map keys to camelCase.
func camelizeKeysDeep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[snakeToCamel(k)] = camelizeKeysDeep(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = camelizeKeysDeep(inner)
		}
		return out
	default:
		return v
	}
}

func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func convertSnapshotProduct(rp rawSnapshotProduct) sourcemodel.Product {
	p := sourcemodel.Product{
		SourceID:            rp.SourceID,
		ExternalID:          rp.ExternalID,
		Name:                rp.Name,
		Description:         rp.Description,
		PlatformName:        rp.PlatformName,
		CountryCode:         rp.CountryCode,
		Price:               rp.Price,
		TotalSoldUnits:      rp.TotalSoldUnits,
		SoldUnitsLast7Days:  rp.SoldUnitsLast7Days,
		SoldUnitsLast30Days: rp.SoldUnitsLast30Days,
		TotalBilling:        rp.TotalBilling,
		BillingLast7Days:    rp.BillingLast7Days,
		BillingLast30Days:   rp.BillingLast30Days,
		SuggestedPrice:      rp.SuggestedPrice,
		Stock:               rp.Stock,
		VariationsAmount:    rp.VariationsAmount,
		Score:               rp.Score,
		Visible:             rp.Visible,
		CreatedAt:           parseSnapshotTime(rp.CreatedAt),
		UpdatedAt:           parseSnapshotTime(rp.UpdatedAt),
	}

	for _, c := range rp.Categories {
		p.Categories = append(p.Categories, sourcemodel.Category{
			Name:       stringField(c, "name"),
			ExternalID: stringField(c, "externalId"),
		})
	}

	if rp.Provider != nil {
		extID := stringField(rp.Provider, "externalId")
		if extID != "" {
			name := stringField(rp.Provider, "name")
			if name == "" {
				name = "null"
			}
			p.Provider = sourcemodel.Provider{
				Name:       name,
				ExternalID: extID,
				Verified:   boolField(rp.Provider, "verified"),
				Present:    true,
			}
		}
	}

	for _, g := range rp.Gallery {
		p.Gallery = append(p.Gallery, sourcemodel.GalleryEntry{
			URL:         stringField(g, "url"),
			SourceURL:   stringField(g, "sourceUrl"),
			OwnImage:    stringField(g, "ownImage"),
			OriginalURL: stringField(g, "originalUrl"),
			Type:        stringField(g, "type"),
		})
	}

	return p
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func parseSnapshotTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
