// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package legacystore

import (
	"encoding/json"
	"strings"

	"github.com/sylos-labs/catalog-migrator/pkg/sourcemodel"
)

// decodeCategories parses a JSON array of {name, externalId?} objects.
// An empty or unparseable blob yields an empty (not nil-panicking) list;
// categories are non-critical enough that a malformed blob should not
// fail the whole record (the reference resolver falls back to "other"
// when no category name is available at all).
func decodeCategories(raw []byte, out *[]sourcemodel.Category) error {
	if len(raw) == 0 {
		return nil
	}
	var cats []struct {
		Name       string `json:"name"`
		ExternalID string `json:"externalId"`
	}
	if err := json.Unmarshal(raw, &cats); err != nil {
		*out = nil
		return nil
	}
	for _, c := range cats {
		*out = append(*out, sourcemodel.Category{Name: c.Name, ExternalID: c.ExternalID})
	}
	return nil
}

type rawProvider struct {
	Name       *string `json:"name"`
	ExternalID *string `json:"externalId"`
	Verified   bool    `json:"verified"`
}

// decodeProvider parses the embedded provider blob. An absent or
// unparseable blob both yield Provider{Present:false}, matching
// spec.md §4.5 rule 1 ("absent, unparseable, or lacks an externalId").
func decodeProvider(raw []byte) sourcemodel.Provider {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return sourcemodel.Provider{}
	}

	var p rawProvider
	if err := json.Unmarshal(raw, &p); err != nil {
		return sourcemodel.Provider{}
	}
	if p.ExternalID == nil || *p.ExternalID == "" {
		return sourcemodel.Provider{}
	}

	name := "null"
	if p.Name != nil && *p.Name != "" {
		name = *p.Name
	}
	return sourcemodel.Provider{
		Name:       name,
		ExternalID: *p.ExternalID,
		Verified:   p.Verified,
		Present:    true,
	}
}

type rawGalleryEntry struct {
	URL         string `json:"url"`
	SourceURL   string `json:"sourceUrl"`
	OwnImage    string `json:"ownImage"`
	OriginalURL string `json:"originalUrl"`
	Type        string `json:"type"`
}

// decodeGallery parses the gallery blob, which may be a JSON array, or a
// JSON string containing an encoded JSON array (spec.md §4.8 step 1).
// An unparseable blob yields an empty gallery rather than an error.
func decodeGallery(raw []byte) []sourcemodel.GalleryEntry {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	// If the whole payload decodes as a JSON string, unwrap one level
	// before parsing the array it should contain.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = []byte(asString)
	}

	var entries []rawGalleryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	out := make([]sourcemodel.GalleryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, sourcemodel.GalleryEntry{
			URL:         e.URL,
			SourceURL:   e.SourceURL,
			OwnImage:    e.OwnImage,
			OriginalURL: e.OriginalURL,
			Type:        e.Type,
		})
	}
	return out
}
