// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package reference

import "strings"

// knownPlatforms is the closed enum of platform tokens spec.md §4.4 names.
var knownPlatforms = map[string]bool{
	"dropi":             true,
	"aliclick":          true,
	"droplatam":         true,
	"seventy block":     true,
	"wimpy":             true,
	"easydrop":          true,
	"mastershop":        true,
	"dropea":            true,
}

// defaultPlatform is used when a platform name doesn't match any known
// token; spec.md §4.4 calls for defaulting to "dropi" with a warning.
const defaultPlatform = "dropi"

// countryAliases maps known legacy aliases to canonical country codes.
var countryAliases = map[string]string{
	"CO1": "CO",
}

// NormalizePlatform lowercases and validates a platform name against the
// closed enum, defaulting to "dropi" for anything unrecognized.
func NormalizePlatform(name string) (token string, usedDefault bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if knownPlatforms[normalized] {
		return normalized, false
	}
	return defaultPlatform, true
}

// NormalizeCountryCode resolves known legacy aliases to canonical codes.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if alias, ok := countryAliases[code]; ok {
		return alias
	}
	return code
}
