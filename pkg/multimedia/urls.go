// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package multimedia

import "strings"

// cdnHosts is the fixed per-country CDN host table (spec.md §4.8 step 2,
// §7 "CDN host table"): AR and GT carry dedicated hosts, every other
// country shares the default.
var cdnHosts = map[string]string{
	"AR": "ar-cdn.sylos-media.com",
	"GT": "gt-cdn.sylos-media.com",
}

const defaultCDNHost = "cdn.sylos-media.com"

func cdnHostFor(country string) string {
	if host, ok := cdnHosts[strings.ToUpper(country)]; ok {
		return host
	}
	return defaultCDNHost
}

// normalizeURL implements spec.md §4.8 step 2 / P5: absolute URLs pass
// through unchanged; everything else is prefixed with the country's CDN
// host. Idempotent: re-normalizing an already-normalized URL is a no-op
// because it already begins with http(s)://.
func normalizeURL(raw, country string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	trimmed := strings.TrimPrefix(raw, "/")
	return "https://" + cdnHostFor(country) + "/" + trimmed
}

var videoSuffixes = []string{".mp4", ".mov", ".avi", ".webm"}
var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// classifyType implements spec.md §4.8 step 3.
func classifyType(url, explicitType string) string {
	lower := strings.ToLower(url)
	for _, suffix := range videoSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return "video"
		}
	}
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return "image"
		}
	}
	if explicitType == "video" {
		return "video"
	}
	return "image"
}

// bestURL picks the preferred usable URL field from a gallery entry:
// url, then ownImage, then sourceUrl, then originalUrl (spec.md §4.8 step 1).
func bestURL(url, ownImage, sourceURL, originalURL string) (string, bool) {
	for _, candidate := range []string{url, ownImage, sourceURL, originalURL} {
		if candidate != "" {
			return candidate, true
		}
	}
	return "", false
}
