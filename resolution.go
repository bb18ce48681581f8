package artscout

import (
	"regexp"
	"strings"
)

// LowResolutionMarkers are URL substrings indicating thumbnail or preview
// variants. Matched case-insensitively anywhere in the URL.
var LowResolutionMarkers = []string{
	"150px", "200px", "250px", "300px", "350px", "400px",
	"thumb", "thumbnail", "small", "square", "preview", "icon",
	"pct:3.125", "pct:6.25", "pct:12.5", "pct:25", // IIIF percentage scales
	"_s.jpg", "_t.jpg", "_q.jpg", "_m.jpg", // Flickr-family size suffixes
	"#h=150", "&max=150", "&max=200",
}

// highResolutionPriority orders the markers BestResolutionURL prefers.
// Earlier entries always win over later ones, regardless of candidate order.
var highResolutionPriority = []string{
	"original",
	"/full/full",
	"/full/max",
	"full",
	"large",
	"high",
	"1200",
	"1024",
	"_b.jpg",
}

// IsLowResolution reports whether the URL looks like a thumbnail or other
// reduced-size variant. Purely heuristic: the image is never fetched.
func IsLowResolution(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, m := range LowResolutionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// BestResolutionURL picks the most promising URL from candidates. Empty and
// low-resolution candidates are dropped; among the rest, the first candidate
// matching the highest-priority marker wins. When nothing matches any
// marker, the longest candidate is returned as a crude proxy for the
// biggest variant. Returns "" when no candidate survives.
func BestResolutionURL(candidates []string) string {
	var usable []string
	for _, c := range candidates {
		if c == "" || IsLowResolution(c) {
			continue
		}
		usable = append(usable, c)
	}
	if len(usable) == 0 {
		return ""
	}

	for _, marker := range highResolutionPriority {
		for _, c := range usable {
			if strings.Contains(strings.ToLower(c), marker) {
				return c
			}
		}
	}

	best := usable[0]
	for _, c := range usable[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// iiifSizeRe matches the size segment of an IIIF image URL, including
// percentage scales and exact/bounded pixel sizes.
var iiifSizeRe = regexp.MustCompile(`/full/(!?\d+,\d*|\d*,\d+|pct:[\d.]+)/`)

// flickrSizeSuffixes are small/medium Flickr-style size suffixes that have a
// large "_b" sibling.
var flickrSizeSuffixes = []string{"_s.jpg", "_t.jpg", "_q.jpg", "_m.jpg", "_n.jpg", "_w.jpg", "_z.jpg", "_c.jpg"}

// UpgradeResolution rewrites rawURL to a larger variant of the same image
// when the URL belongs to a known source family. URLs from unknown families
// pass through unchanged.
func UpgradeResolution(rawURL string) string {
	// Met image CDN keeps a full-size sibling under /original/.
	if strings.Contains(rawURL, "/web-large/") {
		return strings.Replace(rawURL, "/web-large/", "/original/", 1)
	}

	// IIIF services (Art Institute, LoC tile server): request the full
	// region at full size instead of a scaled or deep-zoom rendition.
	if strings.Contains(rawURL, "/iiif/") {
		if m := iiifSizeRe.FindString(rawURL); m != "" {
			return strings.Replace(rawURL, m, "/full/full/", 1)
		}
	}

	// Flickr-style suffixes show up in open-media results.
	for _, suf := range flickrSizeSuffixes {
		if strings.HasSuffix(rawURL, suf) {
			return rawURL[:len(rawURL)-len(suf)] + "_b.jpg"
		}
	}

	return rawURL
}
