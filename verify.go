package artscout

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bep/imagemeta"
	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMinImageWidth is the minimum pixel width a verified image must
	// have.
	DefaultMinImageWidth = 880

	// dedupThreshold is the maximum Hamming distance between two dHash
	// values below which images count as perceptually identical.
	dedupThreshold = 10

	verifyMaxBytes    = 2 << 20 // enough to decode and hash most renditions
	verifyTimeout     = 10 * time.Second
	verifyConcurrency = 3
)

// Verifier is an optional post-merge stage that downloads each candidate
// image once and drops items whose real width falls short of MinWidth or
// that are perceptual duplicates of another verified item (the same picture
// often surfaces through more than one source). Items whose artist is still
// unknown get a best-effort backfill from embedded EXIF/XMP metadata.
// URL heuristics inside the sources stay the first line of defense; this
// stage trades bandwidth for certainty and is meant for callers that
// display few, large images.
type Verifier struct {
	HTTPClient  *http.Client
	UserAgent   string
	MinWidth    int           // default DefaultMinImageWidth
	Timeout     time.Duration // per-image, default 10s
	Concurrency int           // parallel probes, default 3
}

func (v *Verifier) defaults() {
	if v.HTTPClient == nil {
		v.HTTPClient = http.DefaultClient
	}
	if v.UserAgent == "" {
		v.UserAgent = defaultUserAgent
	}
	if v.MinWidth <= 0 {
		v.MinWidth = DefaultMinImageWidth
	}
	if v.Timeout <= 0 {
		v.Timeout = verifyTimeout
	}
	if v.Concurrency <= 0 {
		v.Concurrency = verifyConcurrency
	}
}

// Verify probes items concurrently and returns the survivors in their
// original order.
func (v *Verifier) Verify(ctx context.Context, items []Artwork) []Artwork {
	v.defaults()

	kept := make([]*Artwork, len(items))
	dedup := &hashFilter{}
	sem := make(chan struct{}, v.Concurrency)
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			kept[i] = v.verifyOne(ctx, items[i], dedup)
		}(i)
	}
	wg.Wait()

	out := make([]Artwork, 0, len(items))
	for _, a := range kept {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// verifyOne fetches one image and runs the checks. Returns nil when the
// item should be dropped.
func (v *Verifier) verifyOne(ctx context.Context, item Artwork, dedup *hashFilter) *Artwork {
	data := v.fetchImage(ctx, item.ImageURL)
	if data == nil {
		slog.Debug("artscout: verify fetch failed", "url", item.ImageURL)
		return nil
	}

	// Dimensions only need the header.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if cfg.Width < v.MinWidth {
			slog.Debug("artscout: verify rejected narrow image",
				"url", item.ImageURL, "width", cfg.Width, "min", v.MinWidth)
			return nil
		}
	}
	// Undecodable dimensions are accepted: the content-type check passed.

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		if dedup.isDuplicate(img) {
			slog.Debug("artscout: verify rejected duplicate", "url", item.ImageURL)
			return nil
		}
	}

	if item.Artist == UnknownArtist {
		if artist := embeddedArtist(data); artist != "" {
			item.Artist = artist
		}
	}
	return &item
}

// fetchImage downloads up to verifyMaxBytes of the image. Returns nil on
// any failure or a non-image response.
func (v *Verifier) fetchImage(ctx context.Context, rawURL string) []byte {
	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", v.UserAgent)

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, verifyMaxBytes))
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}

// hashFilter collapses perceptually identical images within one Verify
// call. Safe for concurrent use.
type hashFilter struct {
	mu     sync.Mutex
	hashes []*goimagehash.ImageHash
}

// isDuplicate reports whether img matches a previously seen image. Hashing
// failures accept the image; when accepted, its hash is remembered.
func (h *hashFilter) isDuplicate(img image.Image) bool {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, seen := range h.hashes {
		if dist, err := hash.Distance(seen); err == nil && dist < dedupThreshold {
			return true
		}
	}
	h.hashes = append(h.hashes, hash)
	return false
}

// embeddedArtist pulls a creator name out of EXIF/XMP metadata, for
// digitized photos whose API payload named no artist. Returns "" when the
// image carries none.
func embeddedArtist(data []byte) string {
	var artist string
	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Artist" || ti.Tag == "Creator"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if artist != "" {
				return nil
			}
			switch val := ti.Value.(type) {
			case string:
				artist = val
			case []string:
				if len(val) > 0 {
					artist = val[0]
				}
			case []any:
				if len(val) > 0 {
					if s, ok := val[0].(string); ok {
						artist = s
					}
				}
			}
			return nil
		},
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(artist)
}
