package artscout

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

func newTestOpenverse(t *testing.T, handler http.Handler) *Openverse {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	o := NewOpenverse(OpenverseConfig{
		HTTPClient:  srv.Client(),
		BaseURL:     srv.URL,
		Timeout:     2 * time.Second,
		MinInterval: time.Nanosecond,
		Rand:        rand.New(rand.NewPCG(9, 9)),
	})
	o.api.gate.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

const openverseSearchBody = `{
	"result_count": 3,
	"results": [
		{
			"id": "aaa-111",
			"title": "Roman mosaic floor",
			"creator": "toursomewhere",
			"url": "https://live.staticflickr.example/1/100_b.jpg",
			"thumbnail": "https://api.example/thumb/aaa-111",
			"source": "flickr",
			"license": "cc-by",
			"tags": [{"name": "mosaic"}, {"name": "roman"}]
		},
		{
			"id": "bbb-222",
			"title": "Small rendition only",
			"creator": "someone",
			"url": "https://live.staticflickr.example/1/200_s.jpg",
			"source": "flickr"
		},
		{
			"id": "ccc-333",
			"title": "Portrait of a woman",
			"creator": "someoneelse",
			"url": "https://live.staticflickr.example/1/300_b.jpg",
			"source": "flickr",
			"tags": [{"name": "portrait"}]
		}
	]
}`

func TestOpenverseSearchMapsAndFilters(t *testing.T) {
	t.Parallel()

	o := newTestOpenverse(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(openverseSearchBody))
	}))

	items, err := o.SearchArtworks(context.Background(), "mosaic", 10, 0)
	if err != nil {
		t.Fatalf("SearchArtworks: %v", err)
	}

	// bbb-222 only has a small rendition, ccc-333 is a portrait.
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	got := items[0]
	if got.ID != "aaa-111" || got.Source != "openverse" {
		t.Errorf("id/source = %q/%q", got.ID, got.Source)
	}
	if got.Artist != "toursomewhere" || got.Department != "flickr" {
		t.Errorf("unexpected mapping: %+v", got)
	}
	if IsLowResolution(got.ImageURL) {
		t.Errorf("ImageURL %q fails the resolution invariant", got.ImageURL)
	}
}

func TestOpenverseSearchParams(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var q url.Values
	o := newTestOpenverse(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		q = r.URL.Query()
		mu.Unlock()
		_, _ = w.Write([]byte(`{"results": []}`))
	}))

	if _, err := o.SearchArtworks(context.Background(), "fresco", 10, 20); err != nil {
		t.Fatalf("SearchArtworks: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := q.Get("page"); got != "3" {
		t.Errorf("page = %q, want 3", got)
	}
	if got := q.Get("page_size"); got != "10" {
		t.Errorf("page_size = %q, want 10", got)
	}
	if got := q.Get("license_type"); got != "commercial" {
		t.Errorf("license_type = %q, want commercial", got)
	}
}

func TestOpenverseThrottleRetryAfter(t *testing.T) {
	t.Parallel()

	o := newTestOpenverse(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := o.SearchArtworks(context.Background(), "fresco", 10, 0)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("429 must map to RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 60*time.Second {
		t.Errorf("RetryAfter = %s, want 60s", rl.RetryAfter)
	}
	if !o.RateLimited() || o.RateLimitInfo() == "" {
		t.Error("source must report its throttle state")
	}
}

func TestOpenverseAuthorizationHeader(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	t.Cleanup(srv.Close)

	o := NewOpenverse(OpenverseConfig{
		HTTPClient:  srv.Client(),
		BaseURL:     srv.URL,
		AccessToken: "tok123",
		MinInterval: time.Nanosecond,
	})
	if _, err := o.SearchArtworks(context.Background(), "fresco", 5, 0); err != nil {
		t.Fatalf("SearchArtworks: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer tok123" {
		t.Errorf("Authorization = %q, want Bearer tok123", auth)
	}
}

func TestOpenverseArtworkByID(t *testing.T) {
	t.Parallel()

	o := newTestOpenverse(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/aaa-111/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "aaa-111",
			"title": "Roman mosaic floor",
			"creator": "toursomewhere",
			"url": "https://live.staticflickr.example/1/100_b.jpg"
		}`))
	}))

	art, err := o.ArtworkByID(context.Background(), "aaa-111")
	if err != nil {
		t.Fatalf("ArtworkByID: %v", err)
	}
	if art.Title != "Roman mosaic floor" {
		t.Errorf("title = %q", art.Title)
	}

	_, err = o.ArtworkByID(context.Background(), "zzz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id must wrap ErrNotFound, got %v", err)
	}
}
