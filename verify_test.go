package artscout

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

// gradientPNG renders a horizontal gradient. reverse flips its direction,
// which makes two renders perceptually distinct under dHash.
func gradientPNG(t *testing.T, width, height int, reverse bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		v := uint8(x * 255 / width)
		if reverse {
			v = 255 - v
		}
		for y := 0; y < height; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newVerifyServer(t *testing.T, images map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := images[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyDropsNarrowImages(t *testing.T) {
	t.Parallel()

	srv := newVerifyServer(t, map[string][]byte{
		"/wide.png":   gradientPNG(t, 1000, 20, false),
		"/narrow.png": gradientPNG(t, 200, 20, true),
	})

	v := &Verifier{HTTPClient: srv.Client()}
	items := []Artwork{
		{ID: "1", Title: "Wide", ImageURL: srv.URL + "/wide.png"},
		{ID: "2", Title: "Narrow", ImageURL: srv.URL + "/narrow.png"},
	}

	out := v.Verify(context.Background(), items)
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("got %+v, want only the wide image", out)
	}
}

func TestVerifyDropsDuplicates(t *testing.T) {
	t.Parallel()

	same := gradientPNG(t, 1000, 20, false)
	srv := newVerifyServer(t, map[string][]byte{
		"/a.png": same,
		"/b.png": same,
		"/c.png": gradientPNG(t, 1000, 20, true),
	})

	v := &Verifier{HTTPClient: srv.Client()}
	items := []Artwork{
		{ID: "a", ImageURL: srv.URL + "/a.png"},
		{ID: "b", ImageURL: srv.URL + "/b.png"},
		{ID: "c", ImageURL: srv.URL + "/c.png"},
	}

	out := v.Verify(context.Background(), items)
	if len(out) != 2 {
		t.Fatalf("got %d survivors, want 2 (one copy of the pair plus the distinct image)", len(out))
	}
	var sawC bool
	for _, a := range out {
		if a.ID == "c" {
			sawC = true
		}
	}
	if !sawC {
		t.Error("the perceptually distinct image must survive")
	}
}

func TestVerifyDropsUnfetchable(t *testing.T) {
	t.Parallel()

	srv := newVerifyServer(t, map[string][]byte{
		"/ok.png": gradientPNG(t, 1000, 20, false),
	})

	v := &Verifier{HTTPClient: srv.Client()}
	items := []Artwork{
		{ID: "gone", ImageURL: srv.URL + "/missing.png"},
		{ID: "ok", ImageURL: srv.URL + "/ok.png"},
	}

	out := v.Verify(context.Background(), items)
	if len(out) != 1 || out[0].ID != "ok" {
		t.Fatalf("got %+v, want only the reachable image", out)
	}
}

func TestVerifyRejectsNonImageResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	t.Cleanup(srv.Close)

	v := &Verifier{HTTPClient: srv.Client()}
	out := v.Verify(context.Background(), []Artwork{{ID: "x", ImageURL: srv.URL + "/x"}})
	if len(out) != 0 {
		t.Fatalf("got %+v, want nothing", out)
	}
}

func TestVerifyPreservesOrder(t *testing.T) {
	t.Parallel()

	srv := newVerifyServer(t, map[string][]byte{
		"/a.png": gradientPNG(t, 1000, 20, false),
		"/b.png": gradientPNG(t, 1000, 20, true),
	})

	v := &Verifier{HTTPClient: srv.Client()}
	items := []Artwork{
		{ID: "a", ImageURL: srv.URL + "/a.png"},
		{ID: "b", ImageURL: srv.URL + "/b.png"},
	}

	out := v.Verify(context.Background(), items)
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("got %+v, want both in input order", out)
	}
}
