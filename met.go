package artscout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	metDefaultBaseURL = "https://collectionapi.metmuseum.org/public/collection/v1"
	metTimeout        = 15 * time.Second
	metMinInterval    = 500 * time.Millisecond
)

// metCatalog is the sampling pool for random requests: a curated spread of
// object ids across departments, all with open-access images. The API has
// no random endpoint, so random picks come from here.
var metCatalog = []int{
	435809, 435844, 435868, 435876, 435882, 435888, 436002, 436095,
	436098, 436105, 436121, 436282, 436454, 436492, 436524, 436528,
	436532, 436535, 436545, 436575, 436603, 436658, 436838, 436944,
	436947, 436964, 436965, 436966, 437097, 437133, 437153, 437299,
	437310, 437329, 437341, 437372, 437430, 437478, 437654, 437853,
	437926, 437927, 437984, 438013, 438112, 438722, 438815, 438817,
	438821, 459055, 459080, 459106, 435739, 435621, 435702, 435600,
	10481, 10497, 11207, 11417, 11734, 12600, 13325, 14936,
	20141, 45734, 49107, 53222, 54790, 57854, 59858, 60873,
	65955, 72540, 75846, 193938, 199313, 202194, 204587, 205350,
	231788, 247008, 248131, 250551, 251476, 253370, 254502, 255960,
	282039, 283072, 285549, 286112, 322592, 324830, 327397, 329077,
	334004, 337069, 339625, 344467, 347950, 437393,
}

// MetConfig configures the Met Museum source. Zero values mean defaults.
type MetConfig struct {
	HTTPClient  *http.Client
	UserAgent   string
	BaseURL     string        // override for tests
	Timeout     time.Duration // per-request, default 15s
	MinInterval time.Duration // spacing between requests, default 500ms
	Disabled    bool
	Rand        *rand.Rand // deterministic sampling in tests
}

// Met integrates the Met Museum collection API. Quirks: throttling is
// signalled with 403 rather than 429, search returns one flat objectIDs
// array (so the logical offset is a plain slice index), and every hit costs
// an extra per-object fetch.
type Met struct {
	baseURL string
	enabled bool
	api     *upstream
	sess    *session
	sh      *shuffler
}

func NewMet(cfg MetConfig) *Met {
	base := cfg.BaseURL
	if base == "" {
		base = metDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = metTimeout
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = metMinInterval
	}
	api := newUpstream("met", cfg.HTTPClient, cfg.UserAgent, timeout, minInterval)
	api.throttleStatus = http.StatusForbidden
	return &Met{
		baseURL: base,
		enabled: !cfg.Disabled,
		api:     api,
		sess:    newSession(),
		sh:      newShuffler(cfg.Rand),
	}
}

func (m *Met) Name() string          { return "met" }
func (m *Met) Available() bool       { return m.enabled }
func (m *Met) RateLimited() bool     { return m.api.gate.active() }
func (m *Met) RateLimitInfo() string { return m.api.gate.info() }

// ClearCache forgets served ids; force also resets the backoff ladder.
func (m *Met) ClearCache(force bool) {
	m.sess.reset()
	if force {
		m.api.gate.succeeded()
	}
}

func (m *Met) RandomArtworks(ctx context.Context, count int) ([]Artwork, error) {
	if count <= 0 {
		return nil, nil
	}

	pool := make([]string, len(metCatalog))
	for i, id := range metCatalog {
		pool[i] = strconv.Itoa(id)
	}
	fresh := m.sess.freshIDs(pool, count)
	m.sh.shuffleStrings(fresh)

	out := make([]Artwork, 0, count)
	attempts := 0
	for _, id := range fresh {
		if len(out) >= count || attempts >= count*5 {
			break
		}
		attempts++
		art, subjects, err := m.fetchObject(ctx, id)
		if err != nil {
			if IsRateLimited(err) {
				if len(out) > 0 {
					return out, nil
				}
				return nil, err
			}
			slog.Debug("artscout: met object skipped", "id", id, "error", err)
			continue
		}
		if art == nil || !IncludeArtwork(*art, "", subjects) {
			continue
		}
		if !m.sess.markIfFresh(art.ID) {
			continue
		}
		out = append(out, *art)
	}
	return out, nil
}

func (m *Met) SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("hasImages", "true")

	var res struct {
		Total     int   `json:"total"`
		ObjectIDs []int `json:"objectIDs"`
	}
	if err := m.api.getJSON(ctx, m.baseURL+"/search?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	if offset >= len(res.ObjectIDs) {
		return nil, nil
	}

	out := make([]Artwork, 0, limit)
	attempts := 0
	for _, oid := range res.ObjectIDs[offset:] {
		if len(out) >= limit || attempts >= limit*5 {
			break
		}
		attempts++
		art, subjects, err := m.fetchObject(ctx, strconv.Itoa(oid))
		if err != nil {
			if IsRateLimited(err) {
				if len(out) > 0 {
					return out, nil
				}
				return nil, err
			}
			continue
		}
		if art == nil || !IncludeArtwork(*art, query, subjects) {
			continue
		}
		out = append(out, *art)
	}
	return out, nil
}

func (m *Met) ArtworkByID(ctx context.Context, id string) (*Artwork, error) {
	art, _, err := m.fetchObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, fmt.Errorf("met: object %s has no usable image: %w", id, ErrNotFound)
	}
	return art, nil
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	PrimaryImage      string `json:"primaryImage"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
	ObjectDate        string `json:"objectDate"`
	Medium            string `json:"medium"`
	Department        string `json:"department"`
	Tags              []struct {
		Term string `json:"term"`
	} `json:"tags"`
}

// fetchObject loads one object and maps it. Returns (nil, nil, nil) when the
// object exists but carries no usable image.
func (m *Met) fetchObject(ctx context.Context, id string) (*Artwork, []string, error) {
	var o metObject
	if err := m.api.getJSON(ctx, m.baseURL+"/objects/"+url.PathEscape(id), &o); err != nil {
		return nil, nil, err
	}

	img := BestResolutionURL([]string{o.PrimaryImage, o.PrimaryImageSmall})
	if img == "" {
		return nil, nil, nil
	}

	art := Artwork{
		ID:         strconv.Itoa(o.ObjectID),
		Title:      orDefault(o.Title, UntitledTitle),
		Artist:     orDefault(o.ArtistDisplayName, UnknownArtist),
		ImageURL:   img,
		Date:       o.ObjectDate,
		Medium:     o.Medium,
		Department: o.Department,
		Source:     "met",
	}
	if up := UpgradeResolution(img); up != img {
		art.LargeImageURL = up
	} else if o.PrimaryImage != "" && o.PrimaryImage != img {
		art.LargeImageURL = o.PrimaryImage
	}

	subjects := make([]string, 0, len(o.Tags))
	for _, t := range o.Tags {
		subjects = append(subjects, t.Term)
	}
	return &art, subjects, nil
}
