package artscout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	openverseDefaultBaseURL = "https://api.openverse.org/v1"
	openverseTimeout        = 10 * time.Second
	openverseMinInterval    = 200 * time.Millisecond
)

// openverseTerms is the rotating pool of search terms random requests draw
// from.
var openverseTerms = []string{
	"painting", "fresco", "mosaic", "engraving", "tapestry",
	"botanical illustration", "woodblock print", "stained glass",
	"calligraphy", "lithograph", "oil on canvas", "folk art",
	"art nouveau", "baroque", "ukiyo-e", "illuminated manuscript",
}

// OpenverseConfig configures the Openverse source. AccessToken is an
// optional OAuth bearer token that raises the anonymous rate limits; the
// source works without it.
type OpenverseConfig struct {
	HTTPClient  *http.Client
	UserAgent   string
	BaseURL     string // override for tests
	AccessToken string
	LicenseType string // license_type filter, default "commercial"
	Timeout     time.Duration
	MinInterval time.Duration
	Disabled    bool
	Rand        *rand.Rand
}

// Openverse integrates the Openverse open-media search engine. Paging is
// page-based (page/page_size); throttling is a plain 429 with Retry-After.
type Openverse struct {
	baseURL     string
	licenseType string
	enabled     bool
	api         *upstream
	sess        *session
	sh          *shuffler
}

func NewOpenverse(cfg OpenverseConfig) *Openverse {
	base := cfg.BaseURL
	if base == "" {
		base = openverseDefaultBaseURL
	}
	license := cfg.LicenseType
	if license == "" {
		license = "commercial"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openverseTimeout
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = openverseMinInterval
	}
	api := newUpstream("openverse", cfg.HTTPClient, cfg.UserAgent, timeout, minInterval)
	if cfg.AccessToken != "" {
		api.authorization = "Bearer " + cfg.AccessToken
	}
	return &Openverse{
		baseURL:     base,
		licenseType: license,
		enabled:     !cfg.Disabled,
		api:         api,
		sess:        newSession(),
		sh:          newShuffler(cfg.Rand),
	}
}

func (o *Openverse) Name() string          { return "openverse" }
func (o *Openverse) Available() bool       { return o.enabled }
func (o *Openverse) RateLimited() bool     { return o.api.gate.active() }
func (o *Openverse) RateLimitInfo() string { return o.api.gate.info() }

func (o *Openverse) ClearCache(force bool) {
	o.sess.reset()
	if force {
		o.api.gate.succeeded()
	}
}

func (o *Openverse) RandomArtworks(ctx context.Context, count int) ([]Artwork, error) {
	if count <= 0 {
		return nil, nil
	}

	term := openverseTerms[o.sh.intN(len(openverseTerms))]
	page := 1 + o.sh.intN(5)
	fetch := count * 2
	if fetch > 100 {
		fetch = 100
	}

	items, err := o.search(ctx, term, fetch, page)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && page > 1 {
		items, err = o.search(ctx, term, fetch, 1)
		if err != nil {
			return nil, err
		}
	}
	return pickRandom(o.sess, o.sh, items, count), nil
}

func (o *Openverse) SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	page := offset/limit + 1
	return o.search(ctx, query, limit, page)
}

func (o *Openverse) ArtworkByID(ctx context.Context, id string) (*Artwork, error) {
	var r openverseResult
	u := o.baseURL + "/images/" + url.PathEscape(id) + "/"
	if err := o.api.getJSON(ctx, u, &r); err != nil {
		return nil, err
	}
	art, _, ok := mapOpenverseResult(r)
	if !ok {
		return nil, fmt.Errorf("openverse: image %s has no usable rendition: %w", id, ErrNotFound)
	}
	return &art, nil
}

type openverseResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Source    string `json:"source"`
	License   string `json:"license"`
	Tags      []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

func (o *Openverse) search(ctx context.Context, query string, limit, page int) ([]Artwork, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(limit))
	if o.licenseType != "" {
		q.Set("license_type", o.licenseType)
	}

	var res struct {
		Results []openverseResult `json:"results"`
	}
	if err := o.api.getJSON(ctx, o.baseURL+"/images/?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	out := make([]Artwork, 0, len(res.Results))
	for _, r := range res.Results {
		art, subjects, ok := mapOpenverseResult(r)
		if !ok {
			continue
		}
		if !IncludeArtwork(art, query, subjects) {
			continue
		}
		out = append(out, art)
	}
	return out, nil
}

// mapOpenverseResult converts one result into the common shape. The direct
// url must itself pass the resolution filter; the thumbnail never does, so
// thumbnail-only results are dropped.
func mapOpenverseResult(r openverseResult) (Artwork, []string, bool) {
	if r.ID == "" {
		return Artwork{}, nil, false
	}
	img := BestResolutionURL([]string{r.URL})
	if img == "" {
		return Artwork{}, nil, false
	}

	art := Artwork{
		ID:         r.ID,
		Title:      orDefault(r.Title, UntitledTitle),
		Artist:     orDefault(r.Creator, UnknownArtist),
		ImageURL:   img,
		Department: r.Source, // provider collection, e.g. "flickr"
		Source:     "openverse",
	}
	if up := UpgradeResolution(img); up != img {
		art.LargeImageURL = up
	}

	subjects := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		subjects = append(subjects, t.Name)
	}
	return art, subjects, true
}
