package artscout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	locDefaultBaseURL = "https://www.loc.gov"
	locTimeout        = 15 * time.Second
	locMinInterval    = 500 * time.Millisecond
)

// locTerms is the rotating pool of search terms random requests draw from.
// Skewed toward the archive's strong suits: documentary and geographic
// photography.
var locTerms = []string{
	"national park", "lighthouse", "railroad", "harbor", "main street",
	"bridge", "skyline", "barn", "mill", "courthouse",
	"canyon", "waterfall", "prairie", "orchard", "vineyard",
	"carousel", "theater", "diner", "gas station", "windmill",
}

// LOCConfig configures the Library of Congress photo source.
type LOCConfig struct {
	HTTPClient  *http.Client
	UserAgent   string
	BaseURL     string // override for tests
	Timeout     time.Duration
	MinInterval time.Duration
	Disabled    bool
	Rand        *rand.Rand
}

// LOC integrates the Library of Congress digitized-photo archive
// (loc.gov/photos with fo=json). Paging is page-based via the sp parameter;
// each result carries a list of image size variants that the resolution
// filter picks from.
type LOC struct {
	baseURL string
	enabled bool
	api     *upstream
	sess    *session
	sh      *shuffler
}

func NewLOC(cfg LOCConfig) *LOC {
	base := cfg.BaseURL
	if base == "" {
		base = locDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = locTimeout
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = locMinInterval
	}
	return &LOC{
		baseURL: base,
		enabled: !cfg.Disabled,
		api:     newUpstream("loc", cfg.HTTPClient, cfg.UserAgent, timeout, minInterval),
		sess:    newSession(),
		sh:      newShuffler(cfg.Rand),
	}
}

func (l *LOC) Name() string          { return "loc" }
func (l *LOC) Available() bool       { return l.enabled }
func (l *LOC) RateLimited() bool     { return l.api.gate.active() }
func (l *LOC) RateLimitInfo() string { return l.api.gate.info() }

func (l *LOC) ClearCache(force bool) {
	l.sess.reset()
	if force {
		l.api.gate.succeeded()
	}
}

func (l *LOC) RandomArtworks(ctx context.Context, count int) ([]Artwork, error) {
	if count <= 0 {
		return nil, nil
	}

	term := locTerms[l.sh.intN(len(locTerms))]
	page := 1 + l.sh.intN(3)
	fetch := count * 2
	if fetch > 100 {
		fetch = 100
	}

	items, err := l.search(ctx, term, fetch, page)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && page > 1 {
		items, err = l.search(ctx, term, fetch, 1)
		if err != nil {
			return nil, err
		}
	}
	return pickRandom(l.sess, l.sh, items, count), nil
}

func (l *LOC) SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	page := offset/limit + 1
	return l.search(ctx, query, limit, page)
}

func (l *LOC) ArtworkByID(ctx context.Context, id string) (*Artwork, error) {
	var res struct {
		Item locResult `json:"item"`
	}
	u := l.baseURL + "/item/" + url.PathEscape(id) + "/?fo=json"
	if err := l.api.getJSON(ctx, u, &res); err != nil {
		return nil, err
	}
	art, _, ok := mapLOCResult(res.Item)
	if !ok {
		return nil, fmt.Errorf("loc: item %s has no usable image: %w", id, ErrNotFound)
	}
	return &art, nil
}

type locResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	ImageURL    []string `json:"image_url"`
	Subject     []string `json:"subject"`
	Contributor []string `json:"contributor"`
	Medium      []string `json:"medium"`
	PartOf      []string `json:"partof"`
}

func (l *LOC) search(ctx context.Context, query string, limit, page int) ([]Artwork, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("fo", "json")
	q.Set("c", strconv.Itoa(limit))
	q.Set("sp", strconv.Itoa(page))

	var res struct {
		Results []locResult `json:"results"`
	}
	if err := l.api.getJSON(ctx, l.baseURL+"/photos/?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	out := make([]Artwork, 0, len(res.Results))
	for _, r := range res.Results {
		art, subjects, ok := mapLOCResult(r)
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

// mapLOCResult converts one result into the common shape. The image_url
// list mixes thumbnail and full-size renditions; the resolution filter
// picks the best and items with only thumbnails are dropped.
func mapLOCResult(r locResult) (Artwork, []string, bool) {
	candidates := make([]string, 0, len(r.ImageURL))
	for _, u := range r.ImageURL {
		candidates = append(candidates, absoluteURL(u))
	}
	img := BestResolutionURL(candidates)
	if img == "" {
		return Artwork{}, nil, false
	}

	art := Artwork{
		ID:       locItemID(r.ID),
		Title:    orDefault(r.Title, UntitledTitle),
		Artist:   UnknownArtist,
		ImageURL: img,
		Date:     r.Date,
		Source:   "loc",
	}
	if len(r.Contributor) > 0 {
		art.Artist = orDefault(r.Contributor[0], UnknownArtist)
	}
	if len(r.Medium) > 0 {
		art.Medium = r.Medium[0]
	}
	if len(r.PartOf) > 0 {
		art.Department = r.PartOf[0]
	}
	if up := UpgradeResolution(img); up != img {
		art.LargeImageURL = up
	}
	if art.ID == "" {
		return Artwork{}, nil, false
	}
	return art, r.Subject, true
}

// locItemID normalizes the upstream id, which arrives as a full item URL
// like "http://www.loc.gov/item/2017645977/".
func locItemID(raw string) string {
	s := strings.TrimSuffix(raw, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// absoluteURL fixes the protocol-relative URLs the archive serves.
func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
