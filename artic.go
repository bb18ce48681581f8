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
	articDefaultBaseURL = "https://api.artic.edu/api/v1"
	articDefaultIIIF    = "https://www.artic.edu/iiif/2"
	articTimeout        = 10 * time.Second
	articMinInterval    = 300 * time.Millisecond

	articFields = "id,title,artist_display,image_id,date_display,medium_display,department_title,term_titles"
)

// articTerms is the rotating pool of diverse search terms random requests
// draw from; the API has no random endpoint.
var articTerms = []string{
	"impressionism", "landscape", "still life", "abstract", "sculpture",
	"watercolor", "japanese print", "textile", "modern", "cityscape",
	"flowers", "seascape", "architecture", "ceramics", "gold",
	"ancient", "mythology", "animals", "garden", "night",
}

// ArticConfig configures the Art Institute of Chicago source.
type ArticConfig struct {
	HTTPClient  *http.Client
	UserAgent   string
	BaseURL     string // override for tests
	IIIFBaseURL string // override for tests
	Timeout     time.Duration
	MinInterval time.Duration
	Disabled    bool
	Rand        *rand.Rand
}

// Artic integrates the Art Institute of Chicago API. Paging is page-based
// (page = offset/limit + 1); images are assembled from an image_id via the
// museum's IIIF service.
type Artic struct {
	baseURL string
	iiif    string
	enabled bool
	api     *upstream
	sess    *session
	sh      *shuffler
}

func NewArtic(cfg ArticConfig) *Artic {
	base := cfg.BaseURL
	if base == "" {
		base = articDefaultBaseURL
	}
	iiif := cfg.IIIFBaseURL
	if iiif == "" {
		iiif = articDefaultIIIF
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = articTimeout
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = articMinInterval
	}
	return &Artic{
		baseURL: base,
		iiif:    iiif,
		enabled: !cfg.Disabled,
		api:     newUpstream("artic", cfg.HTTPClient, cfg.UserAgent, timeout, minInterval),
		sess:    newSession(),
		sh:      newShuffler(cfg.Rand),
	}
}

func (a *Artic) Name() string          { return "artic" }
func (a *Artic) Available() bool       { return a.enabled }
func (a *Artic) RateLimited() bool     { return a.api.gate.active() }
func (a *Artic) RateLimitInfo() string { return a.api.gate.info() }

func (a *Artic) ClearCache(force bool) {
	a.sess.reset()
	if force {
		a.api.gate.succeeded()
	}
}

func (a *Artic) RandomArtworks(ctx context.Context, count int) ([]Artwork, error) {
	if count <= 0 {
		return nil, nil
	}

	// Fetch a superset under a random term and a random page, then shuffle
	// down locally.
	term := articTerms[a.sh.intN(len(articTerms))]
	page := 1 + a.sh.intN(4)
	fetch := count * 2
	if fetch > 100 {
		fetch = 100
	}

	items, err := a.search(ctx, term, fetch, page)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && page > 1 {
		// A deep random page may run past the result set; retry from the top.
		items, err = a.search(ctx, term, fetch, 1)
		if err != nil {
			return nil, err
		}
	}
	return pickRandom(a.sess, a.sh, items, count), nil
}

func (a *Artic) SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	page := offset/limit + 1
	return a.search(ctx, query, limit, page)
}

func (a *Artic) ArtworkByID(ctx context.Context, id string) (*Artwork, error) {
	var res struct {
		Data articDatum `json:"data"`
	}
	u := a.baseURL + "/artworks/" + url.PathEscape(id) + "?fields=" + articFields
	if err := a.api.getJSON(ctx, u, &res); err != nil {
		return nil, err
	}
	art, _, ok := a.mapDatum(res.Data)
	if !ok {
		return nil, fmt.Errorf("artic: artwork %s has no usable image: %w", id, ErrNotFound)
	}
	return &art, nil
}

type articDatum struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	ArtistDisplay   string   `json:"artist_display"`
	ImageID         string   `json:"image_id"`
	DateDisplay     string   `json:"date_display"`
	MediumDisplay   string   `json:"medium_display"`
	DepartmentTitle string   `json:"department_title"`
	TermTitles      []string `json:"term_titles"`
}

// search runs one search page and applies the content filter against query.
// Random fetches go through here too, with the drawn term as the query.
func (a *Artic) search(ctx context.Context, query string, limit, page int) ([]Artwork, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("fields", articFields)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	var res struct {
		Data []articDatum `json:"data"`
	}
	if err := a.api.getJSON(ctx, a.baseURL+"/artworks/search?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	out := make([]Artwork, 0, len(res.Data))
	for _, d := range res.Data {
		art, subjects, ok := a.mapDatum(d)
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

// mapDatum converts one API payload into the common shape. Items without an
// image_id carry no published image and are dropped.
func (a *Artic) mapDatum(d articDatum) (Artwork, []string, bool) {
	if d.ID == 0 || d.ImageID == "" {
		return Artwork{}, nil, false
	}
	img := fmt.Sprintf("%s/%s/full/843,/0/default.jpg", a.iiif, d.ImageID)
	return Artwork{
		ID:            strconv.Itoa(d.ID),
		Title:         orDefault(d.Title, UntitledTitle),
		Artist:        orDefault(d.ArtistDisplay, UnknownArtist),
		ImageURL:      img,
		LargeImageURL: UpgradeResolution(img),
		Date:          d.DateDisplay,
		Medium:        d.MediumDisplay,
		Department:    d.DepartmentTitle,
		Source:        "artic",
	}, d.TermTitles, true
}
