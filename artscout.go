package artscout

import "context"

// AllSources is the active-source sentinel meaning "fan out to every
// registered source".
const AllSources = "all"

// Defaults substituted for missing upstream metadata.
const (
	UntitledTitle = "Untitled"
	UnknownArtist = "Unknown Artist"
)

// Artwork is the common item shape every source maps its upstream payloads
// into. Once a source returns an Artwork, ImageURL is non-empty and does not
// match any low-resolution marker; items that cannot satisfy that are
// dropped inside the source.
type Artwork struct {
	ID            string // opaque identifier, scoped to the originating source
	Title         string
	Artist        string
	ImageURL      string
	LargeImageURL string // optional full-size variant, "" when none is known
	Date          string // free text, upstream formats vary wildly
	Medium        string // free text
	Department    string // free text
	Source        string // name of the originating source
}

// Source integrates one upstream image API behind the common contract.
// Implementations own their whole session state (served-id set, backoff
// ladder, request pacing) and are safe for concurrent use: overlapping calls
// into the same Source serialize access to that state internally.
type Source interface {
	// Name returns the unique source identifier, e.g. "met".
	Name() string

	// Available reports whether the source is structurally usable at all.
	// An unavailable source is skipped by every aggregate operation.
	Available() bool

	// RateLimited reports whether the source is currently riding its
	// backoff ladder after an upstream throttle response.
	RateLimited() bool

	// RateLimitInfo returns a human-readable throttle status, or "" when
	// the source is not throttled.
	RateLimitInfo() string

	// RandomArtworks returns up to count artworks, best effort. Fewer (or
	// zero) results on partial upstream failure are normal; more than count
	// never is. Ids already served in this session are skipped.
	RandomArtworks(ctx context.Context, count int) ([]Artwork, error)

	// SearchArtworks returns up to limit artworks matching query, starting
	// at the logical result offset. The source translates offset into its
	// upstream's native paging unit.
	SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error)

	// ArtworkByID resolves a single artwork. Returns an error wrapping
	// ErrNotFound when the id does not exist upstream.
	ArtworkByID(ctx context.Context, id string) (*Artwork, error)

	// ClearCache forgets the served-id set; force also resets the backoff
	// ladder.
	ClearCache(force bool)
}
