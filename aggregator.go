package artscout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// DefaultMinPerSource is the per-source floor when splitting a random
// request across the fan-out set.
const DefaultMinPerSource = 9

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 20

// Aggregator owns the set of registered sources and routes each request
// either straight to the active source or fanned out across every available
// one, merging, deduplicating and trimming the results. Per-source failures
// during a fan-out degrade to empty contributions; only "nothing can serve
// this at all" surfaces as an error.
type Aggregator struct {
	mu      sync.RWMutex
	order   []string // registration order, used for fallback scans
	sources map[string]Source
	active  string
	sh      *shuffler
	minPer  int
}

// AggregatorConfig tunes the aggregator. Zero values mean defaults.
type AggregatorConfig struct {
	// Rand seeds merge shuffling; nil uses a process-global source.
	Rand *rand.Rand
	// MinPerSource overrides DefaultMinPerSource.
	MinPerSource int
}

// NewAggregator builds an aggregator with the given sources registered in
// order. The active selector starts at AllSources.
func NewAggregator(cfg AggregatorConfig, sources ...Source) *Aggregator {
	minPer := cfg.MinPerSource
	if minPer <= 0 {
		minPer = DefaultMinPerSource
	}
	a := &Aggregator{
		sources: make(map[string]Source),
		active:  AllSources,
		sh:      newShuffler(cfg.Rand),
		minPer:  minPer,
	}
	for _, s := range sources {
		a.Register(s)
	}
	return a
}

// Register adds a source under its name. Re-registering a name swaps the
// source in place, keeping its position in the fallback order.
func (a *Aggregator) Register(s Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := s.Name()
	if _, ok := a.sources[name]; !ok {
		a.order = append(a.order, name)
	}
	a.sources[name] = s
}

// Unregister removes a source. Removing the active source resets the
// selector to AllSources.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sources[name]; !ok {
		return
	}
	delete(a.sources, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	if a.active == name {
		a.active = AllSources
	}
}

// Services returns the registered source names in registration order.
func (a *Aggregator) Services() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Service looks up one source by name.
func (a *Aggregator) Service(name string) (Source, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sources[name]
	return s, ok
}

// SetActive selects the source every subsequent request routes to, or
// AllSources for fan-out.
func (a *Aggregator) SetActive(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name != AllSources {
		if _, ok := a.sources[name]; !ok {
			return fmt.Errorf("unknown source %q", name)
		}
	}
	a.active = name
	return nil
}

// Active returns the current selector.
func (a *Aggregator) Active() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// snapshot returns the sources in registration order plus the selector, so
// a fan-out never holds the lock across network calls.
func (a *Aggregator) snapshot() ([]Source, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Source, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.sources[name])
	}
	return out, a.active
}

// fanoutSet narrows registered sources down to those that can serve a
// fan-out right now. The error distinguishes "everything throttled"
// (RateLimitError) from "nothing available at all" (UnavailableError).
func fanoutSet(registered []Source) ([]Source, error) {
	if len(registered) == 0 {
		return nil, &UnavailableError{Source: AllSources}
	}
	var available, ready []Source
	for _, s := range registered {
		if !s.Available() {
			continue
		}
		available = append(available, s)
		if !s.RateLimited() {
			ready = append(ready, s)
		}
	}
	if len(available) == 0 {
		return nil, &UnavailableError{Source: AllSources}
	}
	if len(ready) == 0 {
		return nil, &RateLimitError{Source: AllSources}
	}
	return ready, nil
}

// RandomArtworks returns up to count artworks. With a specific active
// source the call goes straight there and its error surfaces unchanged;
// with AllSources the request is split across every ready source, failures
// degrade to empty contributions, and the merged results are shuffled and
// trimmed.
func (a *Aggregator) RandomArtworks(ctx context.Context, count int) ([]Artwork, error) {
	if count <= 0 {
		return nil, nil
	}

	registered, active := a.snapshot()
	if active != AllSources {
		return a.direct(active).RandomArtworks(ctx, count)
	}

	ready, err := fanoutSet(registered)
	if err != nil {
		return nil, err
	}

	per := perSourceCount(count, len(ready), a.minPer)
	parts := a.fanout(ctx, ready, func(ctx context.Context, s Source) ([]Artwork, error) {
		return s.RandomArtworks(ctx, per)
	})

	var merged []Artwork
	for _, p := range parts {
		merged = append(merged, p...)
	}
	a.sh.shuffleArtworks(merged)
	if len(merged) > count {
		merged = merged[:count]
	}
	return merged, nil
}

// SearchArtworks returns up to limit artworks matching query starting at
// the logical offset. Fan-out splits both limit and offset evenly across
// the ready sources; results concatenate in source registration order.
func (a *Aggregator) SearchArtworks(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	registered, active := a.snapshot()
	if active != AllSources {
		return a.direct(active).SearchArtworks(ctx, query, limit, offset)
	}

	ready, err := fanoutSet(registered)
	if err != nil {
		return nil, err
	}

	perLimit := limit/len(ready) + 1
	perOffset := offset / len(ready)
	parts := a.fanout(ctx, ready, func(ctx context.Context, s Source) ([]Artwork, error) {
		return s.SearchArtworks(ctx, query, perLimit, perOffset)
	})

	var merged []Artwork
	for _, p := range parts {
		merged = append(merged, p...)
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// ArtworkByID resolves an id against the sources. preferred (may be "") is
// tried first; every other source follows in registration order. Individual
// failures are swallowed: the id format is not unique across sources, so a
// miss anywhere is expected. Exhaustion is a soft miss, not an error.
func (a *Aggregator) ArtworkByID(ctx context.Context, id, preferred string) *Artwork {
	registered, _ := a.snapshot()

	try := func(s Source) *Artwork {
		if s == nil || !s.Available() {
			return nil
		}
		art, err := s.ArtworkByID(ctx, id)
		if err != nil {
			slog.Debug("artscout: by-id lookup failed", "source", s.Name(), "id", id, "error", err)
			return nil
		}
		return art
	}

	if preferred != "" {
		if s, ok := a.Service(preferred); ok {
			if art := try(s); art != nil {
				return art
			}
		}
	}
	for _, s := range registered {
		if s.Name() == preferred {
			continue
		}
		if art := try(s); art != nil {
			return art
		}
	}
	return nil
}

// ClearCaches forwards to every registered source.
func (a *Aggregator) ClearCaches(force bool) {
	registered, _ := a.snapshot()
	for _, s := range registered {
		s.ClearCache(force)
	}
}

// RateLimitStatus maps source name to throttle status for every source
// currently in backoff.
func (a *Aggregator) RateLimitStatus() map[string]string {
	registered, _ := a.snapshot()
	out := make(map[string]string)
	for _, s := range registered {
		if s.RateLimited() {
			out[s.Name()] = s.RateLimitInfo()
		}
	}
	return out
}

// direct resolves the active source for single-source routing. A stale or
// disabled selection degrades to an unavailableSource stub so the caller
// gets a typed error instead of a panic.
func (a *Aggregator) direct(name string) Source {
	s, ok := a.Service(name)
	if !ok || !s.Available() {
		return unavailableSource{name: name}
	}
	return s
}

// fanout issues one call per source and waits for all of them. A failing
// source contributes an empty slice; sibling calls are never cancelled.
// parts comes back indexed like sources, preserving order for callers that
// concatenate.
func (a *Aggregator) fanout(ctx context.Context, sources []Source, call func(context.Context, Source) ([]Artwork, error)) [][]Artwork {
	parts := make([][]Artwork, len(sources))
	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			items, err := call(ctx, s)
			if err != nil {
				slog.Warn("artscout: source failed during fan-out", "source", s.Name(), "error", err)
				return
			}
			parts[i] = items
		}(i, s)
	}
	wg.Wait()
	return parts
}

// perSourceCount splits a random request: every source gets the floor, and
// any demand beyond floor*n is shared evenly, rounded up.
func perSourceCount(count, n, minPer int) int {
	base := minPer * n
	if count <= base {
		return minPer
	}
	extra := count - base
	return minPer + (extra+n-1)/n
}

// unavailableSource is the null object behind direct() for a missing or
// disabled active source.
type unavailableSource struct{ name string }

func (u unavailableSource) Name() string          { return u.name }
func (u unavailableSource) Available() bool       { return false }
func (u unavailableSource) RateLimited() bool     { return false }
func (u unavailableSource) RateLimitInfo() string { return "" }
func (u unavailableSource) ClearCache(bool)       {}

func (u unavailableSource) RandomArtworks(context.Context, int) ([]Artwork, error) {
	return nil, &UnavailableError{Source: u.name}
}

func (u unavailableSource) SearchArtworks(context.Context, string, int, int) ([]Artwork, error) {
	return nil, &UnavailableError{Source: u.name}
}

func (u unavailableSource) ArtworkByID(context.Context, string) (*Artwork, error) {
	return nil, &UnavailableError{Source: u.name}
}
