package artscout

import (
	"math/rand/v2"
	"sync"
)

// session is the per-source record of ids already served to the caller in
// this process lifetime, so repeated random requests do not repeat items.
// Never shared between sources.
type session struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func newSession() *session {
	return &session{used: make(map[string]struct{})}
}

func (s *session) served(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.used[id]
	return ok
}

func (s *session) markServed(id string) {
	s.mu.Lock()
	s.used[id] = struct{}{}
	s.mu.Unlock()
}

// markIfFresh marks id as served and reports whether it was fresh. Check and
// mark happen under one lock so overlapping fetches cannot both claim the
// same id.
func (s *session) markIfFresh(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.used[id]; ok {
		return false
	}
	s.used[id] = struct{}{}
	return true
}

func (s *session) reset() {
	s.mu.Lock()
	s.used = make(map[string]struct{})
	s.mu.Unlock()
}

// freshIDs returns the pool entries not yet served. When fewer than need*2
// remain, the served set is reset first and the whole pool comes back, so
// heavy use cannot starve the sampler. On small pools that can re-serve an
// item delivered moments earlier; accepted trade-off of a best-effort
// shuffle.
func (s *session) freshIDs(pool []string, need int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]string, 0, len(pool))
	for _, id := range pool {
		if _, ok := s.used[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) < need*2 {
		s.used = make(map[string]struct{})
		fresh = append(fresh[:0], pool...)
	}
	return fresh
}

// shuffler wraps a rand source behind a mutex so overlapping fetches into
// the same source can share it. A nil source seeds from the global PCG.
type shuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newShuffler(r *rand.Rand) *shuffler {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &shuffler{r: r}
}

func (s *shuffler) shuffleStrings(v []string) {
	s.mu.Lock()
	s.r.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
	s.mu.Unlock()
}

func (s *shuffler) shuffleArtworks(v []Artwork) {
	s.mu.Lock()
	s.r.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
	s.mu.Unlock()
}

func (s *shuffler) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// pickRandom shuffles fetched candidates and returns up to count items not
// yet served this session, marking every pick as served. The served set is
// reset first when fewer than count*2 unserved candidates remain (same
// starvation rule as session.freshIDs). Sampling stops after count*5
// attempts rather than looping on an exhausted batch.
func pickRandom(sess *session, sh *shuffler, items []Artwork, count int) []Artwork {
	if count <= 0 || len(items) == 0 {
		return nil
	}

	sh.shuffleArtworks(items)

	unserved := 0
	for _, it := range items {
		if !sess.served(it.ID) {
			unserved++
		}
	}
	if unserved < count*2 {
		sess.reset()
	}

	out := make([]Artwork, 0, count)
	attempts := 0
	for _, it := range items {
		if len(out) >= count || attempts >= count*5 {
			break
		}
		attempts++
		if !sess.markIfFresh(it.ID) {
			continue
		}
		out = append(out, it)
	}
	return out
}
