package artscout

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
)

func testShuffler() *shuffler {
	return newShuffler(rand.New(rand.NewPCG(1, 2)))
}

func TestSessionFreshIDs(t *testing.T) {
	t.Parallel()

	pool := make([]string, 10)
	for i := range pool {
		pool[i] = strconv.Itoa(i)
	}

	s := newSession()
	for i := 0; i < 7; i++ {
		s.markServed(strconv.Itoa(i))
	}

	// 3 unserved ids remain; need=1 requires only 2, so no reset.
	if got := s.freshIDs(pool, 1); len(got) != 3 {
		t.Errorf("freshIDs(need=1) returned %d ids, want 3", len(got))
	}

	// need=2 requires 4 unserved; the set resets and the whole pool
	// comes back.
	if got := s.freshIDs(pool, 2); len(got) != len(pool) {
		t.Errorf("freshIDs(need=2) returned %d ids, want %d", len(got), len(pool))
	}
	if s.served("0") {
		t.Error("reset must forget served ids")
	}
}

func TestSessionMarkIfFreshIsExclusive(t *testing.T) {
	t.Parallel()

	s := newSession()
	const workers = 16

	var wg sync.WaitGroup
	claims := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims <- s.markIfFresh("42")
		}()
	}
	wg.Wait()
	close(claims)

	// Exactly one concurrent caller may claim a fresh id.
	won := 0
	for claimed := range claims {
		if claimed {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d callers claimed the same id, want 1", won)
	}
}

func TestPickRandomDedupsAcrossCalls(t *testing.T) {
	t.Parallel()

	sess := newSession()
	sh := testShuffler()

	batch := func() []Artwork {
		items := make([]Artwork, 10)
		for i := range items {
			items[i] = Artwork{ID: strconv.Itoa(i), ImageURL: "https://x/full/pic.jpg"}
		}
		return items
	}

	first := pickRandom(sess, sh, batch(), 3)
	if len(first) != 3 {
		t.Fatalf("first pick returned %d items, want 3", len(first))
	}

	second := pickRandom(sess, sh, batch(), 3)
	if len(second) != 3 {
		t.Fatalf("second pick returned %d items, want 3", len(second))
	}

	seen := make(map[string]bool)
	for _, a := range first {
		seen[a.ID] = true
	}
	for _, a := range second {
		if seen[a.ID] {
			t.Errorf("id %s served twice within one session", a.ID)
		}
	}
}

func TestPickRandomNeverExceedsCount(t *testing.T) {
	t.Parallel()

	sess := newSession()
	sh := testShuffler()

	items := []Artwork{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := pickRandom(sess, sh, items, 5)
	if len(got) > 5 {
		t.Errorf("pick returned %d items, want at most 5", len(got))
	}
	if len(got) != 3 {
		t.Errorf("pick returned %d items, want all 3 candidates", len(got))
	}
}

func TestPickRandomResetsSmallPool(t *testing.T) {
	t.Parallel()

	sess := newSession()
	sh := testShuffler()

	items := func() []Artwork {
		return []Artwork{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	}

	// Exhaust the pool, then ask again: the served set resets rather than
	// returning nothing forever.
	pickRandom(sess, sh, items(), 4)
	again := pickRandom(sess, sh, items(), 4)
	if len(again) == 0 {
		t.Error("exhausted pool must reset instead of starving")
	}
}
