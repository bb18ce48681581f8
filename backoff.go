package artscout

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultInitialBackoff seeds the penalty ladder on the first throttle
// response, in seconds.
const defaultInitialBackoff = 5

// throttleGate paces requests to one upstream. It combines a fixed minimum
// inter-request interval with a penalty ladder that starts on an explicit
// throttle response and climbs by ceil(n*1.5) until a success resets it.
// The pending penalty is slept off and grown before every outbound request,
// so the ladder keeps climbing during a throttle episode even when the
// upstream stops sending fresh 429s.
type throttleGate struct {
	mu      sync.Mutex
	seconds int // current penalty, 0 = idle
	initial int
	limiter *rate.Limiter

	// sleep is swapped out in tests for a recording stub.
	sleep func(ctx context.Context, d time.Duration) error
}

// newThrottleGate builds a gate with the given minimum spacing between
// requests. initialSeconds <= 0 uses the default ladder seed.
func newThrottleGate(minInterval time.Duration, initialSeconds int) *throttleGate {
	if initialSeconds <= 0 {
		initialSeconds = defaultInitialBackoff
	}
	return &throttleGate{
		initial: initialSeconds,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// wait blocks until the next request may go out: a pending penalty is slept
// off (and grown), then the minimum inter-request interval is enforced.
// Returns early with the context error when ctx is cancelled mid-wait.
func (g *throttleGate) wait(ctx context.Context) error {
	g.mu.Lock()
	penalty := g.seconds
	if penalty > 0 {
		g.seconds = growBackoff(penalty)
	}
	g.mu.Unlock()

	if penalty > 0 {
		if err := g.sleep(ctx, time.Duration(penalty)*time.Second); err != nil {
			return err
		}
	}
	return g.limiter.Wait(ctx)
}

// throttled records an explicit throttle response from the upstream.
func (g *throttleGate) throttled() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seconds == 0 {
		g.seconds = g.initial
	} else {
		g.seconds = growBackoff(g.seconds)
	}
}

// succeeded resets the ladder after any successful response.
func (g *throttleGate) succeeded() {
	g.mu.Lock()
	g.seconds = 0
	g.mu.Unlock()
}

// active reports whether a penalty is pending.
func (g *throttleGate) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seconds > 0
}

// delaySeconds returns the pending penalty.
func (g *throttleGate) delaySeconds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seconds
}

// info returns a human-readable throttle status, or "" when idle.
func (g *throttleGate) info() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seconds == 0 {
		return ""
	}
	return fmt.Sprintf("throttled, next request delayed %ds", g.seconds)
}

func growBackoff(n int) int {
	return int(math.Ceil(float64(n) * 1.5))
}
