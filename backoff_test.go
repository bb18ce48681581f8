package artscout

import (
	"context"
	"testing"
	"time"
)

func TestThrottleGateLadder(t *testing.T) {
	t.Parallel()

	g := newThrottleGate(0, 0)
	if g.active() {
		t.Fatal("new gate must start idle")
	}

	g.throttled()
	if got := g.delaySeconds(); got != defaultInitialBackoff {
		t.Errorf("after first throttle delay = %d, want %d", got, defaultInitialBackoff)
	}

	// ceil(5 * 1.5) = 8
	g.throttled()
	if got := g.delaySeconds(); got != 8 {
		t.Errorf("after second throttle delay = %d, want 8", got)
	}

	g.succeeded()
	if g.active() {
		t.Error("success must reset the ladder")
	}
}

func TestThrottleGateCustomInitial(t *testing.T) {
	t.Parallel()

	g := newThrottleGate(0, 2)
	g.throttled()
	if got := g.delaySeconds(); got != 2 {
		t.Errorf("delay = %d, want 2", got)
	}
	g.throttled() // ceil(2*1.5) = 3
	if got := g.delaySeconds(); got != 3 {
		t.Errorf("delay = %d, want 3", got)
	}
	g.throttled() // ceil(3*1.5) = 5
	if got := g.delaySeconds(); got != 5 {
		t.Errorf("delay = %d, want 5", got)
	}
}

func TestThrottleGateWaitChargesPenalty(t *testing.T) {
	t.Parallel()

	g := newThrottleGate(0, 0)
	var slept []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	ctx := context.Background()
	if err := g.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("idle wait slept %v, want nothing", slept)
	}

	g.throttled() // 5

	// The wait sleeps the pending 5s and grows the penalty to 8, even
	// though no new throttle response arrived.
	if err := g.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("slept %v, want [5s]", slept)
	}
	if got := g.delaySeconds(); got != 8 {
		t.Errorf("delay after wait = %d, want 8", got)
	}

	if err := g.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(slept) != 2 || slept[1] != 8*time.Second {
		t.Fatalf("slept %v, want [5s 8s]", slept)
	}
}

func TestThrottleGateWaitCancelled(t *testing.T) {
	t.Parallel()

	g := newThrottleGate(0, 0)
	g.throttled()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.wait(ctx); err == nil {
		t.Error("wait with cancelled context must fail")
	}
}

func TestThrottleGateInfo(t *testing.T) {
	t.Parallel()

	g := newThrottleGate(0, 0)
	if g.info() != "" {
		t.Error("idle gate must have empty info")
	}
	g.throttled()
	if g.info() == "" {
		t.Error("throttled gate must report a status")
	}
}
