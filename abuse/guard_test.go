package abuse

import (
	"testing"
	"time"

	"github.com/yobozavrik/SupportFeedback/storage"
)

// clock is a manually advanced test clock.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard() (*Guard, *clock) {
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	return NewGuardAt(storage.NewMemStore(), c.now), c
}

func TestCooldownAfterSuccess(t *testing.T) {
	g, c := newTestGuard()

	if g.UnderCooldown() {
		t.Fatal("fresh guard must not be under cooldown")
	}

	g.RecordAttempt()
	if !g.UnderCooldown() {
		t.Error("expected cooldown immediately after a recorded attempt")
	}

	c.advance(14*time.Second + 999*time.Millisecond)
	if !g.UnderCooldown() {
		t.Error("expected cooldown at 14.999s")
	}

	c.advance(1 * time.Millisecond)
	if g.UnderCooldown() {
		t.Error("cooldown must expire at exactly 15s")
	}
}

func TestWindowQuota(t *testing.T) {
	g, c := newTestGuard()

	// Five successes inside one window are fine; the sixth is not.
	for i := 0; i < 5; i++ {
		if !g.CanProceed() {
			t.Fatalf("attempt %d: expected budget left", i+1)
		}
		g.RecordAttempt()
		c.advance(2 * time.Second)
	}

	if g.CanProceed() {
		t.Error("6th attempt inside the window must be rejected")
	}

	// Once the window expires the budget resets.
	c.advance(60 * time.Second)
	if !g.CanProceed() {
		t.Error("expected a fresh window after expiry")
	}
}

func TestAllowDistinguishesRejections(t *testing.T) {
	g, c := newTestGuard()

	ok, _ := g.Allow()
	if !ok {
		t.Fatal("fresh guard must allow")
	}

	g.RecordAttempt()
	if ok, why := g.Allow(); ok || why != RejectedCooldown {
		t.Errorf("expected cooldown rejection, got ok=%v why=%v", ok, why)
	}

	// Exhaust the window with the cooldown out of the way each time.
	for i := 0; i < 4; i++ {
		c.advance(15 * time.Second)
		g.RecordAttempt()
	}
	c.advance(15 * time.Second)

	// All five slots are used but the window itself has rolled by now
	// (75s elapsed), so re-fill a fresh window to test the quota path.
	for i := 0; i < 5; i++ {
		g.RecordAttempt()
	}
	c.advance(16 * time.Second)
	if ok, why := g.Allow(); ok || why != RejectedQuota {
		t.Errorf("expected quota rejection, got ok=%v why=%v", ok, why)
	}
}

func TestFailedAttemptsConsumeNothing(t *testing.T) {
	g, _ := newTestGuard()

	// Checking is free: only RecordAttempt consumes budget.
	for i := 0; i < 20; i++ {
		if !g.CanProceed() {
			t.Fatal("checks alone must never consume budget")
		}
		if g.UnderCooldown() {
			t.Fatal("checks alone must never start a cooldown")
		}
	}
}

func TestCorruptCountersTreatedAsZero(t *testing.T) {
	store := storage.NewMemStore()
	store.Set(storage.KeyLastSubmit, "not-a-number")
	store.Set(storage.KeySubmitWindow, "{}")
	store.Set(storage.KeySubmitCount, "")

	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	g := NewGuardAt(store, c.now)

	if g.UnderCooldown() {
		t.Error("corrupt last-submit must read as 0")
	}
	if !g.CanProceed() {
		t.Error("corrupt counters must not lock the user out")
	}
}
