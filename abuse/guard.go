// Package abuse gates submission attempts with a cooldown and a sliding
// window rate limit, both persisted through the local store so restarts do
// not reset a user's budget.
package abuse

import (
	"strconv"
	"time"

	"github.com/apex/log"

	"github.com/yobozavrik/SupportFeedback/storage"
)

const (
	// Cooldown is the minimum gap after a successful submission.
	Cooldown = 15 * time.Second
	// Window is the rolling rate-limit window.
	Window = 60 * time.Second
	// WindowLimit is the number of successful submissions allowed per window.
	WindowLimit = 5
)

// Guard enforces the cooldown plus window policy for one identity.
type Guard struct {
	store storage.Store
	now   func() time.Time
}

// NewGuard creates a Guard over the given store.
func NewGuard(store storage.Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// NewGuardAt creates a Guard with an injectable clock for tests.
func NewGuardAt(store storage.Store, now func() time.Time) *Guard {
	return &Guard{store: store, now: now}
}

// UnderCooldown reports whether the last successful submission was less
// than Cooldown ago.
func (g *Guard) UnderCooldown() bool {
	last := g.readMillis(storage.KeyLastSubmit)
	return g.now().UnixMilli()-last < Cooldown.Milliseconds()
}

// CanProceed lazily rolls the window and reports whether the current window
// still has budget. It does not consume any.
func (g *Guard) CanProceed() bool {
	count := g.rollWindow()
	return count < WindowLimit
}

// Allow applies the full policy: not under cooldown and window budget left.
func (g *Guard) Allow() (bool, Rejection) {
	if g.UnderCooldown() {
		return false, RejectedCooldown
	}
	if !g.CanProceed() {
		return false, RejectedQuota
	}
	return true, 0
}

// RecordAttempt starts the cooldown and consumes one unit of window budget,
// in that order. Callers invoke it only after the webhook confirmed the
// submission, so failed sends never cost budget.
func (g *Guard) RecordAttempt() {
	now := g.now().UnixMilli()
	count := g.rollWindow()
	g.store.Set(storage.KeyLastSubmit, strconv.FormatInt(now, 10))
	g.store.Set(storage.KeySubmitCount, strconv.FormatInt(count+1, 10))
	log.Debugf("Recorded submission: window count now %d", count+1)
}

// rollWindow resets the window when it has expired and returns the current
// window count.
func (g *Guard) rollWindow() int64 {
	now := g.now().UnixMilli()
	windowStart := g.readMillis(storage.KeySubmitWindow)
	if now-windowStart > Window.Milliseconds() {
		g.store.Set(storage.KeySubmitWindow, strconv.FormatInt(now, 10))
		g.store.Set(storage.KeySubmitCount, "0")
		return 0
	}
	return g.readMillis(storage.KeySubmitCount)
}

// readMillis parses a stored integer, treating absent or corrupt values
// as zero.
func (g *Guard) readMillis(key string) int64 {
	raw, ok := g.store.Get(key)
	if !ok || raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warnf("Corrupt value for %s, treating as 0: %v", key, err)
		return 0
	}
	return v
}

// Rejection distinguishes the two user-facing refusal reasons.
type Rejection int

const (
	// RejectedCooldown means the 15 second gap has not elapsed yet.
	RejectedCooldown Rejection = iota + 1
	// RejectedQuota means the per-minute budget is spent.
	RejectedQuota
)

func (r Rejection) String() string {
	switch r {
	case RejectedCooldown:
		return "submissions are too frequent, please wait a few seconds"
	case RejectedQuota:
		return "submission limit reached, please try again later"
	default:
		return "submission not allowed"
	}
}
