// Package ratelimit tracks per-endpoint-class request budgets from
// SmartThings rate-limit response headers and computes the wait needed to
// avoid requests that are guaranteed to be rejected.
package ratelimit

import (
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Class groups API paths that share one rate-limit budget. SmartThings
// enforces separate budgets per class.
type Class string

const (
	// ClassDevices covers device listing and status reads.
	ClassDevices Class = "devices"

	// ClassCommands covers device command execution.
	ClassCommands Class = "commands"

	// ClassLocations covers locations, rooms, and scenes.
	ClassLocations Class = "locations"

	// ClassDefault is everything else.
	ClassDefault Class = "default"
)

// Classify maps an API path to its endpoint class.
func Classify(method, path string) Class {
	trimmed := strings.TrimPrefix(path, "/")
	switch {
	case strings.HasPrefix(trimmed, "devices") && strings.HasSuffix(trimmed, "/commands"):
		return ClassCommands
	case strings.HasPrefix(trimmed, "devices"):
		return ClassDevices
	case strings.HasPrefix(trimmed, "locations"), strings.HasPrefix(trimmed, "scenes"):
		return ClassLocations
	}
	return ClassDefault
}

// Rate-limit headers returned by the SmartThings API.
const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	headerRetry     = "Retry-After"
)

// maxJitter is the upper bound on the random slack added to waits, so that
// concurrent callers don't all fire at the instant the window resets.
const maxJitter = 1 * time.Second

// Penalty backoff applied per consecutive 429 on a class, on top of whatever
// the reset headers say.
const (
	penaltyBase = 1 * time.Second
	penaltyCap  = 60 * time.Second
)

// Budget is the throttle state for one endpoint class, as last reported by
// the platform. Before the first response is observed the budget is absent
// and requests proceed optimistically.
type Budget struct {
	// Limit is the maximum requests per window.
	Limit int

	// Remaining is the requests left in the current window.
	Remaining int

	// Reset is when the window resets.
	Reset time.Time
}

// classState is the mutable tracking state for one class.
type classState struct {
	mu          sync.Mutex
	budget      *Budget
	consecutive int       // consecutive 429 responses
	penaltyOff  time.Time // no requests before this when penalized
}

// Tracker tracks budgets for all endpoint classes. Classes are independent;
// updates on one never delay another.
type Tracker struct {
	mu      sync.Mutex
	classes map[Class]*classState
	clock   clock.Clock
	jitter  func(time.Duration) time.Duration
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithClock sets the clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = clk
	}
}

// WithJitter sets the jitter function, for deterministic tests.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(t *Tracker) {
		t.jitter = fn
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		classes: make(map[Class]*classState),
		clock:   clock.WallClock,
		jitter: func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) state(class Class) *classState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.classes[class]
	if !ok {
		cs = &classState{}
		t.classes[class] = cs
	}
	return cs
}

// Wait returns how long the caller must sleep before issuing a request on
// the class. Zero means go ahead. Non-zero when the budget is exhausted and
// the reset is in the future, or while a 429 penalty is in force; issuing
// the call anyway would waste a request on a guaranteed rejection.
func (t *Tracker) Wait(class Class) time.Duration {
	cs := t.state(class)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := t.clock.Now()
	var wait time.Duration

	if cs.penaltyOff.After(now) {
		wait = cs.penaltyOff.Sub(now)
	}

	if cs.budget != nil && cs.budget.Remaining == 0 && cs.budget.Reset.After(now) {
		if untilReset := cs.budget.Reset.Sub(now); untilReset > wait {
			wait = untilReset
		}
	}

	if wait > 0 {
		wait += t.jitter(maxJitter)
		slog.Debug("Rate limit wait required",
			"class", string(class),
			"wait", wait,
		)
	}
	return wait
}

// Observe records the rate-limit headers of a response. On 429 it treats the
// response as authoritative regardless of the tracked budget and applies an
// exponential penalty that doubles per consecutive throttle event.
func (t *Tracker) Observe(class Class, statusCode int, header http.Header) {
	cs := t.state(class)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := t.clock.Now()

	if b := parseBudget(header, now); b != nil {
		cs.budget = b
	}

	if statusCode == http.StatusTooManyRequests {
		cs.consecutive++
		penalty := penaltyBase << (cs.consecutive - 1)
		if penalty > penaltyCap || penalty <= 0 {
			penalty = penaltyCap
		}

		// Prefer the server's own hint when present.
		off := now.Add(penalty)
		if retryAfter := parseRetryAfter(header, now); retryAfter.After(off) {
			off = retryAfter
		}
		if cs.budget != nil && cs.budget.Reset.After(off) {
			off = cs.budget.Reset
		}
		cs.penaltyOff = off

		slog.Warn("Rate limited by platform",
			"class", string(class),
			"consecutive", cs.consecutive,
			"retry_at", off,
		)
		return
	}

	// Any non-429 clears the penalty streak.
	cs.consecutive = 0
	cs.penaltyOff = time.Time{}
}

// Budget returns a copy of the current budget for a class, or nil if no
// response has been observed yet.
func (t *Tracker) Budget(class Class) *Budget {
	cs := t.state(class)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.budget == nil {
		return nil
	}
	b := *cs.budget
	return &b
}

// parseBudget reads the limit/remaining/reset headers. Returns nil when the
// headers are absent or malformed. Remaining is clamped to the limit.
func parseBudget(header http.Header, now time.Time) *Budget {
	limitStr := header.Get(headerLimit)
	remainingStr := header.Get(headerRemaining)
	if limitStr == "" || remainingStr == "" {
		return nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return nil
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil
	}
	if remaining > limit {
		remaining = limit
	}
	if remaining < 0 {
		remaining = 0
	}

	b := &Budget{Limit: limit, Remaining: remaining}
	if resetStr := header.Get(headerReset); resetStr != "" {
		b.Reset = parseReset(resetStr, now)
	}
	return b
}

// parseReset accepts either epoch seconds/milliseconds or a delta in seconds,
// whichever interpretation yields a plausible instant.
func parseReset(value string, now time.Time) time.Time {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	switch {
	case n > 1e12: // epoch milliseconds
		return time.UnixMilli(n)
	case n > 1e9: // epoch seconds
		return time.Unix(n, 0)
	default: // delta seconds
		return now.Add(time.Duration(n) * time.Second)
	}
}

// parseRetryAfter reads a Retry-After header given in delta seconds.
func parseRetryAfter(header http.Header, now time.Time) time.Time {
	value := header.Get(headerRetry)
	if value == "" {
		return time.Time{}
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return time.Time{}
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
