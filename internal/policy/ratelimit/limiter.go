// Package ratelimit implements a fixed-window call budget per external service.
package ratelimit

import (
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// Window is the budget for one service.
type Window struct {
	Length   time.Duration
	MaxCalls int
}

// Config holds rate limiter configuration. Services without an entry use
// Default.
type Config struct {
	Default  Window
	Services map[string]Window
}

type windowState struct {
	start time.Time
	calls int
}

// Limiter tracks API call budget per service. It is safe for concurrent use;
// check and increment happen under one lock.
type Limiter struct {
	mu      sync.Mutex
	clock   gsc.Clock
	cfg     Config
	windows map[string]*windowState
}

var _ gsc.RateLimiter = (*Limiter)(nil)

// New creates a new Limiter.
func New(cfg Config, clock gsc.Clock) *Limiter {
	if cfg.Default.Length <= 0 {
		cfg.Default.Length = time.Minute
	}
	return &Limiter{
		clock:   clock,
		cfg:     cfg,
		windows: make(map[string]*windowState),
	}
}

func (l *Limiter) window(service string) Window {
	if w, ok := l.cfg.Services[service]; ok && w.Length > 0 {
		return w
	}
	return l.cfg.Default
}

// current returns the live window for service, resetting it once the clock
// has crossed start+length. Callers hold l.mu.
func (l *Limiter) current(service string, now time.Time) (*windowState, Window) {
	win := l.window(service)
	st, ok := l.windows[service]
	if !ok || !now.Before(st.start.Add(win.Length)) {
		st = &windowState{start: now}
		l.windows[service] = st
	}
	return st, win
}

// TryAcquire permits a call while the window has budget left. Every permitted
// call counts, whether or not it later succeeds.
func (l *Limiter) TryAcquire(service string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, win := l.current(service, l.clock.Now())
	if st.calls >= win.MaxCalls {
		metrics.ObserveRateLimitDenied(service)
		return false
	}
	st.calls++
	return true
}

// State returns a snapshot of the service's current window.
func (l *Limiter) State(service string) gsc.RateLimitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, win := l.current(service, l.clock.Now())
	return gsc.RateLimitState{
		Service:           service,
		WindowStart:       st.start,
		CallsInWindow:     st.calls,
		WindowLength:      win.Length,
		MaxCallsPerWindow: win.MaxCalls,
	}
}

// Restore seeds a service window, typically from the usage log at startup.
// A window that has already expired is ignored.
func (l *Limiter) Restore(service string, windowStart time.Time, calls int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	win := l.window(service)
	if !l.clock.Now().Before(windowStart.Add(win.Length)) {
		return
	}
	l.windows[service] = &windowState{start: windowStart, calls: calls}
}

// WindowLength reports the configured window for service.
func (l *Limiter) WindowLength(service string) time.Duration {
	return l.window(service).Length
}
