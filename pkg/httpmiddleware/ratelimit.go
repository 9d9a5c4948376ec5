package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultRateLimitMessage = "Too many requests, please try again shortly"

// Budget is a number of requests a client may make per sliding window.
type Budget struct {
	Max    int
	Window time.Duration
}

// RouteBudget replaces the default budget for one method and path. Each
// route budget is counted separately from the default one.
type RouteBudget struct {
	Method string
	Path   string
	Budget
}

// RateLimitConfig configures per-client request budgets.
type RateLimitConfig struct {
	Default Budget
	Routes  []RouteBudget
	// ClientKey identifies the client. Defaults to the client IP.
	ClientKey func(*http.Request) string
	// Skip exempts requests from limiting, e.g. health checks.
	Skip func(*http.Request) bool
	// Message is the error text of the 429 response.
	Message string
}

// scope is one budget and the counters of every client spending it.
type scope struct {
	name string
	Budget

	mu      sync.Mutex
	clients map[string]*counter
}

// counter holds the hit counts of the current and the previous window. The
// previous count is weighted by how much of it the sliding window still
// covers.
type counter struct {
	start time.Time
	prev  int
	curr  int
}

func newScope(name string, b Budget) *scope {
	return &scope{name: name, Budget: b, clients: make(map[string]*counter)}
}

// slide moves c forward so that now falls into its current window.
func (c *counter) slide(now time.Time, window time.Duration) {
	switch elapsed := now.Sub(c.start); {
	case elapsed < window:
	case elapsed < 2*window:
		c.prev, c.curr = c.curr, 0
		c.start = c.start.Add(window)
	default:
		c.prev, c.curr = 0, 0
		c.start = now.Truncate(window)
	}
}

func (c *counter) estimate(now time.Time, window time.Duration) float64 {
	covered := 1 - float64(now.Sub(c.start))/float64(window)
	return float64(c.prev)*max(covered, 0) + float64(c.curr)
}

// take spends one request of key's budget. It reports the requests left and
// the end of the current window.
func (s *scope) take(key string, now time.Time) (left int, reset time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.clients[key]
	if c == nil {
		c = &counter{start: now.Truncate(s.Window)}
		s.clients[key] = c
	}
	c.slide(now, s.Window)

	reset = c.start.Add(s.Window)
	used := c.estimate(now, s.Window)
	if used >= float64(s.Max) {
		return 0, reset, false
	}
	c.curr++
	return max(int(float64(s.Max)-used-1), 0), reset, true
}

// sweep drops clients that made no request in the last two windows.
func (s *scope) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.clients {
		if now.Sub(c.start) >= 2*s.Window {
			delete(s.clients, key)
		}
	}
}

type limiter struct {
	fallback  *scope
	routes    map[string]*scope
	clientKey func(*http.Request) string
	skip      func(*http.Request) bool
	message   string
	now       func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		fallback:  newScope("default", cfg.Default),
		routes:    make(map[string]*scope, len(cfg.Routes)),
		clientKey: cfg.ClientKey,
		skip:      cfg.Skip,
		message:   cfg.Message,
		now:       time.Now,
	}
	for _, rb := range cfg.Routes {
		name := rb.Method + " " + rb.Path
		l.routes[name] = newScope(name, rb.Budget)
	}
	if l.clientKey == nil {
		l.clientKey = ClientIP
	}
	if l.message == "" {
		l.message = defaultRateLimitMessage
	}
	return l
}

func (l *limiter) scopeFor(r *http.Request) *scope {
	if s, ok := l.routes[r.Method+" "+r.URL.Path]; ok {
		return s
	}
	return l.fallback
}

func (l *limiter) sweep(now time.Time) {
	l.fallback.sweep(now)
	for _, s := range l.routes {
		s.sweep(now)
	}
}

// run sweeps idle clients until ctx is done.
func (l *limiter) run(ctx context.Context) {
	shortest := l.fallback.Window
	for _, s := range l.routes {
		shortest = min(shortest, s.Window)
	}
	ticker := time.NewTicker(2 * shortest)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.skip != nil && l.skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		s := l.scopeFor(r)
		now := l.now()
		left, reset, ok := s.take(l.clientKey(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(s.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(reset.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each client to its budget over a sliding window and
// answers 429 with the JSON error body once the budget is spent. Every
// limited response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Idle clients are forgotten until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.run(ctx)
	return l.middleware
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
