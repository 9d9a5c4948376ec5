// Package health serves the /livez and /readyz endpoints of the checkout API.
//
// Checks run in background goroutines and flip state only after a run of
// consecutive results. A failing readiness check is either critical (the audit database: no order
// can be placed without it) or degraded (the courier: orders are still
// placed, just without a consignment). Degraded failures are reported on
// /readyz but keep it at 200.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Check states written in the status field.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Option configures a registered check.
type Option func(*monitor)

// WithThresholds sets how many consecutive failures mark a check unhealthy
// and how many consecutive successes mark it healthy again.
func WithThresholds(failures, successes int) Option {
	return func(p *monitor) {
		p.failureThreshold = max(failures, 1)
		p.successThreshold = max(successes, 1)
	}
}

// Degraded marks a readiness check as non-critical.
func Degraded() Option {
	return func(p *monitor) { p.degraded = true }
}

// monitor is one registered check. run is only ever called from the check's
// own goroutine; healthy and lastErr are read concurrently by handlers.
type monitor struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int
	degraded         bool

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newMonitor(name string, timeout time.Duration, check CheckFunc, opts []Option) *monitor {
	p := &monitor{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.healthy.Store(true)
	return p
}

func (p *monitor) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.successThreshold {
		p.healthy.Store(true)
	}
}

func (p *monitor) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// message is what the check reports for p while it is unhealthy.
func (p *monitor) message() string {
	if err := p.err(); err != nil {
		return err.Error()
	}
	return "check is unhealthy"
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*monitor
	readiness []*monitor
	cancel    context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check of the process itself.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newMonitor(name, timeout, check, opts))
}

// AddReadinessCheck registers a check of a dependency needed to serve
// traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newMonitor(name, timeout, check, opts))
}

// Start runs every registered check immediately and then every interval
// until Stop or ctx is done. Register checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	monitors := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, p := range monitors {
		go loop(ctx, p, interval)
	}
}

func loop(ctx context.Context, p *monitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Stop ends the background checks. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag, cleared during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether /readyz would answer 200.
func (h *Health) IsReady() bool {
	r := h.report(h.snapshot(&h.readiness))
	return h.ready.Load() && r.Status != StatusUnhealthy
}

func (h *Health) snapshot(list *[]*monitor) []*monitor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(*list)
}

// report folds check states into a response. Only failing checks are
// listed.
func (h *Health) report(monitors []*monitor) Report {
	r := Report{Status: StatusOK}
	for _, p := range monitors {
		if p.healthy.Load() {
			continue
		}
		if r.Checks == nil {
			r.Checks = make(map[string]string)
		}
		r.Checks[p.name] = p.message()
		switch {
		case !p.degraded:
			r.Status = StatusUnhealthy
		case r.Status == StatusOK:
			r.Status = StatusDegraded
		}
	}
	return r
}

// Report is the body of a health response.
type Report struct {
	Status string
	Checks map[string]string
}

// Encode writes {"status":...,"checks":{...}} with checks in name order;
// checks is omitted when empty.
func (r Report) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("status")
		e.Str(r.Status)
		if len(r.Checks) == 0 {
			return
		}
		names := make([]string, 0, len(r.Checks))
		for name := range r.Checks {
			names = append(names, name)
		}
		slices.Sort(names)
		e.FieldStart("checks")
		e.Obj(func(e *jx.Encoder) {
			for _, name := range names {
				e.FieldStart(name)
				e.Str(r.Checks[name])
			}
		})
	})
}

// LiveEndpoint serves /livez. Every liveness check is critical.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	r := h.report(h.snapshot(&h.liveness))
	if r.Status == StatusDegraded {
		r.Status = StatusOK
	}
	write(w, r)
}

// ReadyEndpoint serves /readyz: 503 when not marked ready or when a
// critical check fails, 200 otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	r := h.report(h.snapshot(&h.readiness))
	if !h.ready.Load() {
		if r.Checks == nil {
			r.Checks = make(map[string]string)
		}
		r.Checks["_readiness"] = "service is not ready"
		r.Status = StatusUnhealthy
	}
	write(w, r)
}

func write(w http.ResponseWriter, r Report) {
	status := http.StatusOK
	if r.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	var e jx.Encoder
	r.Encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
