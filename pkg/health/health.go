// Package health reports liveness and readiness of the storefront process.
//
// Every check runs on its own ticker. A check flips to unhealthy after
// FailureThreshold consecutive failures and back after SuccessThreshold
// consecutive successes. Critical checks gate readiness; degraded checks
// are reported but leave the process ready, so the cart keeps working
// while the backend is unreachable.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// Severity decides what an unhealthy check does to readiness.
type Severity int

const (
	// Critical checks fail readiness.
	Critical Severity = iota
	// Degraded checks are only reported.
	Degraded
)

// Check describes one registered probe.
type Check struct {
	Name     string
	Timeout  time.Duration
	Severity Severity
	Func     CheckFunc
}

type probe struct {
	Check

	failureThreshold int
	successThreshold int
	lg               *zap.Logger

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Only touched by the probe's own goroutine.
	fails, oks int
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if err := p.Func(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		p.fails++
		if p.fails >= p.failureThreshold && p.healthy.Swap(false) {
			p.lg.Warn("Check unhealthy", zap.String("check", p.Name), zap.Error(err))
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	p.oks++
	if p.oks >= p.successThreshold && !p.healthy.Swap(true) {
		p.lg.Info("Check recovered", zap.String("check", p.Name))
	}
}

func (p *probe) failure() string {
	if msg := p.lastErr.Load(); msg != nil {
		return *msg
	}
	return "check is unhealthy"
}

// Option configures Health.
type Option func(*Health)

// WithThresholds overrides the default 3 failures / 1 success thresholds.
func WithThresholds(failures, successes int) Option {
	return func(h *Health) {
		h.failureThreshold = max(failures, 1)
		h.successThreshold = max(successes, 1)
	}
}

// WithLogger logs health transitions to lg.
func WithLogger(lg *zap.Logger) Option {
	return func(h *Health) { h.lg = lg }
}

// Health aggregates liveness and readiness probes. A new Health is not
// ready until SetReady(true).
type Health struct {
	ready atomic.Bool

	failureThreshold int
	successThreshold int
	lg               *zap.Logger

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

func New(opts ...Option) *Health {
	h := &Health{
		failureThreshold: 3,
		successThreshold: 1,
		lg:               zap.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Health) newProbe(c Check) *probe {
	p := &probe{
		Check:            c,
		failureThreshold: h.failureThreshold,
		successThreshold: h.successThreshold,
		lg:               h.lg,
	}
	p.healthy.Store(true)
	return p
}

// AddLiveness registers a liveness check. Severity is ignored: any
// unhealthy liveness check fails /livez.
func (h *Health) AddLiveness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, h.newProbe(c))
}

// AddReadiness registers a readiness check.
func (h *Health) AddReadiness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, h.newProbe(c))
}

// Start runs every registered check once immediately and then every
// interval until ctx is canceled or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append(append([]*probe(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// IsReady reports whether the process is marked ready and no critical
// readiness check is failing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, p := range h.snapshot(false) {
		if p.Severity == Critical && !p.healthy.Load() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(live bool) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if live {
		return append([]*probe(nil), h.liveness...)
	}
	return append([]*probe(nil), h.readiness...)
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	var r report
	for _, p := range h.snapshot(true) {
		if !p.healthy.Load() {
			r.add(p.Name, p.failure(), true)
		}
	}
	r.write(w)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	var r report
	if !h.ready.Load() {
		r.add("_readiness", "service is not ready", true)
	}
	for _, p := range h.snapshot(false) {
		if !p.healthy.Load() {
			r.add(p.Name, p.failure(), p.Severity == Critical)
		}
	}
	r.write(w)
}

type report struct {
	failing  bool
	degraded bool
	checks   map[string]string
}

func (r *report) add(name, msg string, critical bool) {
	if r.checks == nil {
		r.checks = make(map[string]string)
	}
	r.checks[name] = msg
	if critical {
		r.failing = true
	} else {
		r.degraded = true
	}
}

func (r *report) write(w http.ResponseWriter) {
	status, code := "ok", http.StatusOK
	switch {
	case r.failing:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case r.degraded:
		status = "degraded"
	}

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(r.checks[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
