// Package health serves /livez and /readyz for the academy server.
//
// Every check polls in its own goroutine. A check flips to unhealthy after
// its failure threshold of consecutive errors and back after its success
// threshold of consecutive passes.
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

// CheckFunc reports a problem with a dependency, or nil.
type CheckFunc func(ctx context.Context) error

// probe is one registered check. Counters belong to the polling goroutine;
// passing and last are read by the endpoints.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc
	failAt  int
	passAt  int

	passing atomic.Bool
	last    atomic.Pointer[error]

	fails  int
	passes int
}

func (p *probe) healthy() bool { return p.passing.Load() }

func (p *probe) lastErr() error {
	if e := p.last.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.last.Store(&err)
	if err != nil {
		p.passes = 0
		if p.fails++; p.fails >= p.failAt {
			p.passing.Store(false)
		}
		return
	}
	p.fails = 0
	if p.passes++; p.passes >= p.passAt {
		p.passing.Store(true)
	}
}

func (p *probe) poll(ctx context.Context, interval time.Duration) {
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

// Health holds the liveness and readiness checks and the manual ready flag.
type Health struct {
	marked atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// CheckOption configures a registered check.
type CheckOption func(*probe)

// WithThresholds overrides the default thresholds of 3 consecutive failures
// and 1 success.
func WithThresholds(failure, success int) CheckOption {
	return func(p *probe) {
		p.failAt = max(1, failure)
		p.passAt = max(1, success)
	}
}

func newProbe(name string, timeout time.Duration, check CheckFunc, opts []CheckOption) *probe {
	p := &probe{name: name, timeout: timeout, check: check, failAt: 3, passAt: 1}
	for _, o := range opts {
		o(p)
	}
	p.passing.Store(true)
	return p
}

// AddLivenessCheck registers a check that fails /livez, such as goroutine or
// session counts.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check, opts))
}

// AddReadinessCheck registers a check that fails /readyz, such as a cart
// storage ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check, opts))
}

// Start polls every registered check at interval until ctx is done or Stop
// is called. Register checks before calling it.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, p := range probes {
		go p.poll(ctx, interval)
	}
}

// SetReady sets the manual ready flag. The server clears it before draining.
func (h *Health) SetReady(ready bool) {
	h.marked.Store(ready)
}

// IsReady reports the ready flag combined with every readiness check.
func (h *Health) IsReady() bool {
	if !h.marked.Load() {
		return false
	}
	for _, p := range h.snapshot(&h.readiness) {
		if !p.healthy() {
			return false
		}
	}
	return true
}

// Stop ends polling. Calling it again is a no-op.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, failures(h.snapshot(&h.liveness)))
}

// ReadyEndpoint serves /readyz. An unset ready flag is reported as the
// _readiness check.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	marked := h.marked.Load()
	failed := failures(h.snapshot(&h.readiness))
	if !marked {
		failed["_readiness"] = "service is not ready"
	}
	writeResponse(w, failed)
}

func (h *Health) snapshot(probes *[]*probe) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(*probes)
}

// failures maps each unhealthy check to its last error.
func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if p.healthy() {
			continue
		}
		if err := p.lastErr(); err != nil {
			out[p.name] = err.Error()
		} else {
			out[p.name] = "check is unhealthy"
		}
	}
	return out
}

// writeResponse writes {"status":"ok"} or {"status":"unhealthy","checks":{...}}
// with failing checks in name order.
func writeResponse(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	status := http.StatusOK
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
