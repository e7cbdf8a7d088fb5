package alerting

import (
	"sort"
	"sync"
	"time"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
)

type ErrorRateConfig struct {
	// WindowSize is the per-pool sample count N. Evaluation only happens
	// on a full window; a cold or partial window never alerts.
	WindowSize int

	// Threshold is the 5xx fraction in (0, 1]. The comparison is strict:
	// a rate exactly at the threshold does not alert.
	Threshold float64

	// Cooldown re-arms a pool by elapsed time even if the rate never
	// dipped back below the threshold.
	Cooldown time.Duration
}

// ErrorRateDetector keeps one sliding window of request outcomes per pool
// and emits HighErrorRate when the full-window 5xx fraction exceeds the
// threshold. Firing disarms the pool; it re-arms when the rate drops to or
// below the threshold (edge-triggered) or when the cooldown elapses.
type ErrorRateDetector struct {
	mu        sync.Mutex
	cfg       ErrorRateConfig
	onEvent   EventFunc
	windows   map[accesslog.Pool]*window
	disarmed  map[accesslog.Pool]bool
	lastFired map[accesslog.Pool]time.Time
}

func NewErrorRateDetector(cfg ErrorRateConfig, onEvent EventFunc) *ErrorRateDetector {
	return &ErrorRateDetector{
		cfg:       cfg,
		onEvent:   onEvent,
		windows:   make(map[accesslog.Pool]*window),
		disarmed:  make(map[accesslog.Pool]bool),
		lastFired: make(map[accesslog.Pool]time.Time),
	}
}

func (d *ErrorRateDetector) Observe(rec accesslog.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.windows[rec.Pool]
	if w == nil {
		w = newWindow(d.cfg.WindowSize)
		d.windows[rec.Pool] = w
	}
	w.push(rec.ServerError())

	if w.len() < d.cfg.WindowSize {
		return
	}
	rate := w.rate()
	if rate <= d.cfg.Threshold {
		delete(d.disarmed, rec.Pool)
		return
	}
	if d.disarmed[rec.Pool] && time.Since(d.lastFired[rec.Pool]) < d.cfg.Cooldown {
		return
	}

	d.disarmed[rec.Pool] = true
	d.lastFired[rec.Pool] = time.Now()
	d.onEvent(Event{
		Kind:       KindHighErrorRate,
		Pool:       rec.Pool,
		Rate:       rate,
		Errors:     w.errors,
		WindowSize: d.cfg.WindowSize,
		Threshold:  d.cfg.Threshold,
		At:         rec.Time,
	})
}

// PoolWindowStatus is a point-in-time view of one pool's window, exposed
// on the status endpoint.
type PoolWindowStatus struct {
	Pool    accesslog.Pool `json:"pool"`
	Samples int            `json:"samples"`
	Rate    float64        `json:"error_rate"`
	Armed   bool           `json:"armed"`
}

func (d *ErrorRateDetector) Status() []PoolWindowStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]PoolWindowStatus, 0, len(d.windows))
	for pool, w := range d.windows {
		out = append(out, PoolWindowStatus{
			Pool:    pool,
			Samples: w.len(),
			Rate:    w.rate(),
			Armed:   !d.disarmed[pool],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out
}
