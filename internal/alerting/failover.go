package alerting

import (
	"sync"
	"time"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
)

// FailoverDetector watches the pool field of the record stream and emits
// an event on every edge: the first record only initializes state and
// never alerts. A flip back to the designated primary pool is tagged
// Recovery instead of Failover. The unknown pool participates like any
// other, so blue→unknown is still a reportable flip.
type FailoverDetector struct {
	mu           sync.Mutex
	primary      accesslog.Pool
	current      accesslog.Pool
	lastAlerted  accesslog.Pool
	lastChangeAt time.Time
	onEvent      EventFunc
}

func NewFailoverDetector(primary accesslog.Pool, onEvent EventFunc) *FailoverDetector {
	return &FailoverDetector{primary: primary, onEvent: onEvent}
}

func (d *FailoverDetector) Observe(rec accesslog.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == "" {
		d.current = rec.Pool
		d.lastChangeAt = rec.Time
		return
	}
	if rec.Pool == d.current {
		return
	}

	from := d.current
	d.current = rec.Pool
	d.lastChangeAt = rec.Time

	// A flip back onto the pool we last alerted about repeats old news:
	// the intermediate flip away was suppressed, so announcing the return
	// would duplicate the earlier alert.
	if rec.Pool == d.lastAlerted {
		return
	}

	kind := KindFailover
	if rec.Pool == d.primary && from != d.primary {
		kind = KindRecovery
	}
	ev := Event{
		Kind:         kind,
		Pool:         rec.Pool,
		From:         from,
		To:           rec.Pool,
		Release:      rec.Release,
		UpstreamAddr: rec.UpstreamAddr,
		At:           rec.Time,
	}
	if d.onEvent(ev) {
		d.lastAlerted = rec.Pool
	}
}

// Current returns the pool of the most recently observed record, or
// unknown before any record arrived.
func (d *FailoverDetector) Current() accesslog.Pool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == "" {
		return accesslog.PoolUnknown
	}
	return d.current
}

// LastChange returns when the serving pool last flipped.
func (d *FailoverDetector) LastChange() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastChangeAt
}
