package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxRetryBackoff = 30 * time.Second

// ResultFunc observes the final delivery outcome of an accepted event.
// err is nil when the alert reached the sender.
type ResultFunc func(ev Event, err error)

type DispatcherConfig struct {
	// Cooldown is the minimum gap between accepted alerts sharing a
	// kind:pool key. 0 disables the cooldown.
	Cooldown time.Duration

	// Maintenance suppresses every alert while set.
	Maintenance bool

	// Retries is the number of delivery attempts per alert. 0 = 3.
	Retries int

	// RetryBackoff is the wait before the second attempt; it doubles per
	// attempt up to 30s. 0 = 1s.
	RetryBackoff time.Duration

	// QueueSize bounds each per-key delivery queue. 0 = 16.
	QueueSize int
}

// Dispatcher filters raised events and delivers the survivors. Events
// sharing a kind:pool key are delivered in order; distinct keys proceed
// independently.
type Dispatcher struct {
	cfg       DispatcherConfig
	sender    Sender
	onResult  ResultFunc
	cooldowns *CooldownTracker

	sendCtx    context.Context
	cancelSend context.CancelFunc

	mu     sync.Mutex
	queues map[string]chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, sender Sender, onResult ResultFunc) *Dispatcher {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:        cfg,
		sender:     sender,
		onResult:   onResult,
		cooldowns:  NewCooldownTracker(),
		sendCtx:    ctx,
		cancelSend: cancel,
		queues:     make(map[string]chan Event),
	}
}

// Dispatch accepts ev for delivery unless maintenance mode, the cooldown,
// or a full queue suppresses it. The cooldown is consumed at acceptance,
// so delivery retries cannot shorten the gap between alerts.
func (d *Dispatcher) Dispatch(ev Event) bool {
	key := string(ev.Kind) + ":" + string(ev.Pool)

	if d.cfg.Maintenance {
		slog.Info("maintenance mode active, alert suppressed", "kind", ev.Kind, "pool", ev.Pool)
		return false
	}
	if d.cfg.Cooldown > 0 && !d.cooldowns.Allow(key, d.cfg.Cooldown) {
		slog.Info("alert suppressed by cooldown", "kind", ev.Kind, "pool", ev.Pool)
		return false
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	q, ok := d.queues[key]
	if !ok {
		q = make(chan Event, d.cfg.QueueSize)
		d.queues[key] = q
		d.wg.Add(1)
		go d.deliver(q)
	}
	select {
	case q <- ev:
		return true
	default:
		slog.Warn("alert queue full, dropping alert", "kind", ev.Kind, "pool", ev.Pool)
		return false
	}
}

func (d *Dispatcher) deliver(q chan Event) {
	defer d.wg.Done()
	for ev := range q {
		err := d.send(ev)
		if err != nil {
			slog.Error("alert delivery failed", "kind", ev.Kind, "pool", ev.Pool, "id", ev.ID, "error", err)
		} else {
			slog.Info("alert delivered", "kind", ev.Kind, "pool", ev.Pool, "id", ev.ID)
		}
		if d.onResult != nil {
			d.onResult(ev, err)
		}
	}
}

func (d *Dispatcher) send(ev Event) error {
	text := ev.Text()
	backoff := d.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= d.cfg.Retries; attempt++ {
		if err = d.sender.Send(d.sendCtx, text); err == nil {
			return nil
		}
		if attempt == d.cfg.Retries {
			break
		}
		slog.Warn("alert send failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-d.sendCtx.Done():
			return d.sendCtx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return fmt.Errorf("after %d attempts: %w", d.cfg.Retries, err)
}

// Shutdown stops accepting events and waits for queued deliveries. When
// ctx expires first, in-flight sends are canceled and their events are
// reported to the result callback as failed.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancelSend()
		<-done
		return ctx.Err()
	}
}
