package alerting

import (
	"fmt"
	"time"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
)

// Kind tags the alert variants the watcher can raise.
type Kind string

const (
	KindFailover      Kind = "failover"
	KindHighErrorRate Kind = "high_error_rate"
	KindRecovery      Kind = "recovery"
)

// Event is a single detected condition on its way to the webhook.
// Detectors create events; the Dispatcher consumes each one exactly once
// and assigns the ID.
type Event struct {
	ID   string
	Kind Kind
	Pool accesslog.Pool
	At   time.Time

	// Flip fields, set for Failover and Recovery.
	From         accesslog.Pool
	To           accesslog.Pool
	Release      string
	UpstreamAddr string

	// Window fields, set for HighErrorRate.
	Rate       float64
	Errors     int
	WindowSize int
	Threshold  float64
}

// EventFunc receives a detector event and reports whether it was accepted
// for delivery. Detectors use the result for bookkeeping that must only
// advance on accepted alerts.
type EventFunc func(Event) bool

// Text renders the Slack message body for the event.
func (e Event) Text() string {
	ts := e.At.UTC().Format(time.RFC3339)
	switch e.Kind {
	case KindHighErrorRate:
		return fmt.Sprintf(
			":warning: High upstream error rate detected: *%.2f%%* (%d/%d) over last %d requests.\nThreshold: %g%%\nTime: %s",
			e.Rate*100, e.Errors, e.WindowSize, e.WindowSize, e.Threshold*100, ts)
	case KindRecovery:
		return fmt.Sprintf(
			":white_check_mark: Recovery detected: *%s* → *%s*\nRelease: %s\nUpstream: %s\nTime: %s",
			e.From, e.To, orDash(e.Release), orDash(e.UpstreamAddr), ts)
	default:
		return fmt.Sprintf(
			":rotating_light: Failover detected: *%s* → *%s*\nRelease: %s\nUpstream: %s\nTime: %s",
			e.From, e.To, orDash(e.Release), orDash(e.UpstreamAddr), ts)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
