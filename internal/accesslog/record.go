package accesslog

import "time"

// Pool identifies which upstream pool served a request.
type Pool string

const (
	PoolBlue    Pool = "blue"
	PoolGreen   Pool = "green"
	PoolUnknown Pool = "unknown"
)

// ParsePool normalizes a raw pool token from a log line.
func ParsePool(raw string) Pool {
	switch raw {
	case "blue":
		return PoolBlue
	case "green":
		return PoolGreen
	default:
		return PoolUnknown
	}
}

// Record is one parsed access-log line. Records are immutable once parsed
// and are consumed immediately by the detectors; they are never stored.
type Record struct {
	Time    time.Time
	Pool    Pool
	Method  string
	Path    string
	Status  int
	Release string

	// Upstream fields as reported by the proxy. UpstreamStatus is 0 when
	// the token was absent or not numeric (e.g. "-").
	UpstreamStatus       int
	UpstreamAddr         string
	RequestTime          float64
	UpstreamResponseTime float64
}

// ServerError reports whether the request failed server-side. Both the
// final status and the upstream status count: the proxy may map an
// upstream 5xx to a different final status (or vice versa) and either
// one indicates a failing backend.
func (r Record) ServerError() bool {
	return is5xx(r.Status) || is5xx(r.UpstreamStatus)
}

func is5xx(status int) bool {
	return status >= 500 && status <= 599
}
