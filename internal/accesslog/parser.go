package accesslog

import (
	"strconv"
	"strings"
	"time"
)

// Parser extracts Records from structured access-log lines. A line is a
// sequence of whitespace-separated key=value tokens; double-quoted values
// may contain spaces. Tokens without '=' (timestamps in brackets, the
// remote address, etc.) are ignored, so arbitrary prefixes are tolerated.
type Parser struct {
	format Format
}

func NewParser(format Format) *Parser {
	return &Parser{format: mergeFormat(format)}
}

// Parse returns the parsed record and true, or a zero record and false when
// the line is malformed: missing status or pool token, or a status that is
// not a 3-digit integer in [100, 599]. Malformed optional fields are
// dropped without failing the line.
func (p *Parser) Parse(line string) (Record, bool) {
	kv := make(map[string]string, 12)
	for _, tok := range splitFields(line) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			continue
		}
		kv[k] = v
	}

	statusRaw, ok := kv[p.format.Status]
	if !ok {
		return Record{}, false
	}
	poolRaw, ok := kv[p.format.Pool]
	if !ok {
		return Record{}, false
	}
	status, ok := parseStatus(statusRaw)
	if !ok {
		return Record{}, false
	}

	rec := Record{
		Pool:         ParsePool(poolRaw),
		Method:       optional(kv[p.format.Method]),
		Path:         optional(kv[p.format.Path]),
		Status:       status,
		Release:      optional(kv[p.format.Release]),
		UpstreamAddr: optional(kv[p.format.UpstreamAddr]),
	}

	if v := kv[p.format.Time]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			rec.Time = t
		}
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if v := kv[p.format.UpstreamStatus]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.UpstreamStatus = n
		}
	}
	if v := kv[p.format.RequestTime]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rec.RequestTime = f
		}
	}
	if v := kv[p.format.UpstreamResponseTime]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rec.UpstreamResponseTime = f
		}
	}
	return rec, true
}

func parseStatus(s string) (int, bool) {
	if len(s) != 3 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 100 || n > 599 {
		return 0, false
	}
	return n, true
}

// optional maps the nginx "not set" marker to an empty string.
func optional(v string) string {
	if v == "-" {
		return ""
	}
	return v
}

// splitFields splits on whitespace but keeps double-quoted values intact,
// so request="GET /api HTTP/1.1" stays one token. Quotes are stripped.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}
