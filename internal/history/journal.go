package history

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/chideracloud/blue-green-deployment/internal/alerting"
)

const (
	OutcomeSent           = "sent"
	OutcomeDeliveryFailed = "delivery_failed"
)

// Entry is one journaled alert.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Pool      string    `json:"pool"`
	Message   string    `json:"message"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists dispatched alerts. A postgres:// DSN selects the
// Postgres driver; anything else is treated as a SQLite path, which keeps
// a single-box watcher free of external services.
type Journal struct {
	conn   *sql.DB
	driver string
}

func Open(dsn string) (*Journal, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return &Journal{conn: conn, driver: driver}, nil
}

func (j *Journal) Close() error {
	return j.conn.Close()
}

// Migrate creates the alerts table. created_at holds Unix nanoseconds so
// ordering is exact under both drivers.
func (j *Journal) Migrate() error {
	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			pool TEXT NOT NULL,
			message TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at
			ON alerts (created_at);
	`)
	return err
}

// Record journals one dispatched alert with its delivery outcome.
func (j *Journal) Record(ev alerting.Event, outcome string) error {
	_, err := j.conn.Exec(
		j.rebind(`INSERT INTO alerts (id, kind, pool, message, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		ev.ID, string(ev.Kind), string(ev.Pool), ev.Text(), outcome, ev.At.UnixNano(),
	)
	return err
}

// Recent returns up to limit alerts, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.conn.Query(
		j.rebind(`SELECT id, kind, pool, message, outcome, created_at
		 FROM alerts
		 ORDER BY created_at DESC
		 LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Pool, &e.Message, &e.Outcome, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// rebind rewrites ? placeholders to the $N form Postgres expects.
func (j *Journal) rebind(query string) string {
	if j.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
