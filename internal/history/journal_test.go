package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
	"github.com/chideracloud/blue-green-deployment/internal/alerting"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	if err := j.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return j
}

func journalEvent(id string, at time.Time) alerting.Event {
	return alerting.Event{
		ID:   id,
		Kind: alerting.KindFailover,
		Pool: accesslog.PoolGreen,
		From: accesslog.PoolBlue,
		To:   accesslog.PoolGreen,
		At:   at,
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now()
	if err := j.Record(journalEvent("a", base), OutcomeSent); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(journalEvent("b", base.Add(time.Second)), OutcomeDeliveryFailed); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(journalEvent("c", base.Add(2*time.Second)), OutcomeSent); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := j.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "b" {
		t.Fatalf("expected newest first, got %s then %s", entries[0].ID, entries[1].ID)
	}
	if entries[1].Outcome != OutcomeDeliveryFailed {
		t.Fatalf("expected outcome %s, got %s", OutcomeDeliveryFailed, entries[1].Outcome)
	}
	if entries[0].Kind != string(alerting.KindFailover) || entries[0].Pool != "green" {
		t.Fatalf("unexpected kind/pool %s/%s", entries[0].Kind, entries[0].Pool)
	}
	if entries[0].Message == "" {
		t.Fatal("expected the rendered alert text to be journaled")
	}
	if got := entries[0].CreatedAt.UnixNano(); got != base.Add(2*time.Second).UnixNano() {
		t.Fatalf("expected created_at to round-trip, got %d", got)
	}
}

func TestJournal_RecentWithLargerLimit(t *testing.T) {
	j := openTestJournal(t)

	if err := j.Record(journalEvent("only", time.Now()), OutcomeSent); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := j.Recent(50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestJournal_OpenFailsOnBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "alerts.db")); err == nil {
		t.Fatal("expected opening a journal in a missing directory to fail")
	}
}

func TestJournal_RebindOnlyForPostgres(t *testing.T) {
	pg := &Journal{driver: "postgres"}
	got := pg.rebind("INSERT INTO alerts VALUES (?, ?, ?)")
	if got != "INSERT INTO alerts VALUES ($1, $2, $3)" {
		t.Fatalf("unexpected rebind %q", got)
	}

	lite := &Journal{driver: "sqlite"}
	if got := lite.rebind("LIMIT ?"); got != "LIMIT ?" {
		t.Fatalf("expected sqlite query untouched, got %q", got)
	}
}
