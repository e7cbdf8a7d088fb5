package tail

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startTailer(t *testing.T, path string, offset int64) (*lineCollector, context.CancelFunc) {
	t.Helper()
	c := &lineCollector{}
	tailer := New(Config{Path: path, PollInterval: 5 * time.Millisecond, Offset: offset})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := tailer.Run(ctx, c.add); err != nil {
			t.Errorf("tailer failed: %v", err)
		}
	}()
	return c, cancel
}

func appendLines(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatal(err)
	}
}

func TestTailer_EmitsAppendedLines_SkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, cancel := startTailer(t, path, -1)
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	appendLines(t, path, "alpha\nbeta\n")

	waitFor(t, func() bool { return len(c.snapshot()) >= 2 })
	got := c.snapshot()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestTailer_ReadsFromConfiguredOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, cancel := startTailer(t, path, 0)
	defer cancel()

	waitFor(t, func() bool { return len(c.snapshot()) >= 2 })
	got := c.snapshot()
	if got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestTailer_PartialLineHeldUntilComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	c, cancel := startTailer(t, path, -1)
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	appendLines(t, path, "par")
	time.Sleep(50 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Fatalf("incomplete line should not be emitted, got %v", got)
	}

	appendLines(t, path, "tial\n")
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
	if got := c.snapshot(); got[0] != "partial" {
		t.Fatalf("expected joined line 'partial', got %q", got[0])
	}
}

func TestTailer_Truncation_ResumesFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, cancel := startTailer(t, path, -1)
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	appendLines(t, path, "before\n")
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	// Truncate in place: same inode, shorter content.
	if err := os.WriteFile(path, []byte("after\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(c.snapshot()) == 2 })
	got := c.snapshot()
	if got[1] != "after" {
		t.Fatalf("expected line from truncated file, got %v", got)
	}
}

func TestTailer_Rotation_FollowsNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, cancel := startTailer(t, path, -1)
	defer cancel()
	time.Sleep(50 * time.Millisecond)

	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
	if got := c.snapshot(); got[0] != "fresh" {
		t.Fatalf("expected line from rotated-in file, got %v", got)
	}
}

func TestTailer_OpenRetriesExhausted_ReturnsError(t *testing.T) {
	tailer := New(Config{
		Path:          filepath.Join(t.TempDir(), "missing.log"),
		PollInterval:  5 * time.Millisecond,
		OpenRetries:   2,
		OpenRetryWait: time.Millisecond,
	})
	err := tailer.Run(context.Background(), func(string) {})
	if err == nil {
		t.Fatal("expected error when open retry budget is exhausted")
	}
}

func TestTailer_CancelStopsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tailer := New(Config{Path: path, PollInterval: 5 * time.Millisecond, Offset: -1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx, func(string) {}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not stop after cancellation")
	}
}
