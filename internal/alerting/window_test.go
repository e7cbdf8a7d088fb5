package alerting

import "testing"

func TestWindow_FillsThenSlides(t *testing.T) {
	w := newWindow(3)
	if w.len() != 0 || w.rate() != 0 {
		t.Fatalf("expected empty window, got len=%d rate=%v", w.len(), w.rate())
	}

	w.push(true)
	w.push(false)
	if w.len() != 2 {
		t.Fatalf("expected 2 samples, got %d", w.len())
	}
	if w.rate() != 0.5 {
		t.Fatalf("expected rate 0.5, got %v", w.rate())
	}

	w.push(false)
	if w.len() != 3 {
		t.Fatalf("expected full window, got %d", w.len())
	}

	// Next push evicts the oldest sample, the lone error.
	w.push(false)
	if w.len() != 3 {
		t.Fatalf("expected window to stay at capacity, got %d", w.len())
	}
	if w.errors != 0 {
		t.Fatalf("expected evicted error to drop the count to 0, got %d", w.errors)
	}
	if w.rate() != 0 {
		t.Fatalf("expected rate 0 after eviction, got %v", w.rate())
	}
}

func TestWindow_ErrorCountTracksEvictions(t *testing.T) {
	w := newWindow(2)
	for i := 0; i < 10; i++ {
		w.push(true)
	}
	if w.errors != 2 {
		t.Fatalf("expected error count clamped to capacity, got %d", w.errors)
	}
	w.push(false)
	w.push(false)
	if w.errors != 0 {
		t.Fatalf("expected all errors evicted, got %d", w.errors)
	}
}
