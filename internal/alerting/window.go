package alerting

// window is a fixed-capacity ring of request outcomes (true = server
// error) with a running error count, so the rate is O(1) per push.
type window struct {
	outcomes []bool
	head     int
	full     bool
	errors   int
}

func newWindow(capacity int) *window {
	return &window{outcomes: make([]bool, capacity)}
}

func (w *window) push(isError bool) {
	if w.full && w.outcomes[w.head] {
		w.errors--
	}
	if isError {
		w.errors++
	}
	w.outcomes[w.head] = isError
	w.head = (w.head + 1) % len(w.outcomes)
	if w.head == 0 {
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.outcomes)
	}
	return w.head
}

func (w *window) rate() float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	return float64(w.errors) / float64(n)
}
