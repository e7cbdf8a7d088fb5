// Package tail follows an append-only log file through rotation and
// truncation, the way the access log of a long-running proxy behaves.
package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const maxOpenRetryWait = 30 * time.Second

type Config struct {
	Path string

	// PollInterval is how long to sleep when no new data is available.
	PollInterval time.Duration

	// OpenRetries bounds how many times the initial open is attempted
	// before Run gives up. Waits start at OpenRetryWait and double up to
	// a cap.
	OpenRetries   int
	OpenRetryWait time.Duration

	// Offset is the byte position to start reading from. A negative
	// offset seeks to the end of existing content, which is what a live
	// watcher wants: only lines appended after startup are reported.
	Offset int64
}

// Tailer yields complete lines appended to a file, in order. Not safe for
// concurrent use; one Tailer drives one pipeline.
type Tailer struct {
	cfg    Config
	file   *os.File
	reader *bufio.Reader
	offset int64
}

func New(cfg Config) *Tailer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.OpenRetries <= 0 {
		cfg.OpenRetries = 30
	}
	if cfg.OpenRetryWait <= 0 {
		cfg.OpenRetryWait = time.Second
	}
	return &Tailer{cfg: cfg}
}

// Run follows the file and calls emit for every complete line, until ctx is
// cancelled. Truncation (size below the consumed offset) and rotation
// (path points at a different file) are detected on the poll cadence and
// handled by resuming from the start of the new content. Run returns nil
// on cancellation; a non-nil error means the file could not be opened
// within the retry budget, which the caller should treat as fatal.
func (t *Tailer) Run(ctx context.Context, emit func(line string)) error {
	if err := t.open(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { t.file.Close() }()

	var pending []byte
	for {
		chunk, err := t.reader.ReadString('\n')
		if chunk != "" {
			t.offset += int64(len(chunk))
			pending = append(pending, chunk...)
		}
		if err == nil {
			emit(strings.TrimRight(string(pending), "\r\n"))
			pending = pending[:0]
			continue
		}
		if err != io.EOF {
			slog.Warn("access log read failed, retrying", "path", t.cfg.Path, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.cfg.PollInterval):
		}

		reopened, err := t.checkReopen()
		if err != nil {
			slog.Warn("access log re-open failed, retrying", "path", t.cfg.Path, "error", err)
			continue
		}
		if reopened {
			// A partial line from the old content cannot be completed.
			pending = pending[:0]
		}
	}
}

func (t *Tailer) open(ctx context.Context) error {
	wait := t.cfg.OpenRetryWait
	var lastErr error
	for attempt := 1; attempt <= t.cfg.OpenRetries; attempt++ {
		f, err := os.Open(t.cfg.Path)
		if err == nil {
			offset := t.cfg.Offset
			if offset < 0 {
				end, err := f.Seek(0, io.SeekEnd)
				if err != nil {
					f.Close()
					return fmt.Errorf("seek to end of %s: %w", t.cfg.Path, err)
				}
				offset = end
			} else if _, err := f.Seek(offset, io.SeekStart); err != nil {
				f.Close()
				return fmt.Errorf("seek %s to %d: %w", t.cfg.Path, offset, err)
			}
			t.file = f
			t.reader = bufio.NewReader(f)
			t.offset = offset
			slog.Info("following access log", "path", t.cfg.Path, "offset", offset)
			return nil
		}
		lastErr = err
		if attempt < t.cfg.OpenRetries {
			slog.Warn("cannot open access log, retrying", "path", t.cfg.Path, "attempt", attempt, "retry_in", wait, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > maxOpenRetryWait {
				wait = maxOpenRetryWait
			}
		}
	}
	return fmt.Errorf("open %s after %d attempts: %w", t.cfg.Path, t.cfg.OpenRetries, lastErr)
}

// checkReopen re-stats the path and recovers from rotation or truncation.
// It reports whether the read position was reset.
func (t *Tailer) checkReopen() (bool, error) {
	info, err := os.Stat(t.cfg.Path)
	if err != nil {
		// Path briefly missing mid-rotation: keep the open handle and try
		// again next poll.
		return false, nil
	}
	cur, err := t.file.Stat()
	if err != nil {
		if err := t.reopen(); err != nil {
			return false, err
		}
		return true, nil
	}
	if !os.SameFile(info, cur) {
		if err := t.reopen(); err != nil {
			return false, err
		}
		slog.Info("access log rotated, re-opened", "path", t.cfg.Path)
		return true, nil
	}
	if info.Size() < t.offset {
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			if err := t.reopen(); err != nil {
				return false, err
			}
			return true, nil
		}
		t.reader.Reset(t.file)
		t.offset = 0
		slog.Info("access log truncated, reset to start", "path", t.cfg.Path, "size", info.Size())
		return true, nil
	}
	return false, nil
}

func (t *Tailer) reopen() error {
	f, err := os.Open(t.cfg.Path)
	if err != nil {
		return fmt.Errorf("re-open %s: %w", t.cfg.Path, err)
	}
	t.file.Close()
	t.file = f
	t.reader = bufio.NewReader(f)
	t.offset = 0
	return nil
}
