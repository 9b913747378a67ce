// Package replay reads recorded observation batches from JSON-lines files
// and feeds them to the control loop.
//
// Each non-empty line holds one batch:
//
//	{"time":"2026-10-15T09:00:00.1Z","observations":[{"id":3,"pose":{"x":0.1,"y":0.2,"heading":0.05}}]}
//
// "time" is optional; batches without it are stamped from the reader's clock.
// Lines starting with '#' are comments.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/intnav/internal/estimator"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/monitoring"
	"github.com/banshee-data/intnav/internal/timeutil"
)

// maxLineSize bounds a single batch line.
const maxLineSize = 1 << 20

type record struct {
	Time         *time.Time              `json:"time,omitempty"`
	Observations []estimator.Observation `json:"observations"`
}

// Reader is a loop.Source over a JSON-lines stream. Malformed lines are
// logged and skipped.
type Reader struct {
	sc      *bufio.Scanner
	clock   timeutil.Clock
	line    int
	read    int
	skipped int
	logf    func(format string, v ...interface{})
}

// NewReader wraps r. A nil clock means the wall clock.
func NewReader(r io.Reader, clock timeutil.Clock) *Reader {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc, clock: clock, logf: monitoring.Component("replay")}
}

// Next returns the next well-formed batch, or io.EOF once the stream is
// exhausted.
func (r *Reader) Next(ctx context.Context) (loop.Batch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return loop.Batch{}, err
		}
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return loop.Batch{}, fmt.Errorf("replay line %d: %w", r.line+1, err)
			}
			return loop.Batch{}, io.EOF
		}
		r.line++

		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.skipped++
			r.logf("skipping line %d: %v", r.line, err)
			continue
		}
		r.read++

		b := loop.Batch{Observations: rec.Observations}
		if rec.Time != nil {
			b.Time = *rec.Time
		} else {
			b.Time = r.clock.Now()
		}
		return b, nil
	}
}

// Stats reports how many batches were returned and how many lines were
// skipped as malformed.
func (r *Reader) Stats() (read, skipped int) {
	return r.read, r.skipped
}

// File is a Reader over an opened replay file.
type File struct {
	*Reader
	f *os.File
}

// OpenFile opens a .jsonl replay file.
func OpenFile(path string, clock timeutil.Clock) (*File, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".jsonl", ".ndjson":
	default:
		return nil, fmt.Errorf("replay file must have .jsonl or .ndjson extension, got %q", ext)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	return &File{Reader: NewReader(f, clock), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }

// Writer records batches in the format Reader accepts.
type Writer struct {
	enc *json.Encoder
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one batch line. A zero batch time is omitted.
func (w *Writer) Write(b loop.Batch) error {
	rec := record{Observations: b.Observations}
	if !b.Time.IsZero() {
		t := b.Time
		rec.Time = &t
	}
	if rec.Observations == nil {
		rec.Observations = []estimator.Observation{}
	}
	return w.enc.Encode(rec)
}
