// Package monitor renders control-loop runs for offline inspection: PNG
// plots with gonum/plot and an interactive HTML page with go-echarts.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/loop"
)

// Sample is what the recorder keeps from one tick.
type Sample struct {
	Seq        uint64
	Time       time.Time
	Ready      bool // an estimate was available
	Pose       geom.Pose
	Trace      float64
	HasCommand bool
	Left       float64
	Right      float64
	Dispatched bool
	Refused    bool
}

// Recorder collects tick samples for plotting. It implements loop.Sink.
type Recorder struct {
	mu      sync.Mutex
	path    geom.Path
	samples []Sample
}

// NewRecorder returns a recorder drawing path as the reference.
func NewRecorder(path geom.Path) *Recorder {
	return &Recorder{path: path.Clone()}
}

// Publish records the tick.
func (r *Recorder) Publish(_ context.Context, tick loop.Tick) error {
	s := Sample{
		Seq:        tick.Seq,
		Time:       tick.Time,
		Dispatched: tick.Dispatched,
		Refused:    tick.Refused(),
	}
	if e := tick.Estimate; e != nil {
		s.Ready = true
		s.Pose = e.Pose
		s.Trace = e.Trace()
	}
	if c := tick.Command; c != nil {
		s.HasCommand = true
		s.Left, s.Right = c.Left, c.Right
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

// Samples returns a copy of the recorded samples.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Path returns the reference path.
func (r *Recorder) Path() geom.Path { return r.path.Clone() }
