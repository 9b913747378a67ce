// Package loop runs the per-tick control cycle: feed a detection batch to
// the estimator, run the pursuit controller on the resulting pose, and hand
// the outcome to the configured sinks.
//
// The loop is the single writer for its estimator. Refusals (no pose yet, no
// usable path, invalid pose) suppress dispatch for the tick; nothing short of
// context cancellation or the end of the source stops the loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/intnav/internal/estimator"
	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/monitoring"
	"github.com/banshee-data/intnav/internal/navcore"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/banshee-data/intnav/internal/timeutil"
)

// Batch is one tick's worth of detections. A zero Time is stamped with the
// loop clock on arrival.
type Batch struct {
	Time         time.Time               `json:"time"`
	Observations []estimator.Observation `json:"observations"`
}

// Source yields detection batches in timestamp order. Next returns io.EOF
// when the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Batch, error)
}

// Sink receives the outcome of every tick.
type Sink interface {
	Publish(ctx context.Context, tick Tick) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, tick Tick) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, tick Tick) error { return f(ctx, tick) }

// Tick is the outcome of one cycle.
type Tick struct {
	Seq    uint64
	Time   time.Time
	Report estimator.Report

	// Estimate is nil until the estimator is ready.
	Estimate *estimator.Estimate
	// Command is the controller output, nil when the tick was refused.
	Command *pursuit.Command
	// Dispatched is set when Command should be sent to the drive. It is
	// false for refused ticks and for ticks holding the previous command
	// because the vehicle is already on the path.
	Dispatched bool
	Held       bool
	// Err is why no command was computed, if any.
	Err error
}

// Refused reports whether the tick was refused: no pose yet, no usable path
// or a non-finite pose.
func (t Tick) Refused() bool { return navcore.IsRefusal(t.Err) }

// Config holds loop options.
type Config struct {
	Params pursuit.Params
	// IdleInterval runs a predict-only tick when Serve has received no batch
	// for this long. Zero disables idle ticks.
	IdleInterval time.Duration
	// TrajectoryLimit bounds the recorded trajectory; zero keeps everything.
	TrajectoryLimit int
	Clock           timeutil.Clock
}

// Loop ties an estimator, a path and a set of sinks together.
type Loop struct {
	est    *estimator.Estimator
	params pursuit.Params
	clock  timeutil.Clock
	idle   time.Duration
	sinks  []Sink
	traj   *Trajectory
	logf   func(format string, v ...interface{})

	mu   sync.Mutex
	path geom.Path
	seq  uint64
	last *pursuit.Command
}

// New builds a loop around est. The path starts empty; every tick is refused
// with ErrInsufficientPath until SetPath is called.
func New(est *estimator.Estimator, cfg Config, sinks ...Sink) (*Loop, error) {
	if est == nil {
		return nil, errors.New("loop needs an estimator")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pursuit params: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Loop{
		est:    est,
		params: cfg.Params,
		clock:  clock,
		idle:   cfg.IdleInterval,
		sinks:  sinks,
		traj:   NewTrajectory(cfg.TrajectoryLimit),
		logf:   monitoring.Component("loop"),
	}, nil
}

// SetPath validates and installs the reference path. The loop keeps its own
// copy.
func (l *Loop) SetPath(path geom.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.path = path.Clone()
	l.last = nil
	return nil
}

// Path returns a copy of the current reference path.
func (l *Loop) Path() geom.Path {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path.Clone()
}

// Trajectory returns the recorded estimate history.
func (l *Loop) Trajectory() *Trajectory { return l.traj }

// Process runs one tick for b and publishes it. The returned error joins any
// sink failures; the tick itself always completes.
func (l *Loop) Process(ctx context.Context, b Batch) (Tick, error) {
	if b.Time.IsZero() {
		b.Time = l.clock.Now()
	}

	l.mu.Lock()
	l.seq++
	tick := Tick{Seq: l.seq, Time: b.Time}
	path := l.path
	l.mu.Unlock()

	tick.Report = l.est.Update(b.Time, b.Observations)

	est, err := l.est.Estimate()
	if err != nil {
		tick.Err = err
		return tick, l.publish(ctx, tick)
	}
	tick.Estimate = &est
	l.traj.Append(TrajectoryPoint{Seq: tick.Seq, Time: est.Time, Pose: est.Pose, Trace: est.Trace()})

	if len(path) == 0 {
		tick.Err = fmt.Errorf("%w: no path set", navcore.ErrInsufficientPath)
		return tick, l.publish(ctx, tick)
	}

	cmd, err := pursuit.Compute(est.Pose, path, l.params)
	if err != nil {
		tick.Err = err
		if navcore.IsRefusal(err) {
			l.logf("tick %d: refused: %v", tick.Seq, err)
		} else {
			l.logf("tick %d: controller failed: %v", tick.Seq, err)
		}
		return tick, l.publish(ctx, tick)
	}
	tick.Command = &cmd

	l.mu.Lock()
	if cmd.OnPath && l.last != nil {
		tick.Held = true
	} else {
		tick.Dispatched = true
		held := cmd
		l.last = &held
	}
	l.mu.Unlock()

	if tick.Dispatched {
		l.est.SetCommand(cmd.Left, cmd.Right)
	}
	return tick, l.publish(ctx, tick)
}

// Run drains src until it is exhausted or ctx is cancelled. Sink failures are
// logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("detection source: %w", err)
		}
		if _, err := l.Process(ctx, b); err != nil {
			l.logf("publish: %v", err)
		}
	}
}

// Serve processes batches from ch until it is closed or ctx is cancelled.
// With an idle interval configured, a channel that stays quiet for that long
// produces predict-only ticks so uncertainty keeps growing between
// detections. Each received batch restarts the idle interval.
//
// Idle ticks are stamped on the batches' own timeline: the last batch time
// plus the loop-clock time elapsed since that batch arrived. No idle tick
// runs before the first batch.
func (l *Loop) Serve(ctx context.Context, ch <-chan Batch) error {
	var (
		ticker timeutil.Ticker
		idle   <-chan time.Time
	)
	if l.idle > 0 {
		ticker = l.clock.NewTicker(l.idle)
		defer ticker.Stop()
		idle = ticker.C()
	}

	var lastBatch, lastArrival time.Time
	for {
		var b Batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-ch:
			if !ok {
				return nil
			}
			arrival := l.clock.Now()
			if in.Time.IsZero() {
				in.Time = arrival
			}
			lastBatch, lastArrival = in.Time, arrival
			if ticker != nil {
				ticker.Reset(l.idle)
			}
			b = in
		case now := <-idle:
			if lastBatch.IsZero() {
				continue
			}
			b = Batch{Time: lastBatch.Add(now.Sub(lastArrival))}
		}
		if _, err := l.Process(ctx, b); err != nil {
			l.logf("publish: %v", err)
		}
	}
}

func (l *Loop) publish(ctx context.Context, tick Tick) error {
	var errs []error
	for _, s := range l.sinks {
		if err := s.Publish(ctx, tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
