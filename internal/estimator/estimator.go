// Package estimator fuses irregularly timed landmark pose detections into a
// running (x, y, heading) estimate with covariance.
//
// The filter starts Uninitialized and buffers detections until enough have
// been seen to seed the mean and covariance. From then on every call runs a
// predict step over the elapsed time followed, when detections are present,
// by a single combined update over all of the tick's detections.
//
// An Estimator serialises its own updates. Predict/update order matters, so
// callers feeding it from several sources must still deliver batches in
// timestamp order.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/intnav/internal/geom"
	"github.com/banshee-data/intnav/internal/monitoring"
	"github.com/banshee-data/intnav/internal/navcore"
	"gonum.org/v1/gonum/mat"
)

// State is the lifecycle state of the estimator.
type State int

const (
	Uninitialized State = iota // buffering detections, no usable pose
	Ready                      // filtering
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observation is one landmark-derived pose measurement. Observations are
// consumed by the tick they arrive in and never retained.
type Observation struct {
	LandmarkID int       `json:"id"`
	Pose       geom.Pose `json:"pose"`
}

// Estimate is a snapshot of the filter output. Covariance is a copy; mutating
// it does not affect the estimator.
type Estimate struct {
	Pose       geom.Pose
	Covariance *mat.SymDense
	Time       time.Time
}

// Trace returns the trace of the covariance.
func (e Estimate) Trace() float64 {
	if e.Covariance == nil {
		return 0
	}
	return mat.Trace(e.Covariance)
}

// Report describes what a single update call did. Non-fatal anomalies are
// collected in Anomalies; Err joins them for errors.Is checks.
type Report struct {
	State       State
	Dt          float64 // elapsed seconds handed to the tick
	Predicted   bool    // predict step ran
	Initialized bool    // bootstrap completed on this tick
	Fused       int     // observations fused (or buffered while uninitialized)
	Dropped     int     // malformed observations discarded
	Degraded    bool    // update fell back to direct assignment
	Anomalies   []error
}

// Err returns the joined anomalies, or nil when the tick was clean.
func (r Report) Err() error { return errors.Join(r.Anomalies...) }

type wheelCommand struct {
	left, right float64
}

// Estimator is the stateful pose filter. The zero value is not usable; build
// one with New.
type Estimator struct {
	mu   sync.Mutex
	cfg  Config
	logf func(format string, v ...interface{})

	state    State
	mean     geom.Pose
	cov      *mat.SymDense
	buffer   []geom.Pose
	lastTime time.Time
	command  wheelCommand
}

// New builds an estimator after validating cfg.
func New(cfg Config) (*Estimator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	return &Estimator{
		cfg:  cfg,
		logf: monitoring.Component("estimator"),
	}, nil
}

// Config returns the configuration the estimator was built with.
func (e *Estimator) Config() Config { return e.cfg }

// Update runs one tick for a batch stamped ts. The elapsed time is measured
// from the latest timestamp seen so far; a timestamp at or before it is a
// timing anomaly and the predict step is skipped.
func (e *Estimator) Update(ts time.Time, obs []Observation) Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	var dt float64
	if !e.lastTime.IsZero() {
		dt = ts.Sub(e.lastTime).Seconds()
	}
	rep := e.step(dt, obs)
	if ts.After(e.lastTime) {
		e.lastTime = ts
	}
	return rep
}

// Step runs one tick with an explicit elapsed time in seconds.
func (e *Estimator) Step(dt float64, obs []Observation) Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step(dt, obs)
}

// SetCommand records the wheel speeds last sent to the drive. The commanded
// motion model integrates them during predict; the stationary model ignores
// them. Non-finite speeds are ignored.
func (e *Estimator) SetCommand(left, right float64) {
	if math.IsNaN(left) || math.IsInf(left, 0) || math.IsNaN(right) || math.IsInf(right, 0) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.command = wheelCommand{left: left, right: right}
}

// Estimate returns the current pose and covariance, or
// ErrUninitializedEstimator before the bootstrap has completed.
func (e *Estimator) Estimate() (Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Ready {
		return Estimate{}, fmt.Errorf("%w: %d of %d bootstrap observations", navcore.ErrUninitializedEstimator, len(e.buffer), e.cfg.MinInitObservations)
	}
	return Estimate{
		Pose:       e.mean,
		Covariance: mat.NewSymDense(3, append([]float64(nil), e.cov.RawSymmetric().Data...)),
		Time:       e.lastTime,
	}, nil
}

// State returns the lifecycle state.
func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pending returns the number of observations buffered for the bootstrap.
func (e *Estimator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// Reset discards all filter state and returns to Uninitialized.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Uninitialized
	e.mean = geom.Pose{}
	e.cov = nil
	e.buffer = nil
	e.lastTime = time.Time{}
	e.command = wheelCommand{}
}

// step runs one tick. Callers hold e.mu. State is only committed once the
// whole tick has succeeded.
func (e *Estimator) step(dt float64, obs []Observation) Report {
	rep := Report{Dt: dt}
	valid := e.screen(obs, &rep)

	if e.state == Uninitialized {
		e.bootstrap(valid, &rep)
		rep.State = e.state
		return rep
	}

	mean, cov := e.mean, e.cov
	if dt > 0 && !math.IsInf(dt, 1) {
		if e.cfg.MaxPredictDt > 0 && dt > e.cfg.MaxPredictDt {
			e.logf("clamping dt %.3fs to %.3fs", dt, e.cfg.MaxPredictDt)
			dt = e.cfg.MaxPredictDt
		}
		mean, cov = e.predict(mean, cov, dt)
		rep.Predicted = true
	} else {
		err := fmt.Errorf("%w: dt=%v, predict skipped", navcore.ErrTimingAnomaly, dt)
		rep.Anomalies = append(rep.Anomalies, err)
		e.logf("%v", err)
	}

	if len(valid) > 0 {
		poses := posesOf(valid)
		post, postCov, err := e.correct(mean, cov, poses)
		if err != nil {
			post, postCov = e.fallback(poses)
			rep.Degraded = true
			rep.Anomalies = append(rep.Anomalies, err)
			e.logf("%v", err)
		}
		mean, cov = post, postCov
		rep.Fused = len(valid)
	}

	if !mean.IsFinite() || !isFiniteSym(cov) {
		err := fmt.Errorf("%w: non-finite state after tick, discarded", navcore.ErrNumericalDegradation)
		rep.Anomalies = append(rep.Anomalies, err)
		e.logf("%v", err)
		rep.State = e.state
		return rep
	}

	e.mean, e.cov = mean, cov
	rep.State = e.state
	return rep
}

// screen drops malformed observations, normalises headings and returns the
// rest in canonical order so fusion does not depend on arrival order.
func (e *Estimator) screen(obs []Observation, rep *Report) []Observation {
	valid := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Pose.IsFinite() {
			err := fmt.Errorf("%w: landmark %d pose (%v, %v, %v)", navcore.ErrInvalidObservation,
				o.LandmarkID, o.Pose.X, o.Pose.Y, o.Pose.Heading)
			rep.Dropped++
			rep.Anomalies = append(rep.Anomalies, err)
			e.logf("dropping %v", err)
			continue
		}
		o.Pose = geom.NewPose(o.Pose.X, o.Pose.Y, o.Pose.Heading)
		valid = append(valid, o)
	}
	sortObservations(valid)
	return valid
}
