package estimator

import (
	"fmt"
	"math"

	"github.com/banshee-data/intnav/internal/config"
)

// DefaultMaxConditionNumber bounds the innovation covariance condition number
// before an update is treated as numerically degenerate.
const DefaultMaxConditionNumber = 1e12

// MotionModel selects what the predict step assumes between detections.
type MotionModel string

const (
	// MotionStationary treats the vehicle as stationary between detections;
	// only the covariance grows.
	MotionStationary MotionModel = config.MotionModelStationary
	// MotionCommanded integrates the last wheel command with a unicycle model.
	MotionCommanded MotionModel = config.MotionModelCommanded
)

// NoiseModel holds the diagonals of the process covariance (variance growth
// per second) and the per-observation measurement covariance, both over
// (x, y, heading).
type NoiseModel struct {
	Process     [3]float64
	Measurement [3]float64
}

// Config holds the estimator parameters. It is fixed for the lifetime of an
// Estimator.
type Config struct {
	MinInitObservations int     // observations buffered before the filter starts
	Noise               NoiseModel
	Motion              MotionModel
	WheelBaseline       float64 // metres, used by MotionCommanded
	MaxPredictDt        float64 // seconds per predict step, 0 disables the clamp
	MaxConditionNumber  float64
}

// DefaultConfig returns estimator configuration loaded from the canonical
// tuning defaults file. Panics if the file cannot be found; intended for tests
// and binaries that have already validated config availability.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinInitObservations: cfg.GetMinInitObservations(),
		Noise: NoiseModel{
			Process:     cfg.GetProcessNoise(),
			Measurement: cfg.GetMeasurementNoise(),
		},
		Motion:             MotionModel(cfg.GetMotionModel()),
		WheelBaseline:      cfg.GetWheelBaseline(),
		MaxPredictDt:       cfg.GetMaxPredictDt(),
		MaxConditionNumber: cfg.GetMaxConditionNumber(),
	}
}

func (c Config) withDefaults() Config {
	if c.Motion == "" {
		c.Motion = MotionStationary
	}
	if c.MaxConditionNumber <= 0 {
		c.MaxConditionNumber = DefaultMaxConditionNumber
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinInitObservations < 1 {
		return fmt.Errorf("min init observations must be at least 1, got %d", c.MinInitObservations)
	}
	for i, v := range c.Noise.Measurement {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("measurement noise[%d] must be finite and > 0, got %v", i, v)
		}
	}
	for i, v := range c.Noise.Process {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("process noise[%d] must be finite and >= 0, got %v", i, v)
		}
	}
	switch c.Motion {
	case MotionStationary:
	case MotionCommanded:
		if !(c.WheelBaseline > 0) {
			return fmt.Errorf("commanded motion model needs a wheel baseline > 0, got %v", c.WheelBaseline)
		}
	default:
		return fmt.Errorf("unknown motion model %q", c.Motion)
	}
	if c.MaxPredictDt < 0 {
		return fmt.Errorf("max predict dt must be >= 0, got %v", c.MaxPredictDt)
	}
	return nil
}
