package pursuit

import (
	"fmt"
	"math"

	"github.com/banshee-data/intnav/internal/config"
)

// Params holds the vehicle and controller parameters for Compute.
type Params struct {
	WheelBaseline   float64 // metres between the drive wheels
	Speed           float64 // nominal forward speed (m/s)
	Lookahead       float64 // target distance from the anchor waypoint (m)
	PredictionStep  float64 // horizon for the future point (s)
	MaxCurvature    float64 // |κ| limit (1/m)
	AdmissibleError float64 // future point within this of the path counts as on-path (m); 0 disables
}

// DefaultParams returns controller parameters loaded from the canonical
// tuning defaults file. Panics if the file cannot be found; intended for
// tests and binaries that have already validated config availability.
func DefaultParams() Params {
	return ParamsFromTuning(config.MustLoadDefaultConfig())
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		WheelBaseline:   cfg.GetWheelBaseline(),
		Speed:           cfg.GetNominalSpeed(),
		Lookahead:       cfg.GetLookaheadDistance(),
		PredictionStep:  cfg.GetPredictionStep(),
		MaxCurvature:    cfg.GetMaxCurvature(),
		AdmissibleError: cfg.GetAdmissibleError(),
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	checks := []struct {
		name     string
		v        float64
		positive bool
	}{
		{"wheel baseline", p.WheelBaseline, true},
		{"max curvature", p.MaxCurvature, true},
		{"speed", p.Speed, false},
		{"lookahead", p.Lookahead, false},
		{"prediction step", p.PredictionStep, false},
		{"admissible error", p.AdmissibleError, false},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%s must be finite, got %v", c.name, c.v)
		}
		if c.positive && c.v <= 0 {
			return fmt.Errorf("%s must be > 0, got %v", c.name, c.v)
		}
		if c.v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", c.name, c.v)
		}
	}
	return nil
}
