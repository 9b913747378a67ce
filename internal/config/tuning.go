package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/intnav.defaults.json"

// Motion model names accepted by motion_model.
const (
	MotionModelStationary = "stationary"
	MotionModelCommanded  = "commanded"
)

// TuningConfig represents the root configuration for the estimator, the
// pursuit controller and the drive link. Every field is optional; the Get*
// accessors supply defaults for anything omitted.
type TuningConfig struct {
	// Pursuit controller params
	AdmissibleError *float64 `json:"admissible_error,omitempty"` // metres from path before a new command is needed
	LookaheadDist   *float64 `json:"lookahead_distance,omitempty"`
	PredictionStep  *float64 `json:"prediction_step,omitempty"` // seconds
	NominalSpeed    *float64 `json:"nominal_speed,omitempty"`   // m/s
	MaxCurvature    *float64 `json:"max_curvature,omitempty"`   // 1/m

	// Vehicle params
	WheelBaseline *float64 `json:"wheel_baseline,omitempty"` // metres between wheels

	// Estimator params
	MinInitObservations *int     `json:"min_init_observations,omitempty"`
	ProcessNoiseX       *float64 `json:"process_noise_x,omitempty"` // σ² per second
	ProcessNoiseY       *float64 `json:"process_noise_y,omitempty"`
	ProcessNoiseTheta   *float64 `json:"process_noise_theta,omitempty"`
	MeasurementNoiseX   *float64 `json:"measurement_noise_x,omitempty"` // σ² per observation
	MeasurementNoiseY   *float64 `json:"measurement_noise_y,omitempty"`
	MeasurementNoiseT   *float64 `json:"measurement_noise_theta,omitempty"`
	MaxPredictDt        *float64 `json:"max_predict_dt,omitempty"` // seconds, 0 disables the clamp
	MaxConditionNumber  *float64 `json:"max_condition_number,omitempty"`
	MotionModel         *string  `json:"motion_model,omitempty"`

	// Drive link params
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from cmd/intnav/
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"lookahead_distance", c.LookaheadDist},
		{"prediction_step", c.PredictionStep},
		{"max_curvature", c.MaxCurvature},
		{"wheel_baseline", c.WheelBaseline},
		{"measurement_noise_x", c.MeasurementNoiseX},
		{"measurement_noise_y", c.MeasurementNoiseY},
		{"measurement_noise_theta", c.MeasurementNoiseT},
		{"max_condition_number", c.MaxConditionNumber},
	}
	for _, f := range positive {
		if f.v == nil {
			continue
		}
		if !(*f.v > 0) || math.IsInf(*f.v, 0) {
			return fmt.Errorf("%s must be a finite value > 0, got %v", f.name, *f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"admissible_error", c.AdmissibleError},
		{"nominal_speed", c.NominalSpeed},
		{"process_noise_x", c.ProcessNoiseX},
		{"process_noise_y", c.ProcessNoiseY},
		{"process_noise_theta", c.ProcessNoiseTheta},
		{"max_predict_dt", c.MaxPredictDt},
	}
	for _, f := range nonNegative {
		if f.v == nil {
			continue
		}
		if !(*f.v >= 0) || math.IsInf(*f.v, 0) {
			return fmt.Errorf("%s must be a finite value >= 0, got %v", f.name, *f.v)
		}
	}

	if c.MinInitObservations != nil && *c.MinInitObservations < 1 {
		return fmt.Errorf("min_init_observations must be at least 1, got %d", *c.MinInitObservations)
	}

	if c.MotionModel != nil {
		switch strings.ToLower(strings.TrimSpace(*c.MotionModel)) {
		case MotionModelStationary, MotionModelCommanded:
		default:
			return fmt.Errorf("unknown motion_model %q: expected %q or %q", *c.MotionModel, MotionModelStationary, MotionModelCommanded)
		}
	}

	if c.SerialBaudRate != nil && *c.SerialBaudRate < 0 {
		return fmt.Errorf("serial_baud_rate must be non-negative, got %d", *c.SerialBaudRate)
	}

	return nil
}

// GetAdmissibleError returns the admissible_error value or the default.
func (c *TuningConfig) GetAdmissibleError() float64 {
	if c.AdmissibleError == nil {
		return 0.005
	}
	return *c.AdmissibleError
}

// GetLookaheadDistance returns the lookahead_distance value or the default.
func (c *TuningConfig) GetLookaheadDistance() float64 {
	if c.LookaheadDist == nil {
		return 0.1
	}
	return *c.LookaheadDist
}

// GetPredictionStep returns the prediction_step value or the default.
func (c *TuningConfig) GetPredictionStep() float64 {
	if c.PredictionStep == nil {
		return 0.5
	}
	return *c.PredictionStep
}

// GetNominalSpeed returns the nominal_speed value or the default.
func (c *TuningConfig) GetNominalSpeed() float64 {
	if c.NominalSpeed == nil {
		return 0.1
	}
	return *c.NominalSpeed
}

// GetMaxCurvature returns the max_curvature value or the default.
func (c *TuningConfig) GetMaxCurvature() float64 {
	if c.MaxCurvature == nil {
		return 20.0
	}
	return *c.MaxCurvature
}

// GetWheelBaseline returns the wheel_baseline value or the default.
func (c *TuningConfig) GetWheelBaseline() float64 {
	if c.WheelBaseline == nil {
		return 0.1
	}
	return *c.WheelBaseline
}

// GetMinInitObservations returns the min_init_observations value or the default.
func (c *TuningConfig) GetMinInitObservations() int {
	if c.MinInitObservations == nil {
		return 5
	}
	return *c.MinInitObservations
}

// GetProcessNoise returns the process noise diagonal (x, y, theta).
func (c *TuningConfig) GetProcessNoise() [3]float64 {
	return [3]float64{
		orDefault(c.ProcessNoiseX, 0.01),
		orDefault(c.ProcessNoiseY, 0.01),
		orDefault(c.ProcessNoiseTheta, 0.05),
	}
}

// GetMeasurementNoise returns the measurement noise diagonal (x, y, theta).
func (c *TuningConfig) GetMeasurementNoise() [3]float64 {
	return [3]float64{
		orDefault(c.MeasurementNoiseX, 0.0025),
		orDefault(c.MeasurementNoiseY, 0.0025),
		orDefault(c.MeasurementNoiseT, 0.01),
	}
}

// GetMaxPredictDt returns the max_predict_dt value or the default.
func (c *TuningConfig) GetMaxPredictDt() float64 {
	if c.MaxPredictDt == nil {
		return 0
	}
	return *c.MaxPredictDt
}

// GetMaxConditionNumber returns the max_condition_number value or the default.
func (c *TuningConfig) GetMaxConditionNumber() float64 {
	if c.MaxConditionNumber == nil {
		return 1e12
	}
	return *c.MaxConditionNumber
}

// GetMotionModel returns the normalised motion_model value or the default.
func (c *TuningConfig) GetMotionModel() string {
	if c.MotionModel == nil || strings.TrimSpace(*c.MotionModel) == "" {
		return MotionModelStationary
	}
	return strings.ToLower(strings.TrimSpace(*c.MotionModel))
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetSerialParity returns the serial_parity value or the default.
func (c *TuningConfig) GetSerialParity() string {
	if c.SerialParity == nil {
		return "N"
	}
	return *c.SerialParity
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
