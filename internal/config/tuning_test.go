package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	// The defaults file must agree with the accessor fallbacks.
	empty := EmptyTuningConfig()
	if cfg.GetLookaheadDistance() != empty.GetLookaheadDistance() {
		t.Errorf("lookahead_distance = %v, fallback %v", cfg.GetLookaheadDistance(), empty.GetLookaheadDistance())
	}
	if cfg.GetNominalSpeed() != empty.GetNominalSpeed() {
		t.Errorf("nominal_speed = %v, fallback %v", cfg.GetNominalSpeed(), empty.GetNominalSpeed())
	}
	if cfg.GetMinInitObservations() != empty.GetMinInitObservations() {
		t.Errorf("min_init_observations = %d, fallback %d", cfg.GetMinInitObservations(), empty.GetMinInitObservations())
	}
	if cfg.GetProcessNoise() != empty.GetProcessNoise() {
		t.Errorf("process noise = %v, fallback %v", cfg.GetProcessNoise(), empty.GetProcessNoise())
	}
	if cfg.GetMeasurementNoise() != empty.GetMeasurementNoise() {
		t.Errorf("measurement noise = %v, fallback %v", cfg.GetMeasurementNoise(), empty.GetMeasurementNoise())
	}
	if cfg.GetMotionModel() != MotionModelStationary {
		t.Errorf("motion_model = %q, want %q", cfg.GetMotionModel(), MotionModelStationary)
	}
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetAdmissibleError() != 0.005 {
		t.Errorf("GetAdmissibleError() = %v, want 0.005", cfg.GetAdmissibleError())
	}
	if cfg.GetPredictionStep() != 0.5 {
		t.Errorf("GetPredictionStep() = %v, want 0.5", cfg.GetPredictionStep())
	}
	if cfg.GetWheelBaseline() != 0.1 {
		t.Errorf("GetWheelBaseline() = %v, want 0.1", cfg.GetWheelBaseline())
	}
	if cfg.GetMaxCurvature() != 20 {
		t.Errorf("GetMaxCurvature() = %v, want 20", cfg.GetMaxCurvature())
	}
	if cfg.GetSerialBaudRate() != 115200 {
		t.Errorf("GetSerialBaudRate() = %d, want 115200", cfg.GetSerialBaudRate())
	}
	if cfg.GetSerialParity() != "N" {
		t.Errorf("GetSerialParity() = %q, want N", cfg.GetSerialParity())
	}
	if cfg.GetMaxPredictDt() != 0 {
		t.Errorf("GetMaxPredictDt() = %v, want 0 (clamp disabled)", cfg.GetMaxPredictDt())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "lookahead_distance": 0.25,
  "nominal_speed": 0.2,
  "min_init_observations": 3,
  "measurement_noise_theta": 0.02,
  "motion_model": " Commanded "
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetLookaheadDistance() != 0.25 {
		t.Errorf("GetLookaheadDistance() = %v, want 0.25", cfg.GetLookaheadDistance())
	}
	if cfg.GetNominalSpeed() != 0.2 {
		t.Errorf("GetNominalSpeed() = %v, want 0.2", cfg.GetNominalSpeed())
	}
	if cfg.GetMinInitObservations() != 3 {
		t.Errorf("GetMinInitObservations() = %d, want 3", cfg.GetMinInitObservations())
	}
	if got := cfg.GetMeasurementNoise(); got[2] != 0.02 || got[0] != 0.0025 {
		t.Errorf("GetMeasurementNoise() = %v, want [0.0025 0.0025 0.02]", got)
	}
	if cfg.GetMotionModel() != MotionModelCommanded {
		t.Errorf("GetMotionModel() = %q, want %q", cfg.GetMotionModel(), MotionModelCommanded)
	}
	// Omitted fields fall back to defaults.
	if cfg.GetPredictionStep() != 0.5 {
		t.Errorf("GetPredictionStep() = %v, want 0.5", cfg.GetPredictionStep())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	_, err := LoadTuningConfig("config.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "lookahead_distance": "far"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")
	if err := os.WriteFile(configPath, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr string
	}{
		{name: "empty is valid", cfg: TuningConfig{}},
		{name: "zero lookahead", cfg: TuningConfig{LookaheadDist: f(0)}, wantErr: "lookahead_distance"},
		{name: "negative baseline", cfg: TuningConfig{WheelBaseline: f(-0.1)}, wantErr: "wheel_baseline"},
		{name: "zero measurement noise", cfg: TuningConfig{MeasurementNoiseY: f(0)}, wantErr: "measurement_noise_y"},
		{name: "zero process noise allowed", cfg: TuningConfig{ProcessNoiseX: f(0)}},
		{name: "negative process noise", cfg: TuningConfig{ProcessNoiseTheta: f(-1)}, wantErr: "process_noise_theta"},
		{name: "zero speed allowed", cfg: TuningConfig{NominalSpeed: f(0)}},
		{name: "min init zero", cfg: TuningConfig{MinInitObservations: i(0)}, wantErr: "min_init_observations"},
		{name: "unknown motion model", cfg: TuningConfig{MotionModel: s("ballistic")}, wantErr: "motion_model"},
		{name: "negative baud", cfg: TuningConfig{SerialBaudRate: i(-1)}, wantErr: "serial_baud_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
