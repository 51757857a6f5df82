// Package config defines the pipeline configuration: signal processing
// parameters, decision engine tuning, acquisition transport, and output
// targets. Configuration loads from JSON with validated defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	nserrors "github.com/c360/neurostream/errors"
)

// SignalConfig holds sampling and filtering parameters shared by the
// whole processing chain.
type SignalConfig struct {
	SampleRateHz  float64 `json:"sample_rate_hz"`
	WindowSeconds float64 `json:"window_seconds"`
	// Overlap is the fraction of each window shared with the next,
	// in [0, 1).
	Overlap float64 `json:"overlap"`

	NotchFreqHz float64 `json:"notch_freq_hz"`
	NotchQ      float64 `json:"notch_q"`

	BandpassLowHz  float64 `json:"bandpass_low_hz"`
	BandpassHighHz float64 `json:"bandpass_high_hz"`
	FilterOrder    int     `json:"filter_order"`

	AlphaLowHz  float64 `json:"alpha_low_hz"`
	AlphaHighHz float64 `json:"alpha_high_hz"`
	BetaLowHz   float64 `json:"beta_low_hz"`
	BetaHighHz  float64 `json:"beta_high_hz"`
}

// DecisionConfig tunes the lateralization engine.
type DecisionConfig struct {
	// LeftThreshold and RightThreshold bound the neutral zone of the
	// lateralization index. They seed the adaptive calibration when
	// Adaptive is true.
	LeftThreshold  float64 `json:"left_threshold"`
	RightThreshold float64 `json:"right_threshold"`

	// Adaptive enables threshold recalibration from the observed
	// index distribution.
	Adaptive bool `json:"adaptive"`

	// CalibrationSamples is the history size required before the
	// thresholds first adapt.
	CalibrationSamples int `json:"calibration_samples"`

	// AdaptRate is the EMA coefficient pulling thresholds toward the
	// observed distribution.
	AdaptRate float64 `json:"adapt_rate"`

	// MinSeparation keeps the left and right thresholds apart.
	MinSeparation float64 `json:"min_separation"`

	MinConfidence   float64 `json:"min_confidence"`
	SmoothingWindow int     `json:"smoothing_window"`
	HistorySize     int     `json:"history_size"`
}

// FocusConfig tunes the focus engine.
type FocusConfig struct {
	// FocusThreshold is the band-power ratio below which the state is
	// FOCUSED (alpha suppression).
	FocusThreshold float64 `json:"focus_threshold"`

	// RelaxThreshold is the ratio above which the state is RELAXED.
	RelaxThreshold float64 `json:"relax_threshold"`

	BaselineSamples int     `json:"baseline_samples"`
	MinQuality      float64 `json:"min_quality"`
	MinSNRdB        float64 `json:"min_snr_db"`
	SmoothingWindow int     `json:"smoothing_window"`
}

// ArtifactConfig tunes artifact detection and quality scoring.
type ArtifactConfig struct {
	SaturationFraction  float64 `json:"saturation_fraction"`
	SaturationRailRatio float64 `json:"saturation_rail_ratio"`
	MuscleBetaPower     float64 `json:"muscle_beta_power"`
	VarianceMultiplier  float64 `json:"variance_multiplier"`
	VarianceHistory     int     `json:"variance_history"`
	LineNoisePower      float64 `json:"line_noise_power"`
	MinSignalPower      float64 `json:"min_signal_power"`
	MinSNRdB            float64 `json:"min_snr_db"`
}

// AcquisitionConfig selects and tunes the sample source.
type AcquisitionConfig struct {
	// Source is "serial" or "sim".
	Source string `json:"source"`

	SerialPort string `json:"serial_port,omitempty"`
	BaudRate   int    `json:"baud_rate"`

	// ADCMin and ADCMax bound valid raw sample values. Samples outside
	// the range are rejected by the packet parser, and quality checks
	// use the rails for saturation detection.
	ADCMin float64 `json:"adc_min"`
	ADCMax float64 `json:"adc_max"`

	ReadTimeout time.Duration `json:"read_timeout,omitempty"`

	ReconnectCooldown   time.Duration `json:"reconnect_cooldown"`
	MaxReconnectRetries int           `json:"max_reconnect_retries"`

	// BatchSize bounds how many queued samples the decode loop drains
	// per iteration.
	BatchSize int `json:"batch_size"`

	// BufferWindows sizes the per-channel sample buffer in window
	// lengths.
	BufferWindows int `json:"buffer_windows"`
}

// CSVConfig configures the CSV result log.
type CSVConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// NATSConfig configures result publication over NATS.
type NATSConfig struct {
	Enabled       bool          `json:"enabled"`
	URL           string        `json:"url,omitempty"`
	Subject       string        `json:"subject,omitempty"`
	StatusSubject string        `json:"status_subject,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
}

// WebSocketConfig configures the live result stream for dashboards.
type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Path    string `json:"path,omitempty"`
}

// OutputsConfig groups the result emitters.
type OutputsConfig struct {
	CSV       CSVConfig       `json:"csv"`
	NATS      NATSConfig      `json:"nats"`
	WebSocket WebSocketConfig `json:"websocket"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// Config is the complete pipeline configuration.
type Config struct {
	// Mode is "attention" (lateralization) or "focus".
	Mode string `json:"mode"`

	Signal      SignalConfig      `json:"signal"`
	Decision    DecisionConfig    `json:"decision"`
	Focus       FocusConfig       `json:"focus"`
	Artifact    ArtifactConfig    `json:"artifact"`
	Acquisition AcquisitionConfig `json:"acquisition"`
	Outputs     OutputsConfig     `json:"outputs"`
	Metrics     MetricsConfig     `json:"metrics"`

	// StatusInterval is how often the decode loop reports progress.
	StatusInterval time.Duration `json:"status_interval"`
}

const (
	ModeAttention = "attention"
	ModeFocus     = "focus"

	SourceSerial = "serial"
	SourceSim    = "sim"
)

// Default returns the standard configuration for a two-channel 250 Hz
// headset with mains interference at 50 Hz.
func Default() *Config {
	return &Config{
		Mode: ModeAttention,
		Signal: SignalConfig{
			SampleRateHz:   250.0,
			WindowSeconds:  2.0,
			Overlap:        0.5,
			NotchFreqHz:    50.0,
			NotchQ:         30.0,
			BandpassLowHz:  1.0,
			BandpassHighHz: 40.0,
			FilterOrder:    4,
			AlphaLowHz:     8.0,
			AlphaHighHz:    12.0,
			BetaLowHz:      13.0,
			BetaHighHz:     30.0,
		},
		Decision: DecisionConfig{
			LeftThreshold:      -0.2,
			RightThreshold:     0.2,
			Adaptive:           true,
			CalibrationSamples: 20,
			AdaptRate:          0.1,
			MinSeparation:      0.1,
			MinConfidence:      0.6,
			SmoothingWindow:    5,
			HistorySize:        20,
		},
		Focus: FocusConfig{
			FocusThreshold:  0.7,
			RelaxThreshold:  1.1,
			BaselineSamples: 10,
			MinQuality:      50.0,
			MinSNRdB:        0.0,
			SmoothingWindow: 5,
		},
		Artifact: ArtifactConfig{
			SaturationFraction:  0.95,
			SaturationRailRatio: 0.05,
			MuscleBetaPower:     100.0,
			VarianceMultiplier:  3.0,
			VarianceHistory:     100,
			LineNoisePower:      50.0,
			MinSignalPower:      1.0,
			MinSNRdB:            5.0,
		},
		Acquisition: AcquisitionConfig{
			Source:              SourceSerial,
			BaudRate:            115200,
			ADCMin:              0,
			ADCMax:              5000,
			ReadTimeout:         time.Second,
			ReconnectCooldown:   2 * time.Second,
			MaxReconnectRetries: 10,
			BatchSize:           50,
			BufferWindows:       2,
		},
		Outputs: OutputsConfig{
			CSV: CSVConfig{Enabled: true},
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://localhost:4222",
				Subject:       "neuro.attention.result",
				StatusSubject: "neuro.attention.status",
				MaxReconnects: 10,
				ReconnectWait: 2 * time.Second,
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Addr:    ":8899",
				Path:    "/stream",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9102",
		},
		StatusInterval: 5 * time.Second,
	}
}

// Load reads a JSON config file over the defaults, so partial files
// only override the keys they mention.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nserrors.WrapInvalid(nserrors.ErrConfigNotFound, "config", "Load",
				fmt.Sprintf("read %s", path))
		}
		return nil, nserrors.Wrap(err, "config", "Load", "read file")
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, nserrors.WrapInvalid(err, "config", "Load", "parse JSON")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return nserrors.WrapInvalid(
			fmt.Errorf(format, args...), "config", "Validate", "check fields")
	}

	if c.Mode != ModeAttention && c.Mode != ModeFocus {
		return fail("mode %q must be %q or %q", c.Mode, ModeAttention, ModeFocus)
	}

	s := &c.Signal
	if s.SampleRateHz <= 0 {
		return fail("signal.sample_rate_hz must be positive, got %g", s.SampleRateHz)
	}
	if s.WindowSeconds <= 0 {
		return fail("signal.window_seconds must be positive, got %g", s.WindowSeconds)
	}
	if s.Overlap < 0 || s.Overlap >= 1 {
		return fail("signal.overlap must be in [0, 1), got %g", s.Overlap)
	}
	if s.BandpassLowHz <= 0 || s.BandpassHighHz <= s.BandpassLowHz {
		return fail("signal bandpass %g-%g Hz is not a valid band", s.BandpassLowHz, s.BandpassHighHz)
	}
	nyquist := s.SampleRateHz / 2
	if s.BandpassHighHz >= nyquist {
		return fail("signal.bandpass_high_hz %g must be below the Nyquist frequency %g", s.BandpassHighHz, nyquist)
	}
	if s.NotchFreqHz <= 0 || s.NotchFreqHz >= nyquist {
		return fail("signal.notch_freq_hz %g must be in (0, %g)", s.NotchFreqHz, nyquist)
	}
	if s.NotchQ <= 0 {
		return fail("signal.notch_q must be positive, got %g", s.NotchQ)
	}
	if s.FilterOrder < 1 {
		return fail("signal.filter_order must be at least 1, got %d", s.FilterOrder)
	}
	if s.AlphaLowHz <= 0 || s.AlphaHighHz <= s.AlphaLowHz {
		return fail("signal alpha band %g-%g Hz is not a valid band", s.AlphaLowHz, s.AlphaHighHz)
	}
	if s.BetaLowHz <= 0 || s.BetaHighHz <= s.BetaLowHz {
		return fail("signal beta band %g-%g Hz is not a valid band", s.BetaLowHz, s.BetaHighHz)
	}

	d := &c.Decision
	if d.LeftThreshold >= d.RightThreshold {
		return fail("decision thresholds %g/%g must satisfy left < right", d.LeftThreshold, d.RightThreshold)
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return fail("decision.min_confidence must be in [0, 1], got %g", d.MinConfidence)
	}
	if d.SmoothingWindow < 1 {
		return fail("decision.smoothing_window must be at least 1, got %d", d.SmoothingWindow)
	}
	if d.AdaptRate <= 0 || d.AdaptRate > 1 {
		return fail("decision.adapt_rate must be in (0, 1], got %g", d.AdaptRate)
	}
	if d.MinSeparation <= 0 {
		return fail("decision.min_separation must be positive, got %g", d.MinSeparation)
	}

	f := &c.Focus
	if f.FocusThreshold <= 0 || f.RelaxThreshold <= f.FocusThreshold {
		return fail("focus thresholds %g/%g must satisfy 0 < focus < relax", f.FocusThreshold, f.RelaxThreshold)
	}
	if f.BaselineSamples < 1 {
		return fail("focus.baseline_samples must be at least 1, got %d", f.BaselineSamples)
	}
	if f.SmoothingWindow < 1 {
		return fail("focus.smoothing_window must be at least 1, got %d", f.SmoothingWindow)
	}

	a := &c.Acquisition
	if a.Source != SourceSerial && a.Source != SourceSim {
		return fail("acquisition.source %q must be %q or %q", a.Source, SourceSerial, SourceSim)
	}
	if a.BaudRate <= 0 {
		return fail("acquisition.baud_rate must be positive, got %d", a.BaudRate)
	}
	if a.ADCMax <= a.ADCMin {
		return fail("acquisition ADC range %g-%g is empty", a.ADCMin, a.ADCMax)
	}
	if a.BatchSize < 1 {
		return fail("acquisition.batch_size must be at least 1, got %d", a.BatchSize)
	}
	if a.BufferWindows < 1 {
		return fail("acquisition.buffer_windows must be at least 1, got %d", a.BufferWindows)
	}

	if c.WindowSamples() < 4 {
		return fail("window of %g s at %g Hz yields too few samples", s.WindowSeconds, s.SampleRateHz)
	}

	return nil
}

// WindowSamples is the analysis window length in samples.
func (c *Config) WindowSamples() int {
	return int(c.Signal.SampleRateHz * c.Signal.WindowSeconds)
}

// OverlapSamples is how many samples consecutive windows share.
func (c *Config) OverlapSamples() int {
	return int(float64(c.WindowSamples()) * c.Signal.Overlap)
}

// HopSamples is how many new samples trigger the next window.
func (c *Config) HopSamples() int {
	hop := c.WindowSamples() - c.OverlapSamples()
	if hop < 1 {
		hop = 1
	}
	return hop
}
