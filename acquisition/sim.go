package acquisition

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/c360/neurostream/config"
)

// SimSource synthesizes a two-channel alpha rhythm around the ADC
// midpoint, paced to the configured sample rate, so the full pipeline
// runs without hardware. Attention alternates between hemispheres on
// a fixed period by suppressing the alpha amplitude of the attending
// side, which lateralizes the signal the way a real subject would.
//
// Not safe for concurrent use; the decode loop owns it.
type SimSource struct {
	cfg    config.AcquisitionConfig
	logger *slog.Logger

	fs      float64
	alphaHz float64
	period  time.Duration
	rng     *rand.Rand

	connected bool
	start     time.Time
	emitted   int64
	received  uint64
}

// SimOption adjusts a SimSource.
type SimOption func(*SimSource)

// WithSeed makes the noise deterministic.
func WithSeed(seed int64) SimOption {
	return func(s *SimSource) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithAttentionPeriod sets how often simulated attention switches
// sides.
func WithAttentionPeriod(d time.Duration) SimOption {
	return func(s *SimSource) {
		s.period = d
	}
}

// NewSimSource returns an unconnected simulator centered on the alpha
// band of the given signal configuration.
func NewSimSource(cfg config.AcquisitionConfig, signal config.SignalConfig, logger *slog.Logger, opts ...SimOption) *SimSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SimSource{
		cfg:     cfg,
		logger:  logger,
		fs:      signal.SampleRateHz,
		alphaHz: (signal.AlphaLowHz + signal.AlphaHighHz) / 2,
		period:  5 * time.Second,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect starts the sample clock.
func (s *SimSource) Connect(_ context.Context) error {
	s.start = time.Now()
	s.emitted = 0
	s.connected = true
	s.logger.Info("simulated source started",
		"sample_rate_hz", s.fs, "alpha_hz", s.alphaHz,
		"attention_period", s.period)
	return nil
}

// IsConnected reports whether the clock is running.
func (s *SimSource) IsConnected() bool { return s.connected }

// ReadSample returns the next sample once its wall-clock due time has
// passed, false otherwise.
func (s *SimSource) ReadSample() (Sample, bool) {
	if !s.connected {
		return Sample{}, false
	}

	due := int64(time.Since(s.start).Seconds() * s.fs)
	if s.emitted >= due {
		return Sample{}, false
	}

	sample := s.synthesize(s.emitted)
	s.emitted++
	s.received++
	return sample, true
}

// ReadBatch reads up to max due samples.
func (s *SimSource) ReadBatch(max int) []Sample {
	var out []Sample
	for len(out) < max {
		sample, ok := s.ReadSample()
		if !ok {
			break
		}
		out = append(out, sample)
	}
	return out
}

// Reconnect restarts the clock. The simulator cannot actually fail.
func (s *SimSource) Reconnect() bool {
	return s.Connect(context.Background()) == nil
}

// Statistics returns a transport health snapshot.
func (s *SimSource) Statistics() Statistics {
	return Statistics{
		Connected:       s.connected,
		PacketsReceived: s.received,
	}
}

// Close stops the clock.
func (s *SimSource) Close() error {
	s.connected = false
	return nil
}

func (s *SimSource) synthesize(n int64) Sample {
	t := float64(n) / s.fs
	mid := (s.cfg.ADCMin + s.cfg.ADCMax) / 2
	span := s.cfg.ADCMax - s.cfg.ADCMin

	alphaAmp := span * 0.02
	noiseAmp := span * 0.005

	// the attending hemisphere suppresses its alpha
	leftAmp, rightAmp := alphaAmp, alphaAmp
	if s.period > 0 {
		epoch := int64(t / s.period.Seconds())
		if epoch%2 == 0 {
			leftAmp *= 0.3
		} else {
			rightAmp *= 0.3
		}
	}

	phase := 2 * math.Pi * s.alphaHz * t
	left := mid + leftAmp*math.Sin(phase) + noiseAmp*s.rng.NormFloat64()
	right := mid + rightAmp*math.Sin(phase+0.3) + noiseAmp*s.rng.NormFloat64()

	return Sample{
		Timestamp: t * 1000,
		Left:      clampADC(left, s.cfg.ADCMin, s.cfg.ADCMax),
		Right:     clampADC(right, s.cfg.ADCMin, s.cfg.ADCMax),
	}
}

func clampADC(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
