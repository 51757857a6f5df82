// Package quality assesses per-window signal quality: SNR estimation,
// artifact detection heuristics, and a composite 0-100 quality score
// used to gate the decision engines.
package quality

import (
	"log/slog"
	"math"
	"sort"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/dsp"
)

// ArtifactType labels the artifact detection outcome.
type ArtifactType int

const (
	ArtifactClean ArtifactType = iota
	ArtifactLowSignal
	ArtifactSaturation
	ArtifactMuscle
	ArtifactHighVariance
	ArtifactLineNoise
)

func (a ArtifactType) String() string {
	switch a {
	case ArtifactClean:
		return "clean"
	case ArtifactLowSignal:
		return "low_signal"
	case ArtifactSaturation:
		return "saturation"
	case ArtifactMuscle:
		return "muscle_artifact"
	case ArtifactHighVariance:
		return "high_variance"
	case ArtifactLineNoise:
		return "line_noise"
	default:
		return "unknown"
	}
}

// Window pairs one channel's raw samples with their filtered form.
// Saturation is judged on Raw, where the ADC rails are defined;
// filtering removes the DC level and would leave every clean window
// sitting on the low rail. The spectral and variance heuristics run
// on Filtered.
type Window struct {
	Raw      []float64
	Filtered []float64
}

// ChannelQuality bundles the per-channel quality assessment.
type ChannelQuality struct {
	SNRdB        float64      `json:"snr_db"`
	HasArtifact  bool         `json:"has_artifact"`
	ArtifactType ArtifactType `json:"artifact_type"`
	SignalPower  float64      `json:"signal_power"`
	Variance     float64      `json:"variance"`
	AlphaPower   float64      `json:"alpha_power"`
	BetaPower    float64      `json:"beta_power"`
	QualityOK    bool         `json:"quality_ok"`
}

// noise band for SNR estimation, above the EEG bands of interest
const (
	noiseBandLowHz  = 30.0
	noiseBandHighHz = 40.0
)

// AssessorConfig carries the tuning an Assessor needs.
type AssessorConfig struct {
	Artifact config.ArtifactConfig
	Signal   config.SignalConfig

	// ADC rails for saturation detection.
	ADCMin float64
	ADCMax float64
}

// Assessor computes quality metrics over preprocessed windows. The
// rolling variance history is shared across channels, matching a single
// headset's noise floor; it is owned by the decode loop and not safe
// for concurrent use.
type Assessor struct {
	cfg    AssessorConfig
	chain  *dsp.Chain
	logger *slog.Logger

	varianceHistory []float64
	medianVariance  float64
	hasMedian       bool
}

// NewAssessor creates an assessor sharing the given filter bank.
func NewAssessor(cfg AssessorConfig, chain *dsp.Chain, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{cfg: cfg, chain: chain, logger: logger}
}

// ComputeSNR estimates SNR in dB as alpha-band power over high-band
// noise power. Returns 0 when the window is shorter than one second of
// samples or the noise estimate is non-positive.
func (a *Assessor) ComputeSNR(x []float64) float64 {
	if float64(len(x)) < a.cfg.Signal.SampleRateHz {
		a.logger.Warn("window too short for SNR estimate", "samples", len(x))
		return 0
	}

	signalPower := a.chain.AlphaPower(x)
	noisePower := a.chain.BandPower(x, noiseBandLowHz, noiseBandHighHz)
	if noisePower <= 0 {
		return 0
	}
	return 10 * math.Log10(signalPower/noisePower)
}

// DetectSaturation reports whether too many samples sit within 5% of
// either ADC rail. x must be raw samples on the ADC scale.
func (a *Assessor) DetectSaturation(x []float64) bool {
	if len(x) == 0 {
		return false
	}

	span := a.cfg.ADCMax - a.cfg.ADCMin
	low := a.cfg.ADCMin + span*a.cfg.Artifact.SaturationRailRatio
	high := a.cfg.ADCMax - span*a.cfg.Artifact.SaturationRailRatio

	saturated := 0
	for _, v := range x {
		if v <= low || v >= high {
			saturated++
		}
	}
	ratio := float64(saturated) / float64(len(x))

	if ratio > a.cfg.Artifact.SaturationFraction {
		a.logger.Warn("saturation detected", "ratio", ratio)
		return true
	}
	return false
}

// DetectMuscleArtifact reports excessive beta-band power, typical of
// jaw clenching or forehead tension.
func (a *Assessor) DetectMuscleArtifact(x []float64) bool {
	return a.chain.BetaPower(x) > a.cfg.Artifact.MuscleBetaPower
}

// DetectHighVariance maintains a rolling variance history and flags
// windows whose variance exceeds the median by the configured
// multiplier. With fewer than 10 history entries it always reports
// clean; that is insufficient history, not a failure.
func (a *Assessor) DetectHighVariance(x []float64) bool {
	variance := popVariance(x)

	a.varianceHistory = append(a.varianceHistory, variance)
	if limit := a.cfg.Artifact.VarianceHistory; limit > 0 && len(a.varianceHistory) > limit {
		a.varianceHistory = a.varianceHistory[len(a.varianceHistory)-limit:]
	}

	if len(a.varianceHistory) < 10 {
		return false
	}
	a.medianVariance = median(a.varianceHistory)
	a.hasMedian = true

	return variance > a.medianVariance*a.cfg.Artifact.VarianceMultiplier
}

// DetectLineNoise reports excessive residual power around the notch
// frequency.
func (a *Assessor) DetectLineNoise(x []float64) bool {
	return a.chain.LineNoisePower(x) > a.cfg.Artifact.LineNoisePower
}

// DetectLowSignal reports mean-square power below the minimum expected
// of a connected electrode.
func (a *Assessor) DetectLowSignal(x []float64) bool {
	if a.meanSquare(x) < a.cfg.Artifact.MinSignalPower {
		a.logger.Warn("low signal detected", "power", a.meanSquare(x))
		return true
	}
	return false
}

// DetectArtifacts evaluates the heuristics in fixed priority order and
// returns the first match. Priority only selects the reported label
// when several heuristics would fire; it does not change whether an
// artifact is reported.
func (a *Assessor) DetectArtifacts(w Window) (bool, ArtifactType) {
	switch {
	case a.DetectLowSignal(w.Filtered):
		return true, ArtifactLowSignal
	case a.DetectSaturation(w.Raw):
		return true, ArtifactSaturation
	case a.DetectMuscleArtifact(w.Filtered):
		return true, ArtifactMuscle
	case a.DetectHighVariance(w.Filtered):
		return true, ArtifactHighVariance
	case a.DetectLineNoise(w.Filtered):
		return true, ArtifactLineNoise
	default:
		return false, ArtifactClean
	}
}

// ComputeQualityScore combines both channels into a 0-100 score:
// up to 30 points off for SNR deficit, 40 flat for any artifact, 15 for
// variance asymmetry against the rolling median, 15 for a >10x power
// imbalance between channels.
func (a *Assessor) ComputeQualityScore(left, right Window) float64 {
	score := 100.0

	avgSNR := (a.ComputeSNR(left.Filtered) + a.ComputeSNR(right.Filtered)) / 2
	if avgSNR < a.cfg.Artifact.MinSNRdB {
		penalty := (a.cfg.Artifact.MinSNRdB - avgSNR) * 3
		score -= math.Min(penalty, 30)
	}

	leftArtifact, _ := a.DetectArtifacts(left)
	rightArtifact, _ := a.DetectArtifacts(right)
	if leftArtifact || rightArtifact {
		score -= 40
	}

	if a.hasMedian && a.medianVariance > 0 {
		asymmetry := math.Abs(popVariance(left.Filtered)-popVariance(right.Filtered)) / a.medianVariance
		if asymmetry > 2.0 {
			score -= 15
		}
	}

	leftPower, rightPower := a.meanSquare(left.Filtered), a.meanSquare(right.Filtered)
	if leftPower > 0 && rightPower > 0 {
		ratio := math.Max(leftPower, rightPower) / math.Min(leftPower, rightPower)
		if ratio > 10 {
			score -= 15
		}
	}

	return math.Max(0, math.Min(100, score))
}

// ComputeChannelQuality bundles the full per-channel assessment.
func (a *Assessor) ComputeChannelQuality(w Window) ChannelQuality {
	snr := a.ComputeSNR(w.Filtered)
	hasArtifact, artifactType := a.DetectArtifacts(w)

	return ChannelQuality{
		SNRdB:        snr,
		HasArtifact:  hasArtifact,
		ArtifactType: artifactType,
		SignalPower:  a.meanSquare(w.Filtered),
		Variance:     popVariance(w.Filtered),
		AlphaPower:   a.chain.AlphaPower(w.Filtered),
		BetaPower:    a.chain.BetaPower(w.Filtered),
		QualityOK:    !hasArtifact && snr >= a.cfg.Artifact.MinSNRdB,
	}
}

// Reset clears the adaptive variance statistics.
func (a *Assessor) Reset() {
	a.varianceHistory = a.varianceHistory[:0]
	a.medianVariance = 0
	a.hasMedian = false
}

func (a *Assessor) meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}

func popVariance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var sum float64
	for _, v := range x {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(x))
}

func median(x []float64) float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
