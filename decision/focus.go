package decision

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/c360/neurostream/config"
	nserrors "github.com/c360/neurostream/errors"
)

// FocusState is the decoded mental effort state.
type FocusState int

const (
	// FocusUncalibrated marks decisions requested before a baseline
	// exists.
	FocusUncalibrated FocusState = iota
	// FocusUnreliable marks windows rejected by the quality gate.
	FocusUnreliable
	FocusFocused
	FocusRelaxed
	FocusNeutral
)

func (f FocusState) String() string {
	switch f {
	case FocusFocused:
		return "FOCUSED"
	case FocusRelaxed:
		return "RELAXED"
	case FocusNeutral:
		return "NEUTRAL"
	case FocusUnreliable:
		return "UNRELIABLE"
	default:
		return "UNCALIBRATED"
	}
}

// Baseline is the calibrated resting alpha level.
type Baseline struct {
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Samples int     `json:"samples"`
}

// FocusDecision is one classified window.
type FocusDecision struct {
	State      FocusState `json:"state"`
	Ratio      float64    `json:"suppression_ratio"`
	Confidence float64    `json:"confidence"`
}

// FocusStatistics summarizes the engine's run so far.
type FocusStatistics struct {
	TotalDecisions  int      `json:"total_decisions"`
	FocusedCount    int      `json:"focused_count"`
	RelaxedCount    int      `json:"relaxed_count"`
	NeutralCount    int      `json:"neutral_count"`
	UnreliableCount int      `json:"unreliable_count"`
	MeanRatio       float64  `json:"mean_ratio"`
	StdRatio        float64  `json:"std_ratio"`
	Calibrated      bool     `json:"calibrated"`
	Baseline        Baseline `json:"baseline"`
}

// VerificationResult reports whether a calibrated baseline actually
// separates relaxed from task-engaged recordings.
type VerificationResult struct {
	RelaxedMeanRatio   float64 `json:"relaxed_mean_ratio"`
	RelaxedSamples     int     `json:"relaxed_samples"`
	FocusedMeanRatio   float64 `json:"focused_mean_ratio"`
	FocusedSamples     int     `json:"focused_samples"`
	Difference         float64 `json:"difference"`
	PercentSuppression float64 `json:"percent_suppression"`
	Valid              bool    `json:"valid"`
}

// Suppression ratios within this distance of 1.0 still count as
// ambiguous; the verification protocol requires a larger spread.
const verificationMinDifference = 0.15

const baselineEpsilon = 1e-10

// Focus classifies mental effort from single-channel alpha
// suppression. Alpha power drops under cognitive load, so the ratio
// of current power to a calibrated resting baseline falls below 1
// when the subject focuses and rises above it when they relax.
//
// Not safe for concurrent use; the decode loop owns it.
type Focus struct {
	cfg    config.FocusConfig
	logger *slog.Logger

	baseline   Baseline
	calibrated bool

	smoother *Smoother[FocusState]

	// running aggregates for status reporting
	decisions       int
	focusedCount    int
	relaxedCount    int
	neutralCount    int
	unreliableCount int
	ratioSum        float64
	ratioSumSq      float64
}

// NewFocus returns an uncalibrated engine.
func NewFocus(cfg config.FocusConfig, logger *slog.Logger) *Focus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Focus{
		cfg:      cfg,
		logger:   logger,
		smoother: NewSmoother[FocusState](cfg.SmoothingWindow),
	}
}

// CalibrateBaseline establishes the resting alpha level from a
// relaxed recording. When quality scores accompany the powers, only
// windows at or above the configured minimum quality contribute;
// the filter is abandoned if it leaves fewer than five samples.
// Samples beyond three standard deviations of the surviving set are
// then discarded, again falling back to the unpruned set below five.
func (f *Focus) CalibrateBaseline(alphaPowers, qualityScores []float64) error {
	if len(alphaPowers) < f.cfg.BaselineSamples {
		return nserrors.WrapInvalid(
			fmt.Errorf("need at least %d samples, got %d", f.cfg.BaselineSamples, len(alphaPowers)),
			"Focus", "CalibrateBaseline", "establishing baseline")
	}

	kept := alphaPowers
	if len(qualityScores) == len(alphaPowers) {
		filtered := make([]float64, 0, len(alphaPowers))
		for i, p := range alphaPowers {
			if qualityScores[i] >= f.cfg.MinQuality {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) >= 5 {
			kept = filtered
		} else {
			f.logger.Warn("too few samples pass the quality gate, using all",
				"passed", len(filtered), "total", len(alphaPowers))
		}
	}

	mean, std := meanStd(kept)
	pruned := make([]float64, 0, len(kept))
	for _, p := range kept {
		if math.Abs(p-mean) <= 3*std {
			pruned = append(pruned, p)
		}
	}
	if len(pruned) >= 5 {
		kept = pruned
	}

	f.baseline.Mean, f.baseline.Std = meanStd(kept)
	f.baseline.Samples = len(kept)
	f.calibrated = true

	f.logger.Info("baseline calibrated",
		"mean", f.baseline.Mean,
		"std", f.baseline.Std,
		"samples", f.baseline.Samples)
	return nil
}

// Calibrated reports whether a baseline exists.
func (f *Focus) Calibrated() bool { return f.calibrated }

// Baseline returns the current baseline. Zero values before
// calibration.
func (f *Focus) Baseline() Baseline { return f.baseline }

// SuppressionRatio relates current alpha power to the baseline.
// Returns the neutral sentinel 1.0 while uncalibrated.
func (f *Focus) SuppressionRatio(power float64) float64 {
	if !f.calibrated {
		return 1.0
	}
	return power / (f.baseline.Mean + baselineEpsilon)
}

// Classify maps a suppression ratio to a state, gated by window
// quality.
func (f *Focus) Classify(ratio, quality, snrDB float64, hasArtifact bool) FocusState {
	if !f.calibrated {
		return FocusUncalibrated
	}
	if quality < f.cfg.MinQuality || snrDB < f.cfg.MinSNRdB || hasArtifact {
		return FocusUnreliable
	}
	switch {
	case ratio < f.cfg.FocusThreshold:
		return FocusFocused
	case ratio > f.cfg.RelaxThreshold:
		return FocusRelaxed
	default:
		return FocusNeutral
	}
}

// Confidence scores a ratio by its distance from 1.0, saturating at a
// suppression of half the baseline.
func (f *Focus) Confidence(ratio float64) float64 {
	return math.Min(math.Abs(1-ratio)/0.5, 1)
}

// MakeDecision classifies one window of alpha power. Gated states
// carry zero confidence. The decision also enters the smoothing
// history and the running statistics.
func (f *Focus) MakeDecision(alphaPower, quality, snrDB float64, hasArtifact bool) FocusDecision {
	ratio := f.SuppressionRatio(alphaPower)
	state := f.Classify(ratio, quality, snrDB, hasArtifact)

	var conf float64
	switch state {
	case FocusFocused, FocusRelaxed, FocusNeutral:
		conf = f.Confidence(ratio)
	}

	f.smoother.Push(state, conf)

	f.decisions++
	f.ratioSum += ratio
	f.ratioSumSq += ratio * ratio
	switch state {
	case FocusFocused:
		f.focusedCount++
	case FocusRelaxed:
		f.relaxedCount++
	case FocusNeutral:
		f.neutralCount++
	case FocusUnreliable:
		f.unreliableCount++
	}

	return FocusDecision{State: state, Ratio: ratio, Confidence: conf}
}

// SmoothedDecision resolves the recent history by majority vote,
// ignoring UNRELIABLE and UNCALIBRATED entries. Agreement is the
// winning vote count over the full history length. When no entry
// counts, the most recent state is reported with zero agreement; an
// empty history yields NEUTRAL.
func (f *Focus) SmoothedDecision() (FocusState, float64) {
	winner, agreement, ok := f.smoother.Majority(
		FocusFocused, FocusRelaxed, FocusNeutral)
	if ok {
		return winner, agreement
	}
	if last, found := f.smoother.Last(); found {
		return last.State, 0
	}
	return FocusNeutral, 0
}

// VerifySuppression checks that two labeled recordings, one relaxed
// and one task-engaged, produce distinguishable suppression ratios.
// It does not touch the live decision path.
func (f *Focus) VerifySuppression(relaxedPowers, focusedPowers []float64) (VerificationResult, error) {
	var r VerificationResult
	if !f.calibrated {
		return r, nserrors.WrapInvalid(
			fmt.Errorf("no baseline"), "Focus", "VerifySuppression", "verifying calibration")
	}
	if len(relaxedPowers) == 0 || len(focusedPowers) == 0 {
		return r, nserrors.WrapInvalid(
			fmt.Errorf("empty phase recording"), "Focus", "VerifySuppression", "verifying calibration")
	}

	for _, p := range relaxedPowers {
		r.RelaxedMeanRatio += f.SuppressionRatio(p)
	}
	r.RelaxedMeanRatio /= float64(len(relaxedPowers))
	r.RelaxedSamples = len(relaxedPowers)

	for _, p := range focusedPowers {
		r.FocusedMeanRatio += f.SuppressionRatio(p)
	}
	r.FocusedMeanRatio /= float64(len(focusedPowers))
	r.FocusedSamples = len(focusedPowers)

	r.Difference = r.RelaxedMeanRatio - r.FocusedMeanRatio
	if r.RelaxedMeanRatio != 0 {
		r.PercentSuppression = r.Difference / r.RelaxedMeanRatio * 100
	}
	r.Valid = r.Difference > verificationMinDifference
	return r, nil
}

// Statistics summarizes decisions made since construction or the last
// Reset.
func (f *Focus) Statistics() FocusStatistics {
	s := FocusStatistics{
		TotalDecisions:  f.decisions,
		FocusedCount:    f.focusedCount,
		RelaxedCount:    f.relaxedCount,
		NeutralCount:    f.neutralCount,
		UnreliableCount: f.unreliableCount,
		Calibrated:      f.calibrated,
		Baseline:        f.baseline,
	}
	if f.decisions > 0 {
		n := float64(f.decisions)
		s.MeanRatio = f.ratioSum / n
		variance := f.ratioSumSq/n - s.MeanRatio*s.MeanRatio
		if variance > 0 {
			s.StdRatio = math.Sqrt(variance)
		}
	}
	return s
}

// Reset discards the baseline, histories, and statistics.
func (f *Focus) Reset() {
	f.baseline = Baseline{}
	f.calibrated = false
	f.smoother.Reset()
	f.decisions = 0
	f.focusedCount = 0
	f.relaxedCount = 0
	f.neutralCount = 0
	f.unreliableCount = 0
	f.ratioSum = 0
	f.ratioSumSq = 0

	f.logger.Info("focus engine reset")
}
