package decision

import (
	"log/slog"
	"math"

	"github.com/c360/neurostream/config"
)

// Direction is the decoded spatial attention state.
type Direction int

const (
	// DirectionUnknown marks windows where no valid decision could be
	// formed. Normal numeric input never produces it.
	DirectionUnknown Direction = iota
	DirectionLeft
	DirectionRight
	DirectionNeutral
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "LEFT"
	case DirectionRight:
		return "RIGHT"
	case DirectionNeutral:
		return "NEUTRAL"
	default:
		return "UNKNOWN"
	}
}

// Decision is one classified window.
type Decision struct {
	Direction  Direction `json:"direction"`
	LI         float64   `json:"lateralization_index"`
	Confidence float64   `json:"confidence"`
}

// CalibrationStatus reports adaptive threshold progress.
type CalibrationStatus struct {
	Calibrated      bool    `json:"calibrated"`
	Samples         int     `json:"samples"`
	RequiredSamples int     `json:"required_samples"`
	LeftThreshold   float64 `json:"left_threshold"`
	RightThreshold  float64 `json:"right_threshold"`
	HistorySize     int     `json:"history_size"`
}

// Statistics summarizes the lateralization index distribution and the
// decisions made over the smoothing window.
type Statistics struct {
	LIMean           float64 `json:"li_mean"`
	LIStd            float64 `json:"li_std"`
	LIMin            float64 `json:"li_min"`
	LIMax            float64 `json:"li_max"`
	LeftDecisions    int     `json:"left_decisions"`
	RightDecisions   int     `json:"right_decisions"`
	NeutralDecisions int     `json:"neutral_decisions"`
	AvgConfidence    float64 `json:"avg_confidence"`
}

// Lateralization classifies spatial attention from the alpha power
// asymmetry between hemispheres.
//
// The lateralization index LI = (right - left) / (right + left) runs
// from -1 to +1. High alpha marks low cortical activity, so strong
// right-hemisphere alpha means attention is directed LEFT and vice
// versa. Thresholds bounding the neutral zone are either fixed or
// calibrated adaptively from the observed LI distribution.
//
// Not safe for concurrent use; the decode loop owns it.
type Lateralization struct {
	cfg    config.DecisionConfig
	logger *slog.Logger

	leftThreshold  float64
	rightThreshold float64
	calibrated     bool
	totalSamples   int

	liHistory []float64
	liCap     int
	smoother  *Smoother[Direction]
}

// NewLateralization returns an engine seeded with the configured
// thresholds.
func NewLateralization(cfg config.DecisionConfig, logger *slog.Logger) *Lateralization {
	if logger == nil {
		logger = slog.Default()
	}
	liCap := cfg.HistorySize
	if liCap < cfg.CalibrationSamples {
		// history must hold a full calibration run
		liCap = cfg.CalibrationSamples
	}
	return &Lateralization{
		cfg:            cfg,
		logger:         logger,
		leftThreshold:  cfg.LeftThreshold,
		rightThreshold: cfg.RightThreshold,
		liCap:          liCap,
		smoother:       NewSmoother[Direction](cfg.SmoothingWindow),
	}
}

// ComputeLI computes the lateralization index, clipped to [-1, 1].
// Zero total power yields 0.
func (l *Lateralization) ComputeLI(leftPower, rightPower float64) float64 {
	total := leftPower + rightPower
	if total == 0 {
		return 0
	}
	li := (rightPower - leftPower) / total
	return math.Max(-1, math.Min(1, li))
}

// Classify maps an index to a direction using the current thresholds.
func (l *Lateralization) Classify(li float64) Direction {
	switch {
	case li < l.leftThreshold:
		return DirectionLeft
	case li > l.rightThreshold:
		return DirectionRight
	default:
		return DirectionNeutral
	}
}

// Confidence scores a classification in [0, 1] by distance from the
// thresholds. NEUTRAL confidence falls toward the center of the
// neutral zone; LEFT and RIGHT scale with distance past the relevant
// threshold, normalized against the furthest reachable index on that
// side.
func (l *Lateralization) Confidence(li float64, d Direction) float64 {
	switch d {
	case DirectionNeutral:
		width := l.rightThreshold - l.leftThreshold
		if width <= 0 {
			return 0.5
		}
		distLeft := math.Abs(li - l.leftThreshold)
		distRight := math.Abs(li - l.rightThreshold)
		conf := 1 - (width-2*math.Min(distLeft, distRight))/width
		return math.Max(0, math.Min(1, conf))

	case DirectionLeft:
		dist := math.Abs(li - l.leftThreshold)
		maxDist := 1 + math.Abs(l.leftThreshold)
		return math.Min(dist/maxDist*2, 1)

	case DirectionRight:
		dist := math.Abs(li - l.rightThreshold)
		maxDist := 1 - l.rightThreshold
		if maxDist <= 0 {
			return 1
		}
		return math.Min(dist/maxDist*2, 1)

	default:
		return 0
	}
}

// MakeDecision classifies one window of per-hemisphere alpha power.
// The index feeds the calibration history, thresholds adapt if
// enabled, and low-confidence classifications demote to NEUTRAL. The
// decision also enters the smoothing history.
func (l *Lateralization) MakeDecision(leftPower, rightPower float64) Decision {
	li := l.ComputeLI(leftPower, rightPower)

	l.pushLI(li)
	l.totalSamples++

	if l.cfg.Adaptive {
		l.updateThresholds()
	}

	d := l.Classify(li)
	conf := l.Confidence(li, d)

	if conf < l.cfg.MinConfidence && d != DirectionNeutral {
		l.logger.Debug("low confidence, demoting to neutral",
			"confidence", conf, "direction", d.String())
		d = DirectionNeutral
	}

	l.smoother.Push(d, conf)

	return Decision{Direction: d, LI: li, Confidence: conf}
}

// SmoothedDecision resolves the recent decision history by
// confidence-weighted vote, with the average confidence over the
// window. An empty history yields UNKNOWN; an all-zero-confidence
// history yields NEUTRAL.
func (l *Lateralization) SmoothedDecision() (Direction, float64) {
	winner, sum, avg, ok := l.smoother.Weighted(
		DirectionLeft, DirectionRight, DirectionNeutral)
	if !ok {
		return DirectionUnknown, 0
	}
	if sum == 0 {
		return DirectionNeutral, 0
	}
	return winner, avg
}

// CalibrationStatus reports threshold adaptation progress.
func (l *Lateralization) CalibrationStatus() CalibrationStatus {
	return CalibrationStatus{
		Calibrated:      l.calibrated,
		Samples:         l.totalSamples,
		RequiredSamples: l.cfg.CalibrationSamples,
		LeftThreshold:   l.leftThreshold,
		RightThreshold:  l.rightThreshold,
		HistorySize:     len(l.liHistory),
	}
}

// Statistics summarizes the current histories. Empty histories yield
// zero values.
func (l *Lateralization) Statistics() Statistics {
	var s Statistics
	if len(l.liHistory) == 0 {
		return s
	}

	s.LIMean, s.LIStd = meanStd(l.liHistory)
	s.LIMin, s.LIMax = l.liHistory[0], l.liHistory[0]
	for _, v := range l.liHistory[1:] {
		s.LIMin = math.Min(s.LIMin, v)
		s.LIMax = math.Max(s.LIMax, v)
	}

	votes := l.smoother.Votes()
	total := 0.0
	for _, v := range votes {
		switch v.State {
		case DirectionLeft:
			s.LeftDecisions++
		case DirectionRight:
			s.RightDecisions++
		case DirectionNeutral:
			s.NeutralDecisions++
		}
		total += v.Confidence
	}
	if len(votes) > 0 {
		s.AvgConfidence = total / float64(len(votes))
	}
	return s
}

// Reset restores the configured thresholds and clears all histories.
func (l *Lateralization) Reset() {
	l.liHistory = l.liHistory[:0]
	l.smoother.Reset()
	l.leftThreshold = l.cfg.LeftThreshold
	l.rightThreshold = l.cfg.RightThreshold
	l.calibrated = false
	l.totalSamples = 0

	l.logger.Info("calibration reset to configured thresholds",
		"left", l.leftThreshold, "right", l.rightThreshold)
}

func (l *Lateralization) pushLI(li float64) {
	if len(l.liHistory) == l.liCap {
		copy(l.liHistory, l.liHistory[1:])
		l.liHistory = l.liHistory[:len(l.liHistory)-1]
	}
	l.liHistory = append(l.liHistory, li)
}

// updateThresholds recalibrates the neutral zone from the observed LI
// distribution. The first full history sets thresholds to mean +/- std
// outright; afterwards each window nudges them toward a fresh target
// with exponential smoothing, keeping at least the configured minimum
// separation by re-centering symmetrically.
func (l *Lateralization) updateThresholds() {
	if len(l.liHistory) < l.cfg.CalibrationSamples {
		return
	}

	mean, std := meanStd(l.liHistory)

	if !l.calibrated {
		l.leftThreshold = mean - std
		l.rightThreshold = mean + std
		l.calibrated = true
		l.enforceSeparation()
		l.logger.Info("calibration complete",
			"left_threshold", l.leftThreshold,
			"right_threshold", l.rightThreshold)
		return
	}

	rate := l.cfg.AdaptRate
	l.leftThreshold = (1-rate)*l.leftThreshold + rate*(mean-std)
	l.rightThreshold = (1-rate)*l.rightThreshold + rate*(mean+std)
	l.enforceSeparation()
}

func (l *Lateralization) enforceSeparation() {
	sep := l.cfg.MinSeparation
	if l.rightThreshold-l.leftThreshold >= sep {
		return
	}
	center := (l.leftThreshold + l.rightThreshold) / 2
	l.leftThreshold = center - sep/2
	l.rightThreshold = center + sep/2
}

// meanStd returns the mean and population standard deviation.
func meanStd(x []float64) (mean, std float64) {
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(x)))
}
