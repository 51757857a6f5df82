// Package feature extracts per-window scalar features from preprocessed
// EEG channels: band powers, spectral shape, time-domain statistics,
// and cross-hemisphere asymmetry measures.
package feature

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/dsp"
)

// Minimal is the cheap per-hop feature subset feeding the decision path.
type Minimal struct {
	LeftAlphaPower  float64
	RightAlphaPower float64
	LeftVariance    float64
	RightVariance   float64
	LeftBetaPower   float64
	RightBetaPower  float64
}

// Set is a fixed-key feature mapping. The key set is fixed at design
// time per extraction mode; downstream consumers rely on key stability.
type Set map[string]float64

// Extractor computes features over preprocessed windows.
type Extractor struct {
	cfg   config.SignalConfig
	chain *dsp.Chain
}

// NewExtractor creates an extractor sharing the given filter bank.
func NewExtractor(cfg config.SignalConfig, chain *dsp.Chain) *Extractor {
	return &Extractor{cfg: cfg, chain: chain}
}

// AlphaPower returns the mean-square amplitude of each channel's
// alpha-band signal.
func (e *Extractor) AlphaPower(left, right []float64) (float64, float64) {
	return meanSquare(e.chain.ExtractAlphaBand(left)),
		meanSquare(e.chain.ExtractAlphaBand(right))
}

// AlphaEnvelope returns the analytic-signal envelope of each channel's
// alpha-band signal.
func (e *Extractor) AlphaEnvelope(left, right []float64) ([]float64, []float64) {
	return e.chain.Envelope(e.chain.ExtractAlphaBand(left)),
		e.chain.Envelope(e.chain.ExtractAlphaBand(right))
}

// SpectralFeatures computes frequency-domain features for one channel.
// All values default to 0 when the spectrum is unavailable.
func (e *Extractor) SpectralFeatures(x []float64) Set {
	out := emptySpectral()

	freqs, psd := e.chain.PowerSpectrum(x)
	if len(freqs) == 0 {
		return out
	}

	delta := e.chain.BandPower(x, 0.5, 4.0)
	theta := e.chain.BandPower(x, 4.0, 8.0)
	alpha := e.chain.AlphaPower(x)
	beta := e.chain.BetaPower(x)
	gamma := e.chain.BandPower(x, 30.0, 40.0)
	total := delta + theta + alpha + beta + gamma

	out["delta_power"] = delta
	out["theta_power"] = theta
	out["alpha_power"] = alpha
	out["beta_power"] = beta
	out["gamma_power"] = gamma
	out["total_power"] = total
	if total > 0 {
		out["relative_alpha"] = alpha / total
		out["relative_beta"] = beta / total
	}

	cumulative := make([]float64, len(psd))
	var sum float64
	for i, p := range psd {
		sum += p
		cumulative[i] = sum
	}
	out["spectral_edge_95"] = firstCrossing(freqs, cumulative, 0.95*sum)
	out["median_frequency"] = firstCrossing(freqs, cumulative, 0.5*sum)

	peakFreq, peakPSD := 0.0, math.Inf(-1)
	for i, f := range freqs {
		if f >= e.cfg.AlphaLowHz && f <= e.cfg.AlphaHighHz && psd[i] > peakPSD {
			peakFreq, peakPSD = f, psd[i]
		}
	}
	if !math.IsInf(peakPSD, -1) {
		out["peak_alpha_frequency"] = peakFreq
	}

	return out
}

// TimeDomainFeatures computes time-domain statistics for one channel.
// All values default to 0 on empty input.
func (e *Extractor) TimeDomainFeatures(x []float64) Set {
	out := emptyTimeDomain()
	if len(x) == 0 {
		return out
	}

	mean := stat.Mean(x, nil)
	m2, m3, m4 := centralMoments(x, mean)
	std := math.Sqrt(m2)

	minV, maxV := x[0], x[0]
	var energy, maxAbs float64
	crossings := 0
	prevSign := sign(x[0])
	for _, v := range x {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		energy += v * v
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
		s := sign(v)
		if s != prevSign {
			crossings++
		}
		prevSign = s
	}

	out["mean"] = mean
	out["std"] = std
	out["variance"] = m2
	out["peak_to_peak"] = maxV - minV
	out["rms"] = math.Sqrt(energy / float64(len(x)))
	if m2 > 0 {
		out["skewness"] = m3 / math.Pow(m2, 1.5)
		out["kurtosis"] = m4/(m2*m2) - 3
	}
	out["zero_crossing_rate"] = float64(crossings) / float64(len(x))
	out["energy"] = energy
	out["max_amplitude"] = maxAbs

	return out
}

// AllFeatures computes the complete per-channel feature set with left_/
// right_ prefixes plus cross-hemisphere measures.
func (e *Extractor) AllFeatures(left, right []float64) Set {
	out := make(Set, 64)

	leftAlpha, rightAlpha := e.AlphaPower(left, right)
	out["left_alpha_power"] = leftAlpha
	out["right_alpha_power"] = rightAlpha

	leftEnv, rightEnv := e.AlphaEnvelope(left, right)
	out["left_alpha_envelope_mean"] = stat.Mean(leftEnv, nil)
	out["right_alpha_envelope_mean"] = stat.Mean(rightEnv, nil)
	out["left_alpha_envelope_std"] = popStd(leftEnv)
	out["right_alpha_envelope_std"] = popStd(rightEnv)

	for k, v := range e.SpectralFeatures(left) {
		out["left_"+k] = v
	}
	for k, v := range e.SpectralFeatures(right) {
		out["right_"+k] = v
	}
	for k, v := range e.TimeDomainFeatures(left) {
		out["left_"+k] = v
	}
	for k, v := range e.TimeDomainFeatures(right) {
		out["right_"+k] = v
	}

	out["alpha_asymmetry"] = leftAlpha - rightAlpha
	if rightAlpha > 0 {
		out["alpha_ratio"] = leftAlpha / rightAlpha
	} else {
		out["alpha_ratio"] = 0
	}
	out["alpha_coherence"] = e.alphaCoherence(left, right)

	return out
}

// MinimalFeatures computes the real-time subset used each hop.
func (e *Extractor) MinimalFeatures(left, right []float64) Minimal {
	leftAlpha, rightAlpha := e.AlphaPower(left, right)
	return Minimal{
		LeftAlphaPower:  leftAlpha,
		RightAlphaPower: rightAlpha,
		LeftVariance:    popVariance(left),
		RightVariance:   popVariance(right),
		LeftBetaPower:   e.chain.BetaPower(left),
		RightBetaPower:  e.chain.BetaPower(right),
	}
}

// alphaCoherence is the Pearson correlation of the channels' alpha-band
// signals. Returns 0 on length mismatch, degenerate length, or NaN.
func (e *Extractor) alphaCoherence(left, right []float64) float64 {
	if len(left) != len(right) || len(left) <= 1 {
		return 0
	}
	r := stat.Correlation(
		e.chain.ExtractAlphaBand(left),
		e.chain.ExtractAlphaBand(right),
		nil,
	)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func meanSquare(x []float64) float64 {
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
	mean := stat.Mean(x, nil)
	var sum float64
	for _, v := range x {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(x))
}

func popStd(x []float64) float64 {
	return math.Sqrt(popVariance(x))
}

// centralMoments returns the 2nd, 3rd and 4th population central
// moments about the given mean.
func centralMoments(x []float64, mean float64) (m2, m3, m4 float64) {
	for _, v := range x {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(x))
	return m2 / n, m3 / n, m4 / n
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func firstCrossing(freqs, cumulative []float64, target float64) float64 {
	for i, c := range cumulative {
		if c >= target {
			return freqs[i]
		}
	}
	return 0
}

func emptySpectral() Set {
	return Set{
		"delta_power":          0,
		"theta_power":          0,
		"alpha_power":          0,
		"beta_power":           0,
		"gamma_power":          0,
		"total_power":          0,
		"relative_alpha":       0,
		"relative_beta":        0,
		"spectral_edge_95":     0,
		"median_frequency":     0,
		"peak_alpha_frequency": 0,
	}
}

func emptyTimeDomain() Set {
	return Set{
		"mean":               0,
		"std":                0,
		"variance":           0,
		"peak_to_peak":       0,
		"rms":                0,
		"skewness":           0,
		"kurtosis":           0,
		"zero_crossing_rate": 0,
		"energy":             0,
		"max_amplitude":      0,
	}
}
