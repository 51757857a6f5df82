package dsp

import (
	"log/slog"

	"github.com/c360/neurostream/config"
)

// Chain is the preprocessing filter bank for one channel layout. All
// coefficients are designed once at construction and never redesigned
// per call.
//
// Every method is total: on inputs too short for stable filtering it
// returns the documented neutral value (the input unchanged for notch
// and bandpass, zeros for band extraction, empty spectra) rather than
// an error. Callers treat those as "no usable signal".
type Chain struct {
	cfg    config.SignalConfig
	fs     float64
	order  int
	logger *slog.Logger

	notch    Biquad
	bandpass []Biquad
	alpha    []Biquad
	beta     []Biquad
}

// NewChain designs the filter bank for the given signal parameters.
func NewChain(cfg config.SignalConfig, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Chain{
		cfg:    cfg,
		fs:     cfg.SampleRateHz,
		order:  cfg.FilterOrder,
		logger: logger,

		notch:    designNotch(cfg.NotchFreqHz, cfg.NotchQ, cfg.SampleRateHz),
		bandpass: butterBandpass(cfg.FilterOrder, cfg.BandpassLowHz, cfg.BandpassHighHz, cfg.SampleRateHz),
		alpha:    butterBandpass(cfg.FilterOrder, cfg.AlphaLowHz, cfg.AlphaHighHz, cfg.SampleRateHz),
		beta:     butterBandpass(cfg.FilterOrder, cfg.BetaLowHz, cfg.BetaHighHz, cfg.SampleRateHz),
	}

	logger.Debug("filter bank designed",
		"sample_rate_hz", c.fs,
		"notch_hz", cfg.NotchFreqHz,
		"bandpass_hz", []float64{cfg.BandpassLowHz, cfg.BandpassHighHz},
		"order", c.order)
	return c
}

// minLen is the shortest input the zero-phase filters accept.
func (c *Chain) minLen() int {
	return 3 * c.order
}

// RemoveDC subtracts the mean.
func (c *Chain) RemoveDC(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

// ApplyNotch removes power-line interference. Inputs too short for
// stable filtering pass through unchanged.
func (c *Chain) ApplyNotch(x []float64) []float64 {
	if len(x) < c.minLen() {
		c.logger.Warn("window too short for notch filter", "samples", len(x))
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	return filtFiltBiquad(c.notch, x)
}

// ApplyBandpass restricts the signal to the configured EEG range.
// Inputs too short for stable filtering pass through unchanged.
func (c *Chain) ApplyBandpass(x []float64) []float64 {
	if len(x) < c.minLen() {
		c.logger.Warn("window too short for bandpass filter", "samples", len(x))
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	return filtFiltSOS(c.bandpass, x, sosPadLen(len(c.bandpass)))
}

// ExtractAlphaBand isolates the alpha band. Inputs too short for stable
// filtering yield zeros.
func (c *Chain) ExtractAlphaBand(x []float64) []float64 {
	if len(x) < c.minLen() {
		c.logger.Warn("window too short for alpha filter", "samples", len(x))
		return make([]float64, len(x))
	}
	return filtFiltSOS(c.alpha, x, sosPadLen(len(c.alpha)))
}

// ExtractBetaBand isolates the beta band, used mainly for muscle
// artifact detection. Inputs too short for stable filtering yield zeros.
func (c *Chain) ExtractBetaBand(x []float64) []float64 {
	if len(x) < c.minLen() {
		c.logger.Warn("window too short for beta filter", "samples", len(x))
		return make([]float64, len(x))
	}
	return filtFiltSOS(c.beta, x, sosPadLen(len(c.beta)))
}

// Preprocess runs the standard pipeline: DC removal, notch, bandpass.
func (c *Chain) Preprocess(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	return c.ApplyBandpass(c.ApplyNotch(c.RemoveDC(x)))
}

// Envelope computes the analytic-signal instantaneous amplitude.
func (c *Chain) Envelope(x []float64) []float64 {
	return hilbertEnvelope(x)
}

// PowerSpectrum estimates the one-sided PSD by Welch's method. Returns
// nil slices when x is too short.
func (c *Chain) PowerSpectrum(x []float64) (freqs, psd []float64) {
	return welch(x, c.fs)
}

// BandPower integrates the PSD over [low, high] Hz. Returns 0 when the
// input is too short or no bins fall inside the band.
func (c *Chain) BandPower(x []float64, low, high float64) float64 {
	if len(x) < 2*c.order {
		return 0
	}
	freqs, psd := welch(x, c.fs)
	if len(freqs) == 0 {
		return 0
	}
	return bandPower(freqs, psd, low, high)
}

// AlphaPower is the band power over the configured alpha edges.
func (c *Chain) AlphaPower(x []float64) float64 {
	return c.BandPower(x, c.cfg.AlphaLowHz, c.cfg.AlphaHighHz)
}

// BetaPower is the band power over the configured beta edges.
func (c *Chain) BetaPower(x []float64) float64 {
	return c.BandPower(x, c.cfg.BetaLowHz, c.cfg.BetaHighHz)
}

// LineNoisePower is the band power within 2 Hz of the notch frequency.
func (c *Chain) LineNoisePower(x []float64) float64 {
	return c.BandPower(x, c.cfg.NotchFreqHz-2, c.cfg.NotchFreqHz+2)
}

// Smooth applies a centered moving average.
func (c *Chain) Smooth(x []float64, window int) []float64 {
	return movingAverage(x, window)
}

// RemoveBaselineDrift high-passes slow electrode drift below cutoff Hz.
// Inputs too short for stable filtering fall back to DC removal.
func (c *Chain) RemoveBaselineDrift(x []float64, cutoff float64) []float64 {
	if len(x) < c.minLen() || cutoff <= 0 {
		return c.RemoveDC(x)
	}
	sections := butterHighpass(2, cutoff, c.fs)
	return filtFiltSOS(sections, x, sosPadLen(len(sections)))
}
