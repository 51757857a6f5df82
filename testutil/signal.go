// Package testutil provides synthetic signal generators shared by the
// package tests. Tones are placed on Welch bin centers where spectral
// leakage matters; everything returns fresh slices.
package testutil

import (
	"math"
	"math/rand"
)

// welchSegLen mirrors the spectral estimator's segment length; bin
// centers land on fs/welchSegLen multiples.
const welchSegLen = 128

// WelchBinHz returns the center frequency of the given Welch bin at
// sample rate fs. Tones generated on bin centers land in a single PSD
// bin, which keeps band-power assertions exact.
func WelchBinHz(fs float64, bin int) float64 {
	return fs / welchSegLen * float64(bin)
}

// Sine generates n samples of a sinusoid.
func Sine(freq, amp, fs float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

// Constant generates n samples of a fixed value.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Noise generates n samples of seeded Gaussian noise so tests stay
// deterministic.
func Noise(amp float64, seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * rng.NormFloat64()
	}
	return out
}

// Mix sums signals sample-wise. Shorter inputs contribute zeros past
// their end.
func Mix(signals ...[]float64) []float64 {
	n := 0
	for _, s := range signals {
		if len(s) > n {
			n = len(s)
		}
	}
	out := make([]float64, n)
	for _, s := range signals {
		for i, v := range s {
			out[i] += v
		}
	}
	return out
}

// Offset adds a DC level to a copy of the signal.
func Offset(sig []float64, dc float64) []float64 {
	out := make([]float64, len(sig))
	for i, v := range sig {
		out[i] = v + dc
	}
	return out
}
