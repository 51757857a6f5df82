package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/integrate"
)

// welchSegLen caps the Welch segment length so short windows still
// average at least a few periodograms.
const welchSegLen = 128

// hannWindow returns the periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// welch estimates the one-sided power spectral density of x using
// Welch's method: 50% overlapped Hann-windowed segments, constant
// detrending, density scaling. Returns nil slices when x is too short.
func welch(x []float64, fs float64) (freqs, psd []float64) {
	n := len(x)
	if n < 2 || fs <= 0 {
		return nil, nil
	}

	segLen := welchSegLen
	if n < segLen {
		segLen = n
	}
	step := segLen - segLen/2

	win := hannWindow(segLen)
	var winSumSq float64
	for _, w := range win {
		winSumSq += w * w
	}
	scale := 1 / (fs * winSumSq)

	fft := fourier.NewFFT(segLen)
	nFreq := segLen/2 + 1
	psd = make([]float64, nFreq)
	seg := make([]float64, segLen)

	segments := 0
	for start := 0; start+segLen <= n; start += step {
		copy(seg, x[start:start+segLen])

		var mean float64
		for _, v := range seg {
			mean += v
		}
		mean /= float64(segLen)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}

		coeffs := fft.Coefficients(nil, seg)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			psd[k] += scale * (re*re + im*im)
		}
		segments++
	}
	if segments == 0 {
		return nil, nil
	}

	nyquistBin := segLen%2 == 0
	for k := range psd {
		psd[k] /= float64(segments)
		if k != 0 && !(nyquistBin && k == nFreq-1) {
			psd[k] *= 2
		}
	}

	freqs = make([]float64, nFreq)
	for k := range freqs {
		freqs[k] = float64(k) * fs / float64(segLen)
	}
	return freqs, psd
}

// bandPower integrates a PSD over [low, high] Hz by trapezoidal rule.
// Returns 0 when fewer than two bins fall inside the band.
func bandPower(freqs, psd []float64, low, high float64) float64 {
	var fs, ps []float64
	for i, f := range freqs {
		if f >= low && f <= high {
			fs = append(fs, f)
			ps = append(ps, psd[i])
		}
	}
	if len(fs) < 2 {
		return 0
	}
	return integrate.Trapezoidal(fs, ps)
}

// hilbertEnvelope computes the instantaneous amplitude of x as the
// magnitude of its analytic signal. Falls back to |x| when the
// transform is not applicable.
func hilbertEnvelope(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		out := make([]float64, n)
		for i, v := range x {
			out[i] = math.Abs(v)
		}
		return out
	}

	c := make([]complex128, n)
	for i, v := range x {
		c[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	fft.Coefficients(c, c)

	// Analytic-signal spectrum: keep DC (and Nyquist when n is even),
	// double positive frequencies, zero negative frequencies.
	half := n / 2
	for k := 1; k < half; k++ {
		c[k] *= 2
	}
	if n%2 != 0 {
		c[half] *= 2
	}
	for k := half + 1; k < n; k++ {
		c[k] = 0
	}

	fft.Sequence(c, c)

	out := make([]float64, n)
	scale := 1 / float64(n)
	for i, v := range c {
		out[i] = cmplxAbs(real(v)*scale, imag(v)*scale)
	}
	return out
}

func cmplxAbs(re, im float64) float64 {
	return math.Hypot(re, im)
}

// movingAverage smooths x with a centered window, mirroring "same"
// convolution against a uniform kernel.
func movingAverage(x []float64, window int) []float64 {
	if window < 1 || len(x) < window {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	out := make([]float64, len(x))
	half := window / 2
	for i := range x {
		// kernel centered at i, truncated at the edges
		lo := i - half
		hi := lo + window
		if lo < 0 {
			lo = 0
		}
		if hi > len(x) {
			hi = len(x)
		}
		var sum float64
		for j := lo; j < hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}
