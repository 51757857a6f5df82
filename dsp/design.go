// Package dsp implements the filtering and spectral primitives for
// two-channel EEG preprocessing: IIR filter design, zero-phase
// filtering, Welch spectral estimation, and analytic-signal envelopes.
package dsp

import (
	"math"
	"math/cmplx"
)

// Biquad is a single second-order IIR section with a0 normalized to 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// designNotch builds a narrow band-reject biquad at freq with quality
// factor q, using the RBJ cookbook formulation.
func designNotch(freq, q, fs float64) Biquad {
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha
	return Biquad{
		B0: 1 / a0,
		B1: -2 * cosW0 / a0,
		B2: 1 / a0,
		A1: -2 * cosW0 / a0,
		A2: (1 - alpha) / a0,
	}
}

// butterPoles returns the analog Butterworth prototype poles for order n
// (unit cutoff, no zeros, unit gain).
func butterPoles(n int) []complex128 {
	poles := make([]complex128, n)
	for i := 0; i < n; i++ {
		m := float64(-n + 1 + 2*i)
		poles[i] = -cmplx.Exp(complex(0, math.Pi*m/(2*float64(n))))
	}
	return poles
}

// zpk holds an analog or digital filter in zero-pole-gain form.
type zpk struct {
	z []complex128
	p []complex128
	k float64
}

// lp2bp transforms a lowpass prototype to a bandpass filter with center
// frequency wo and bandwidth bw (both in rad/s).
func lp2bp(f zpk, wo, bw float64) zpk {
	degree := len(f.p) - len(f.z)

	scale := func(roots []complex128) []complex128 {
		out := make([]complex128, 0, 2*len(roots))
		for _, r := range roots {
			lp := r * complex(bw/2, 0)
			d := cmplx.Sqrt(lp*lp - complex(wo*wo, 0))
			out = append(out, lp+d, lp-d)
		}
		return out
	}

	z := scale(f.z)
	p := scale(f.p)
	for i := 0; i < degree; i++ {
		z = append(z, 0)
	}

	return zpk{z: z, p: p, k: f.k * math.Pow(bw, float64(degree))}
}

// lp2hp transforms a lowpass prototype to a highpass filter with cutoff
// wo (rad/s).
func lp2hp(f zpk, wo float64) zpk {
	degree := len(f.p) - len(f.z)

	invert := func(roots []complex128) []complex128 {
		out := make([]complex128, len(roots))
		for i, r := range roots {
			out[i] = complex(wo, 0) / r
		}
		return out
	}

	z := invert(f.z)
	p := invert(f.p)
	for i := 0; i < degree; i++ {
		z = append(z, 0)
	}

	prod := func(roots []complex128) complex128 {
		acc := complex(1, 0)
		for _, r := range roots {
			acc *= -r
		}
		return acc
	}

	k := f.k * real(prod(f.z)/prod(f.p))
	return zpk{z: z, p: p, k: k}
}

// bilinear maps an analog filter to the digital domain at sample rate fs.
func bilinear(f zpk, fs float64) zpk {
	fs2 := complex(2*fs, 0)
	degree := len(f.p) - len(f.z)

	transform := func(roots []complex128) []complex128 {
		out := make([]complex128, len(roots))
		for i, r := range roots {
			out[i] = (fs2 + r) / (fs2 - r)
		}
		return out
	}

	z := transform(f.z)
	p := transform(f.p)
	for i := 0; i < degree; i++ {
		z = append(z, -1)
	}

	num := complex(1, 0)
	for _, r := range f.z {
		num *= fs2 - r
	}
	den := complex(1, 0)
	for _, r := range f.p {
		den *= fs2 - r
	}

	return zpk{z: z, p: p, k: f.k * real(num/den)}
}

// toSections pairs a digital zpk into cascaded biquads. All zeros of the
// Butterworth designs used here are real after the bilinear transform
// (at z=1 or z=-1), which keeps the pairing simple: conjugate pole pairs
// each take one zero from either end of the sorted zero list, so
// bandpass sections get a +1/-1 zero pair.
func toSections(f zpk) []Biquad {
	realZeros := make([]float64, len(f.z))
	for i, z := range f.z {
		realZeros[i] = real(z)
	}
	// insertion sort keeps this dependency-free for small n
	for i := 1; i < len(realZeros); i++ {
		for j := i; j > 0 && realZeros[j-1] > realZeros[j]; j-- {
			realZeros[j-1], realZeros[j] = realZeros[j], realZeros[j-1]
		}
	}

	var pairs [][2]complex128
	var reals []complex128
	used := make([]bool, len(f.p))
	for i, p := range f.p {
		if used[i] {
			continue
		}
		if math.Abs(imag(p)) < 1e-12 {
			used[i] = true
			reals = append(reals, p)
			continue
		}
		for j := i + 1; j < len(f.p); j++ {
			if !used[j] && cmplx.Abs(f.p[j]-cmplx.Conj(p)) < 1e-9 {
				used[i], used[j] = true, true
				pairs = append(pairs, [2]complex128{p, f.p[j]})
				break
			}
		}
	}

	lo, hi := 0, len(realZeros)-1
	takeLow := func() float64 {
		v := realZeros[lo]
		lo++
		return v
	}
	takeHigh := func() float64 {
		v := realZeros[hi]
		hi--
		return v
	}

	var sections []Biquad
	for _, pp := range pairs {
		z1, z2 := takeLow(), takeHigh()
		p1, p2 := pp[0], pp[1]
		sections = append(sections, Biquad{
			B0: 1,
			B1: -(z1 + z2),
			B2: z1 * z2,
			A1: -real(p1 + p2),
			A2: real(p1 * p2),
		})
	}
	for _, p := range reals {
		z1 := takeLow()
		sections = append(sections, Biquad{
			B0: 1,
			B1: -z1,
			A1: -real(p),
		})
	}

	// overall gain on the first section
	if len(sections) > 0 {
		sections[0].B0 *= f.k
		sections[0].B1 *= f.k
		sections[0].B2 *= f.k
	}
	return sections
}

// butterBandpass designs a digital Butterworth bandpass of the given
// order between low and high Hz at sample rate fs, as cascaded biquads.
func butterBandpass(order int, low, high, fs float64) []Biquad {
	warp := func(f float64) float64 {
		return 2 * fs * math.Tan(math.Pi*f/fs)
	}
	wl, wh := warp(low), warp(high)
	wo := math.Sqrt(wl * wh)
	bw := wh - wl

	proto := zpk{p: butterPoles(order), k: 1}
	analog := lp2bp(proto, wo, bw)
	return toSections(bilinear(analog, fs))
}

// butterHighpass designs a digital Butterworth highpass of the given
// order with cutoff Hz at sample rate fs.
func butterHighpass(order int, cutoff, fs float64) []Biquad {
	wo := 2 * fs * math.Tan(math.Pi*cutoff/fs)

	proto := zpk{p: butterPoles(order), k: 1}
	analog := lp2hp(proto, wo)
	return toSections(bilinear(analog, fs))
}
