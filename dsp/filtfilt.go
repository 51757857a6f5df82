package dsp

// Zero-phase filtering: run the filter forward then backward so phase
// distortion cancels. Edge transients are controlled by odd-extension
// padding and steady-state initial conditions, matching the standard
// forward-backward formulation.

// apply runs the biquad over x in direct form II transposed, starting
// from the given state.
func (bq Biquad) apply(x []float64, z1, z2 float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		out := bq.B0*v + z1
		z1 = bq.B1*v - bq.A1*out + z2
		z2 = bq.B2*v - bq.A2*out
		y[i] = out
	}
	return y
}

// stepState returns the steady-state filter state for a unit step input,
// used to suppress startup transients in zero-phase filtering.
func (bq Biquad) stepState() (z1, z2 float64) {
	den := 1 + bq.A1 + bq.A2
	if den == 0 {
		return 0, 0
	}
	dcGain := (bq.B0 + bq.B1 + bq.B2) / den
	z2 = bq.B2 - bq.A2*dcGain
	z1 = bq.B1 - bq.A1*dcGain + z2
	return z1, z2
}

// oddExt extends x by n samples on each end by odd reflection about the
// end points.
func oddExt(x []float64, n int) []float64 {
	out := make([]float64, 0, len(x)+2*n)
	first, last := x[0], x[len(x)-1]
	for i := n; i >= 1; i-- {
		out = append(out, 2*first-x[i])
	}
	out = append(out, x...)
	for i := len(x) - 2; i >= len(x)-1-n; i-- {
		out = append(out, 2*last-x[i])
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// filtFiltBiquad zero-phase filters x through a single biquad.
func filtFiltBiquad(bq Biquad, x []float64) []float64 {
	return filtFiltSOS([]Biquad{bq}, x, 9)
}

// filtFiltSOS zero-phase filters x through cascaded sections. padWant is
// the desired extension length, shortened when x is too small; callers
// guard against inputs too short for stable filtering.
func filtFiltSOS(sections []Biquad, x []float64, padWant int) []float64 {
	if len(x) < 2 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	pad := padWant
	if pad >= len(x) {
		pad = len(x) - 1
	}

	ext := oddExt(x, pad)

	pass := func(data []float64) []float64 {
		for _, bq := range sections {
			z1, z2 := bq.stepState()
			data = bq.apply(data, z1*data[0], z2*data[0])
		}
		return data
	}

	y := pass(ext)
	reverse(y)
	y = pass(y)
	reverse(y)

	out := make([]float64, len(x))
	copy(out, y[pad:pad+len(x)])
	return out
}

// sosPadLen mirrors the conventional default extension length for a
// cascade of n second-order sections.
func sosPadLen(n int) int {
	return 3 * (2*n + 1)
}
