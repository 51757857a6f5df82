package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frequency response magnitude of a biquad cascade at freq Hz
func responseAt(sections []Biquad, freq, fs float64) float64 {
	w := 2 * math.Pi * freq / fs
	z := cmplx.Exp(complex(0, -w))
	h := complex(1, 0)
	for _, s := range sections {
		num := complex(s.B0, 0) + complex(s.B1, 0)*z + complex(s.B2, 0)*z*z
		den := complex(1, 0) + complex(s.A1, 0)*z + complex(s.A2, 0)*z*z
		h *= num / den
	}
	return cmplx.Abs(h)
}

func TestDesignNotch_Response(t *testing.T) {
	n := designNotch(50, 30, 250)
	sections := []Biquad{n}

	assert.InDelta(t, 1.0, responseAt(sections, 0.001, 250), 0.01)
	assert.Less(t, responseAt(sections, 50, 250), 0.01)
	assert.InDelta(t, 1.0, responseAt(sections, 100, 250), 0.05)
}

func TestButterBandpass_Response(t *testing.T) {
	sections := butterBandpass(4, 8, 12, 250)
	require.Len(t, sections, 4)

	center := math.Sqrt(8 * 12)
	assert.InDelta(t, 1.0, responseAt(sections, center, 250), 0.05)

	// band edges sit near the half-power point
	assert.InDelta(t, math.Sqrt2/2, responseAt(sections, 8, 250), 0.05)
	assert.InDelta(t, math.Sqrt2/2, responseAt(sections, 12, 250), 0.05)

	// deep rejection away from the band
	assert.Less(t, responseAt(sections, 2, 250), 0.01)
	assert.Less(t, responseAt(sections, 40, 250), 0.01)
}

func TestButterBandpass_Stability(t *testing.T) {
	for _, band := range [][2]float64{{1, 40}, {8, 12}, {13, 30}} {
		sections := butterBandpass(4, band[0], band[1], 250)
		for _, s := range sections {
			// poles inside the unit circle
			assert.Less(t, math.Abs(s.A2), 1.0, "band %v section %+v", band, s)
		}
	}
}

func TestButterHighpass_Response(t *testing.T) {
	sections := butterHighpass(2, 0.5, 250)
	require.Len(t, sections, 1)

	assert.Less(t, responseAt(sections, 0.01, 250), 0.01)
	assert.InDelta(t, math.Sqrt2/2, responseAt(sections, 0.5, 250), 0.05)
	assert.InDelta(t, 1.0, responseAt(sections, 10, 250), 0.01)
}

func TestButterPoles_LeftHalfPlane(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5} {
		for _, p := range butterPoles(n) {
			assert.Negative(t, real(p), "order %d pole %v", n, p)
			assert.InDelta(t, 1.0, cmplx.Abs(p), 1e-12)
		}
	}
}
