package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelchBinHz(t *testing.T) {
	assert.InDelta(t, 9.765625, WelchBinHz(250, 5), 1e-9)
	assert.InDelta(t, 0, WelchBinHz(250, 0), 1e-12)
}

func TestSine_AmplitudeAndPeriod(t *testing.T) {
	sig := Sine(10, 2, 250, 250)
	assert.Len(t, sig, 250)
	assert.InDelta(t, 0, sig[0], 1e-12)

	peak := 0.0
	for _, v := range sig {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	assert.InDelta(t, 2, peak, 0.05)
}

func TestConstantAndOffset(t *testing.T) {
	sig := Constant(3, 4)
	assert.Equal(t, []float64{3, 3, 3, 3}, sig)

	shifted := Offset(sig, -1)
	assert.Equal(t, []float64{2, 2, 2, 2}, shifted)
	assert.Equal(t, []float64{3, 3, 3, 3}, sig)
}

func TestNoise_Deterministic(t *testing.T) {
	a := Noise(1, 42, 100)
	b := Noise(1, 42, 100)
	assert.Equal(t, a, b)

	c := Noise(1, 43, 100)
	assert.NotEqual(t, a, c)
}

func TestMix_UnevenLengths(t *testing.T) {
	sum := Mix([]float64{1, 1, 1}, []float64{2, 2})
	assert.Equal(t, []float64{3, 3, 1}, sum)
}
