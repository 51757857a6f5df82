package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/dsp"
	"github.com/c360/neurostream/testutil"
)

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	cfg := config.Default().Signal
	return NewExtractor(cfg, dsp.NewChain(cfg, nil))
}

func sine(freq, amp, fs float64, n int) []float64 {
	return testutil.Sine(freq, amp, fs, n)
}

func TestAlphaPower_AsymmetricChannels(t *testing.T) {
	e := testExtractor(t)

	left := sine(10, 1, 250, 500)
	right := sine(10, 2, 250, 500)

	lp, rp := e.AlphaPower(left, right)
	assert.Greater(t, lp, 0.0)
	// 2x amplitude gives roughly 4x power
	assert.InDelta(t, 4.0, rp/lp, 0.2)
}

func TestAlphaPower_NonAlphaSignal(t *testing.T) {
	e := testExtractor(t)

	left := sine(25, 1, 250, 500)
	lp, _ := e.AlphaPower(left, left)
	assert.Less(t, lp, 0.01)
}

func TestAlphaEnvelope(t *testing.T) {
	e := testExtractor(t)

	left := sine(10, 1, 250, 500)
	envL, envR := e.AlphaEnvelope(left, left)
	require.Len(t, envL, 500)
	require.Len(t, envR, 500)

	// interior envelope of a unit alpha tone is near 1
	for _, v := range envL[100:400] {
		assert.InDelta(t, 1.0, v, 0.15)
	}
}

func TestSpectralFeatures_AlphaTone(t *testing.T) {
	e := testExtractor(t)

	s := e.SpectralFeatures(sine(10, 1, 250, 500))

	assert.Greater(t, s["alpha_power"], s["beta_power"])
	assert.Greater(t, s["relative_alpha"], 0.5)
	assert.InDelta(t, 10.0, s["peak_alpha_frequency"], 2.0)
	assert.InDelta(t, 10.0, s["median_frequency"], 3.0)
	assert.Greater(t, s["total_power"], 0.0)
}

func TestSpectralFeatures_EmptyInput(t *testing.T) {
	e := testExtractor(t)

	s := e.SpectralFeatures(nil)
	for k, v := range s {
		assert.Zero(t, v, "key %s", k)
	}
	assert.Len(t, s, 11)
}

func TestTimeDomainFeatures(t *testing.T) {
	e := testExtractor(t)

	f := e.TimeDomainFeatures([]float64{1, -1, 1, -1})

	assert.Zero(t, f["mean"])
	assert.Equal(t, 1.0, f["std"])
	assert.Equal(t, 1.0, f["variance"])
	assert.Equal(t, 2.0, f["peak_to_peak"])
	assert.Equal(t, 1.0, f["rms"])
	assert.Equal(t, 4.0, f["energy"])
	assert.Equal(t, 1.0, f["max_amplitude"])
	assert.Equal(t, 0.75, f["zero_crossing_rate"])
	assert.Zero(t, f["skewness"])
	// flat two-point distribution has kurtosis -2
	assert.InDelta(t, -2.0, f["kurtosis"], 1e-12)
}

func TestTimeDomainFeatures_Empty(t *testing.T) {
	e := testExtractor(t)

	f := e.TimeDomainFeatures(nil)
	for k, v := range f {
		assert.Zero(t, v, "key %s", k)
	}
	assert.Len(t, f, 10)
}

func TestAllFeatures_CrossHemisphere(t *testing.T) {
	e := testExtractor(t)

	left := sine(10, 2, 250, 500)
	right := sine(10, 1, 250, 500)

	f := e.AllFeatures(left, right)

	assert.Greater(t, f["alpha_asymmetry"], 0.0)
	assert.InDelta(t, 4.0, f["alpha_ratio"], 0.5)
	// identical-phase alpha tones correlate strongly
	assert.Greater(t, f["alpha_coherence"], 0.95)

	assert.Contains(t, f, "left_alpha_power")
	assert.Contains(t, f, "right_median_frequency")
	assert.Contains(t, f, "left_zero_crossing_rate")
}

func TestAllFeatures_ZeroRightPower(t *testing.T) {
	e := testExtractor(t)

	left := sine(10, 1, 250, 500)
	right := make([]float64, 500)

	f := e.AllFeatures(left, right)
	assert.Zero(t, f["alpha_ratio"])
}

func TestAlphaCoherence_LengthMismatch(t *testing.T) {
	e := testExtractor(t)

	f := e.alphaCoherence(make([]float64, 500), make([]float64, 400))
	assert.Zero(t, f)

	assert.Zero(t, e.alphaCoherence([]float64{1}, []float64{1}))
}

func TestMinimalFeatures(t *testing.T) {
	e := testExtractor(t)

	left := sine(10, 1, 250, 500)
	right := sine(20, 1, 250, 500)

	m := e.MinimalFeatures(left, right)

	assert.Greater(t, m.LeftAlphaPower, m.RightAlphaPower)
	assert.Greater(t, m.RightBetaPower, m.LeftBetaPower)
	assert.InDelta(t, 0.5, m.LeftVariance, 0.05)
	assert.InDelta(t, 0.5, m.RightVariance, 0.05)
}
