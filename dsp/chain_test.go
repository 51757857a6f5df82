package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/testutil"
)

func testChain(t *testing.T) *Chain {
	t.Helper()
	return NewChain(config.Default().Signal, nil)
}

func sine(freq, fs float64, n int) []float64 {
	return testutil.Sine(freq, 1, fs, n)
}

// rms over the central half, away from filter edge effects
func centralRMS(x []float64) float64 {
	lo, hi := len(x)/4, 3*len(x)/4
	var sum float64
	for _, v := range x[lo:hi] {
		sum += v * v
	}
	return math.Sqrt(sum / float64(hi-lo))
}

func TestNotch_AttenuatesLineFrequency(t *testing.T) {
	c := testChain(t)
	in := sine(50, 250, 1000)

	out := c.ApplyNotch(in)

	ratio := centralRMS(out) / centralRMS(in)
	attenuationDB := -20 * math.Log10(ratio)
	assert.Greater(t, attenuationDB, 20.0, "50 Hz should drop by more than 20 dB")
}

func TestNotch_PassesAlpha(t *testing.T) {
	c := testChain(t)
	in := sine(10, 250, 1000)

	out := c.ApplyNotch(in)

	ratio := centralRMS(out) / centralRMS(in)
	assert.InDelta(t, 1.0, ratio, 0.05)
}

func TestBandpass_PassbandLoss(t *testing.T) {
	c := testChain(t)
	in := sine(10, 250, 1000)

	out := c.ApplyBandpass(in)

	ratio := centralRMS(out) / centralRMS(in)
	lossDB := -20 * math.Log10(ratio)
	assert.Less(t, lossDB, 3.0, "10 Hz should lose less than 3 dB")
}

func TestBandpass_RejectsOutOfBand(t *testing.T) {
	c := testChain(t)
	in := sine(80, 250, 1000)

	out := c.ApplyBandpass(in)

	ratio := centralRMS(out) / centralRMS(in)
	assert.Less(t, ratio, 0.1, "80 Hz is far outside 1-40 Hz")
}

func TestExtractAlphaBand_Selectivity(t *testing.T) {
	c := testChain(t)

	inBand := c.ExtractAlphaBand(sine(10, 250, 1000))
	outBand := c.ExtractAlphaBand(sine(25, 250, 1000))

	assert.Greater(t, centralRMS(inBand), 0.7)
	assert.Less(t, centralRMS(outBand), 0.1)
}

func TestShortInput_Guards(t *testing.T) {
	c := testChain(t)
	short := []float64{1, 2, 3, 4, 5}

	// notch and bandpass pass through unchanged
	assert.Equal(t, short, c.ApplyNotch(short))
	assert.Equal(t, short, c.ApplyBandpass(short))

	// band extraction yields zeros
	assert.Equal(t, make([]float64, 5), c.ExtractAlphaBand(short))
	assert.Equal(t, make([]float64, 5), c.ExtractBetaBand(short))
}

func TestRemoveDC(t *testing.T) {
	c := testChain(t)
	in := []float64{11, 12, 13}

	out := c.RemoveDC(in)

	assert.InDeltaSlice(t, []float64{-1, 0, 1}, out, 1e-12)
	// input untouched
	assert.Equal(t, []float64{11, 12, 13}, in)
}

func TestPreprocess_Empty(t *testing.T) {
	c := testChain(t)
	assert.Empty(t, c.Preprocess(nil))
}

func TestPowerSpectrum_PeakAtSignalFrequency(t *testing.T) {
	c := testChain(t)
	in := sine(10, 250, 1000)

	freqs, psd := c.PowerSpectrum(in)
	require.NotEmpty(t, freqs)
	require.Len(t, psd, len(freqs))

	peak := 0
	for i := range psd {
		if psd[i] > psd[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 10.0, freqs[peak], 2.0)
}

func TestPowerSpectrum_TooShort(t *testing.T) {
	c := testChain(t)
	freqs, psd := c.PowerSpectrum([]float64{1})
	assert.Empty(t, freqs)
	assert.Empty(t, psd)
}

func TestBandPower_ConcentratedInBand(t *testing.T) {
	c := testChain(t)
	in := sine(10, 250, 1000)

	alpha := c.AlphaPower(in)
	beta := c.BetaPower(in)

	assert.Greater(t, alpha, 0.0)
	assert.Greater(t, alpha, 10*beta, "a 10 Hz tone should dominate the alpha band")
}

func TestBandPower_ShortInput(t *testing.T) {
	c := testChain(t)
	assert.Zero(t, c.BandPower([]float64{1, 2, 3}, 8, 12))
}

func TestLineNoisePower(t *testing.T) {
	c := testChain(t)

	noisy := c.LineNoisePower(sine(50, 250, 1000))
	clean := c.LineNoisePower(sine(10, 250, 1000))

	assert.Greater(t, noisy, 100*clean)
}

func TestEnvelope_ConstantForSinusoid(t *testing.T) {
	c := testChain(t)
	in := sine(10, 250, 1000)

	env := c.Envelope(in)
	require.Len(t, env, len(in))

	// away from the edges the envelope of a unit sinusoid is ~1
	for _, v := range env[100:900] {
		assert.InDelta(t, 1.0, v, 0.05)
	}
}

func TestEnvelope_FallbackForTinyInput(t *testing.T) {
	c := testChain(t)
	assert.Equal(t, []float64{2.5}, c.Envelope([]float64{-2.5}))
}

func TestSmooth(t *testing.T) {
	c := testChain(t)

	in := []float64{0, 0, 5, 0, 0, 0, 0}
	out := c.Smooth(in, 5)
	assert.InDelta(t, 1.0, out[2], 1e-12)

	// shorter than the window passes through
	short := []float64{1, 2}
	assert.Equal(t, short, c.Smooth(short, 5))
}

func TestRemoveBaselineDrift(t *testing.T) {
	c := testChain(t)

	// 10 Hz tone riding on a slow linear drift
	n := 1000
	in := make([]float64, n)
	for i := range in {
		in[i] = math.Sin(2*math.Pi*10*float64(i)/250) + 0.01*float64(i)
	}

	out := c.RemoveBaselineDrift(in, 0.5)

	var mean float64
	for _, v := range out[n/4 : 3*n/4] {
		mean += v
	}
	mean /= float64(n / 2)
	assert.InDelta(t, 0.0, mean, 0.2)
	assert.InDelta(t, math.Sqrt2/2, centralRMS(out), 0.1)

	// short input falls back to DC removal
	short := c.RemoveBaselineDrift([]float64{11, 12, 13}, 0.5)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, short, 1e-12)
}
