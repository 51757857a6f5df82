package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/neurostream/acquisition"
	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/decision"
	nserrors "github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/testutil"
)

// fakeSource replays a canned sample stream, then idles. dropAfter
// simulates a transport failure once the stream is exhausted.
type fakeSource struct {
	samples    []acquisition.Sample
	pos        int
	connected  bool
	dropOnDone bool
	reconnects int
}

func (f *fakeSource) Connect(_ context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeSource) IsConnected() bool { return f.connected }

func (f *fakeSource) ReadSample() (acquisition.Sample, bool) {
	if !f.connected || f.pos >= len(f.samples) {
		if f.dropOnDone {
			f.connected = false
		}
		return acquisition.Sample{}, false
	}
	s := f.samples[f.pos]
	f.pos++
	return s, true
}

func (f *fakeSource) ReadBatch(max int) []acquisition.Sample {
	var out []acquisition.Sample
	for len(out) < max {
		s, ok := f.ReadSample()
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

func (f *fakeSource) Reconnect() bool {
	f.reconnects++
	return false
}

func (f *fakeSource) Statistics() acquisition.Statistics {
	return acquisition.Statistics{
		Connected:         f.connected,
		PacketsReceived:   uint64(f.pos),
		ReconnectAttempts: f.reconnects,
	}
}

func (f *fakeSource) Close() error {
	f.connected = false
	return nil
}

// captureSink records everything written to it.
type captureSink struct {
	mu       sync.Mutex
	results  []Result
	focus    []FocusResult
	statuses []Status
	closed   bool
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) WriteResult(r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *captureSink) WriteFocus(r FocusResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focus = append(c.focus, r)
	return nil
}

func (c *captureSink) WriteStatus(s Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) resultCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Signal.WindowSeconds = 1 // 250-sample windows keep tests quick
	cfg.StatusInterval = 10 * time.Millisecond
	return cfg
}

// lateralizedSamples synthesizes clean alpha windows with the right
// channel carrying the stronger rhythm, so attention decodes RIGHT.
func lateralizedSamples(n int, leftAmp, rightAmp float64) []acquisition.Sample {
	freq := testutil.WelchBinHz(250, 5) // near 9.77 Hz
	left := testutil.Offset(testutil.Sine(freq, leftAmp, 250, n), 2500)
	right := testutil.Offset(testutil.Sine(freq, rightAmp, 250, n), 2500)
	out := make([]acquisition.Sample, n)
	for i := range out {
		out[i] = acquisition.Sample{
			Timestamp: float64(i) * 4,
			Left:      left[i],
			Right:     right[i],
		}
	}
	return out
}

func flatSamples(n int, value float64) []acquisition.Sample {
	out := make([]acquisition.Sample, n)
	for i := range out {
		out[i] = acquisition.Sample{Timestamp: float64(i) * 4, Left: value, Right: value}
	}
	return out
}

func TestDecoder_ProcessesWindows(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{samples: lateralizedSamples(1000, 10, 30)}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)
	require.NoError(t, d.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.resultCount() >= 3 },
		time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	first := sink.results[0]
	assert.Greater(t, first.RightAlphaPower, first.LeftAlphaPower)
	assert.Greater(t, first.LateralizationIdx, 0.2)
	assert.Equal(t, decision.DirectionRight.String(), first.Direction)
	assert.False(t, first.LeftArtifact)
	assert.False(t, first.RightArtifact)
	assert.Greater(t, first.QualityScore, 80.0)
	assert.True(t, sink.closed)
}

func TestDecoder_DegradedWindowSkipsAdaptiveHistory(t *testing.T) {
	cfg := testConfig()
	// flat signal filters to nothing: low-signal artifact on both
	// channels
	src := &fakeSource{samples: flatSamples(600, 2500)}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.resultCount() >= 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	r := sink.results[0]
	sink.mu.Unlock()

	assert.Equal(t, decision.DirectionUnknown.String(), r.Direction)
	assert.Equal(t, decision.DirectionUnknown.String(), r.SmoothedDirection)
	assert.Zero(t, r.LateralizationIdx)
	assert.Zero(t, r.Confidence)
	assert.True(t, r.LeftArtifact)
	assert.True(t, r.RightArtifact)

	assert.Zero(t, d.lateral.CalibrationStatus().HistorySize,
		"degraded windows must not feed the calibration history")
}

func TestDecoder_EmitsStatus(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{samples: lateralizedSamples(1000, 10, 30)}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.statuses) >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	s := sink.statuses[0]
	assert.Equal(t, config.ModeAttention, s.Mode)
	assert.Positive(t, s.SamplesProcessed)
	require.NotNil(t, s.Calibration)
	require.NotNil(t, s.Decisions)
	assert.Nil(t, s.Focus)
}

func TestDecoder_EmitsStatusWhileIdle(t *testing.T) {
	cfg := testConfig()
	// connected source that never produces a sample
	src := &fakeSource{}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.statuses) >= 2
	}, time.Second, 5*time.Millisecond,
		"an idle source must still report on the status interval")
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Zero(t, sink.statuses[0].SamplesProcessed)
	assert.Zero(t, sink.statuses[0].WindowsProcessed)
}

func TestDecoder_ConnectionLostIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Acquisition.MaxReconnectRetries = 2
	src := &fakeSource{
		samples:    nil,
		dropOnDone: true,
		reconnects: 3, // budget already spent
	}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := d.Run(ctx)
	require.Error(t, err)
	assert.True(t, nserrors.IsFatal(err))
	assert.ErrorIs(t, err, nserrors.ErrNoConnection)
}

func TestDecoder_FocusModeEmitsFocusRecords(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeFocus
	src := &fakeSource{samples: lateralizedSamples(1000, 30, 30)}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.focus) >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	r := sink.focus[0]
	assert.Equal(t, decision.FocusUncalibrated.String(), r.State)
	assert.Equal(t, 1.0, r.SuppressionRatio)
	assert.Empty(t, sink.results, "focus mode must not emit attention records")
}

func TestDecoder_CalibrateThenClassify(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeFocus
	src := &fakeSource{samples: lateralizedSamples(3000, 30, 30)}
	sink := &captureSink{}
	d := NewDecoder(cfg, src, []Sink{sink}, nil, nil)

	ctx := context.Background()
	require.NoError(t, d.Calibrate(ctx, 200*time.Millisecond))
	assert.True(t, d.focus.Calibrated())
	assert.Positive(t, d.focus.Baseline().Mean)
}

func TestDecoder_StartStopLifecycle(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{samples: lateralizedSamples(500, 10, 30)}
	d := NewDecoder(cfg, src, []Sink{&captureSink{}}, nil, nil)
	require.NoError(t, d.Initialize())

	require.NoError(t, d.Start(context.Background()))

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.True(t, nserrors.IsInvalid(err))

	assert.NoError(t, d.Stop(2*time.Second))

	h := d.Health()
	assert.False(t, h.Healthy)
}

func TestDecoder_Meta(t *testing.T) {
	cfg := testConfig()
	d := NewDecoder(cfg, &fakeSource{}, nil, nil, nil)
	m := d.Meta()
	assert.Equal(t, "decoder", m.Name)
	assert.Equal(t, "decoder", m.Type)
}
