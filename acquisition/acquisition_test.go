package acquisition

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/c360/neurostream/config"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Sample
		wantErr bool
	}{
		{"valid", "1234.567,512.3,498.1", Sample{1234.567, 512.3, 498.1}, false},
		{"crlf terminated", "100,200,300\r", Sample{100, 200, 300}, false},
		{"at range edges", "0,0,5000", Sample{0, 0, 5000}, false},
		{"too few fields", "100,200", Sample{}, true},
		{"too many fields", "100,200,300,400", Sample{}, true},
		{"bad timestamp", "abc,200,300", Sample{}, true},
		{"bad channel", "100,x,300", Sample{}, true},
		{"left below range", "100,-1,300", Sample{}, true},
		{"right above range", "100,200,5001", Sample{}, true},
		{"empty", "", Sample{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePacket(tt.line, 0, 5000)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCorruptionRate(t *testing.T) {
	assert.Zero(t, corruptionRate(0, 5))
	assert.InDelta(t, 0, corruptionRate(100, 0), 1e-12)
	assert.InDelta(t, 25, corruptionRate(75, 25), 1e-12)
}

func simConfig() (config.AcquisitionConfig, config.SignalConfig) {
	cfg := config.Default()
	return cfg.Acquisition, cfg.Signal
}

func TestSimSource_PacedEmission(t *testing.T) {
	acq, sig := simConfig()
	s := NewSimSource(acq, sig, nil, WithSeed(1))

	_, ok := s.ReadSample()
	assert.False(t, ok, "read before connect")

	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())

	time.Sleep(30 * time.Millisecond)
	batch := s.ReadBatch(50)
	require.NotEmpty(t, batch)
	assert.LessOrEqual(t, len(batch), 50)

	for i, sample := range batch {
		assert.GreaterOrEqual(t, sample.Left, acq.ADCMin)
		assert.LessOrEqual(t, sample.Left, acq.ADCMax)
		assert.GreaterOrEqual(t, sample.Right, acq.ADCMin)
		assert.LessOrEqual(t, sample.Right, acq.ADCMax)
		if i > 0 {
			assert.Greater(t, sample.Timestamp, batch[i-1].Timestamp)
		}
	}

	assert.Equal(t, uint64(len(batch)), s.Statistics().PacketsReceived)

	require.NoError(t, s.Close())
	_, ok = s.ReadSample()
	assert.False(t, ok, "read after close")
}

func TestSimSource_AttentionLateralizesAlpha(t *testing.T) {
	acq, sig := simConfig()
	s := NewSimSource(acq, sig, nil, WithSeed(7), WithAttentionPeriod(time.Second))

	mid := (acq.ADCMin + acq.ADCMax) / 2
	var leftSS, rightSS float64
	n := int(sig.SampleRateHz) // first epoch only
	for i := 0; i < n; i++ {
		sample := s.synthesize(int64(i))
		leftSS += (sample.Left - mid) * (sample.Left - mid)
		rightSS += (sample.Right - mid) * (sample.Right - mid)
	}

	leftRMS := math.Sqrt(leftSS / float64(n))
	rightRMS := math.Sqrt(rightSS / float64(n))
	assert.Less(t, leftRMS, rightRMS,
		"attending-left epoch should suppress left alpha")
}

func TestSimSource_Reconnect(t *testing.T) {
	acq, sig := simConfig()
	s := NewSimSource(acq, sig, nil, WithSeed(1))

	assert.True(t, s.Reconnect())
	assert.True(t, s.IsConnected())
}

func TestSerialSource_DrainLines(t *testing.T) {
	acq, _ := simConfig()
	s := NewSerialSource(acq, nil)

	s.pending = []byte("1,100,200\ngarbage\n2,300,400\n3,par")
	s.drainLines()

	first, ok := s.queue.Read()
	require.True(t, ok)
	assert.Equal(t, 100.0, first.Left)
	second, ok := s.queue.Read()
	require.True(t, ok)
	assert.Equal(t, 400.0, second.Right)
	_, ok = s.queue.Read()
	assert.False(t, ok)

	// incomplete tail stays pending for the next port read
	assert.Equal(t, "3,par", string(s.pending))

	stats := s.Statistics()
	assert.Equal(t, uint64(2), stats.PacketsReceived)
	assert.Equal(t, uint64(1), stats.PacketsCorrupted)
}

func TestSerialSource_ConnectFailsOnMissingPort(t *testing.T) {
	acq, _ := simConfig()
	acq.SerialPort = "/dev/nonexistent-eeg"
	s := NewSerialSource(acq, nil)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsConnected())

	_, ok := s.ReadSample()
	assert.False(t, ok)
	assert.Empty(t, s.ReadBatch(10))
}

func TestSerialSource_ReconnectCooldown(t *testing.T) {
	acq, _ := simConfig()
	acq.SerialPort = "/dev/nonexistent-eeg"
	acq.ReconnectCooldown = 50 * time.Millisecond
	acq.MaxReconnectRetries = 10
	s := NewSerialSource(acq, nil)

	assert.False(t, s.Reconnect())
	assert.Equal(t, 1, s.Statistics().ReconnectAttempts)

	// gated by the cooldown, no attempt spent
	assert.False(t, s.Reconnect())
	assert.Equal(t, 1, s.Statistics().ReconnectAttempts)

	time.Sleep(60 * time.Millisecond)
	assert.False(t, s.Reconnect())
	assert.Equal(t, 2, s.Statistics().ReconnectAttempts)
}

func TestSerialSource_ReconnectExhaustion(t *testing.T) {
	acq, _ := simConfig()
	acq.SerialPort = "/dev/nonexistent-eeg"
	acq.ReconnectCooldown = time.Millisecond
	acq.MaxReconnectRetries = 2
	s := NewSerialSource(acq, nil)

	for i := 0; i < 3; i++ {
		time.Sleep(2 * time.Millisecond)
		assert.False(t, s.Reconnect())
	}
	assert.Greater(t, s.Statistics().ReconnectAttempts, acq.MaxReconnectRetries)
}

func TestSerialSource_CloseIdempotent(t *testing.T) {
	acq, _ := simConfig()
	s := NewSerialSource(acq, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestChoosePort(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, Product: "Bluetooth adapter"},
		{Name: "/dev/ttyACM0", IsUSB: true, Product: "Arduino Uno"},
	}

	// a known adapter wins over earlier unrecognized ports
	assert.Equal(t, "/dev/ttyACM0", choosePort(ports))

	// no known adapter: first enumerated port
	assert.Equal(t, "/dev/ttyS0", choosePort(ports[:2]))

	assert.Empty(t, choosePort(nil))
}
