// Package acquisition reads two-channel EEG samples from a transport:
// a serial-attached microcontroller front end, or a synthetic signal
// generator for runs without hardware. Reads are non-blocking; the
// decode loop polls and handles empty reads with short idle sleeps.
package acquisition

import (
	"context"
	"time"
)

// Sample is one two-channel ADC reading. Timestamp is the device
// clock in milliseconds.
type Sample struct {
	Timestamp float64
	Left      float64
	Right     float64
}

// Statistics is a snapshot of transport health.
type Statistics struct {
	Connected           bool          `json:"connected"`
	PacketsReceived     uint64        `json:"packets_received"`
	PacketsCorrupted    uint64        `json:"packets_corrupted"`
	CorruptionRatePct   float64       `json:"corruption_rate_percent"`
	TimeSinceLastPacket time.Duration `json:"time_since_last_packet"`
	ReconnectAttempts   int           `json:"reconnect_attempts"`
}

// Source is the sample transport consumed by the decode loop.
//
// ReadSample and ReadBatch never block beyond the transport's read
// timeout and report false/empty when no data is pending. Reconnect
// is rate-limited internally; callers may invoke it on every failed
// read and watch Statistics().ReconnectAttempts against their retry
// budget to detect a lost connection.
type Source interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	ReadSample() (Sample, bool)
	ReadBatch(max int) []Sample
	Reconnect() bool
	Statistics() Statistics
	Close() error
}

// corruptionRate is the corrupted share of all packets, in percent.
func corruptionRate(received, corrupted uint64) float64 {
	if received == 0 {
		return 0
	}
	return float64(corrupted) / float64(received+corrupted) * 100
}
