package acquisition

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/c360/neurostream/config"
	nserrors "github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/pkg/buffer"
)

// A line longer than this without a newline means the stream is
// garbage, not a slow packet.
const maxPendingBytes = 4096

// resetWait covers the microcontroller reboot triggered by the DTR
// toggle on port open.
const resetWait = 2 * time.Second

// sampleQueueCap bounds decoded samples awaiting pickup. At 250 Hz
// this is two seconds of backlog; beyond that the oldest are stale.
const sampleQueueCap = 512

// SerialSource reads samples from a serial-attached front end that
// streams one CSV line per sample. It survives unplugs via
// rate-limited reconnects.
//
// Not safe for concurrent use; the decode loop owns it.
type SerialSource struct {
	cfg    config.AcquisitionConfig
	logger *slog.Logger

	port      serial.Port
	connected bool
	pending   []byte
	readBuf   []byte
	queue     *buffer.Ring[Sample]

	received      uint64
	corrupted     uint64
	lastPacket    time.Time
	reconnects    int
	lastReconnect time.Time
}

// NewSerialSource returns an unconnected source.
func NewSerialSource(cfg config.AcquisitionConfig, logger *slog.Logger) *SerialSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialSource{
		cfg:        cfg,
		logger:     logger,
		readBuf:    make([]byte, 1024),
		queue:      buffer.NewRing[Sample](sampleQueueCap, buffer.DropOldest),
		lastPacket: time.Now(),
	}
}

// Connect opens the configured port and waits out the device reset.
// An empty or "auto" port triggers enumeration-based detection.
func (s *SerialSource) Connect(ctx context.Context) error {
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}

	portName := s.cfg.SerialPort
	if portName == "" || strings.EqualFold(portName, "auto") {
		detected, err := s.detectPort()
		if err != nil {
			s.connected = false
			return err
		}
		portName = detected
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	s.logger.Info("opening serial port",
		"port", portName, "baud", s.cfg.BaudRate)

	port, err := serial.Open(portName, mode)
	if err != nil {
		s.connected = false
		return nserrors.WrapTransient(err, "SerialSource", "Connect",
			"opening "+portName)
	}
	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		s.connected = false
		return nserrors.Wrap(err, "SerialSource", "Connect", "setting read timeout")
	}

	select {
	case <-time.After(resetWait):
	case <-ctx.Done():
		_ = port.Close()
		s.connected = false
		return nserrors.Wrap(ctx.Err(), "SerialSource", "Connect", "waiting for device reset")
	}

	// discard boot noise
	if err := port.ResetInputBuffer(); err != nil {
		s.logger.Warn("could not flush input buffer", "error", err)
	}

	s.port = port
	s.pending = s.pending[:0]
	s.queue = buffer.NewRing[Sample](sampleQueueCap, buffer.DropOldest)
	s.connected = true
	s.reconnects = 0

	s.logger.Info("serial port connected", "port", portName)
	return nil
}

// deviceKeywords identify the USB serial adapters common
// microcontroller front ends show up as.
var deviceKeywords = []string{"arduino", "ch340", "usb serial", "atmega"}

// detectPort scans the enumerated serial ports for a known adapter.
func (s *SerialSource) detectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", nserrors.WrapTransient(err, "SerialSource", "detectPort",
			"listing serial ports")
	}
	name := choosePort(ports)
	if name == "" {
		return "", nserrors.WrapTransient(nserrors.ErrNoPortsFound,
			"SerialSource", "detectPort", "scanning for device")
	}
	s.logger.Info("serial port detected", "port", name)
	return name, nil
}

// choosePort prefers a USB port whose product string matches a known
// adapter, then falls back to the first enumerated port. Returns ""
// when no ports exist.
func choosePort(ports []*enumerator.PortDetails) string {
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		product := strings.ToLower(p.Product)
		for _, kw := range deviceKeywords {
			if strings.Contains(product, kw) {
				return p.Name
			}
		}
	}
	if len(ports) > 0 {
		return ports[0].Name
	}
	return ""
}

// IsConnected reports whether the port is open and healthy.
func (s *SerialSource) IsConnected() bool { return s.connected }

// ReadSample returns the next complete valid sample, or false when no
// full line is pending within the read timeout. Corrupted lines are
// counted and skipped. A transport error marks the source
// disconnected.
func (s *SerialSource) ReadSample() (Sample, bool) {
	if !s.connected {
		return Sample{}, false
	}

	for {
		if sample, ok := s.queue.Read(); ok {
			return sample, true
		}

		if len(s.pending) > maxPendingBytes {
			s.corrupted++
			s.pending = s.pending[:0]
			s.logger.Warn("discarding unterminated serial data",
				"bytes", maxPendingBytes)
		}

		n, err := s.port.Read(s.readBuf)
		if err != nil {
			s.logger.Error("serial read failed", "error", err)
			s.connected = false
			return Sample{}, false
		}
		if n == 0 {
			// read timeout, nothing pending
			return Sample{}, false
		}
		s.pending = append(s.pending, s.readBuf[:n]...)
		s.drainLines()
	}
}

// drainLines parses every complete line in pending into the sample
// queue. One port read at 115200 baud typically carries several
// packets.
func (s *SerialSource) drainLines() {
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			return
		}
		line := string(s.pending[:i])
		s.pending = s.pending[i+1:]

		sample, err := parsePacket(line, s.cfg.ADCMin, s.cfg.ADCMax)
		if err != nil {
			s.corrupted++
			s.logger.Debug("corrupted packet", "error", err)
			continue
		}
		s.received++
		s.lastPacket = time.Now()
		s.queue.Write(sample)
	}
}

// ReadBatch reads up to max samples without blocking past one read
// timeout.
func (s *SerialSource) ReadBatch(max int) []Sample {
	var out []Sample
	for len(out) < max {
		sample, ok := s.ReadSample()
		if !ok {
			break
		}
		out = append(out, sample)
	}
	return out
}

// Reconnect retries Connect, at most once per cooldown interval.
// Returns true only when a connection was re-established. Callers
// track exhaustion through Statistics().ReconnectAttempts.
func (s *SerialSource) Reconnect() bool {
	if time.Since(s.lastReconnect) < s.cfg.ReconnectCooldown {
		return false
	}
	s.lastReconnect = time.Now()
	s.reconnects++

	if s.reconnects > s.cfg.MaxReconnectRetries {
		s.logger.Error("reconnect attempts exhausted",
			"attempts", s.reconnects-1, "max", s.cfg.MaxReconnectRetries)
		return false
	}

	s.logger.Info("reconnecting",
		"attempt", s.reconnects, "max", s.cfg.MaxReconnectRetries)

	if err := s.Connect(context.Background()); err != nil {
		s.logger.Warn("reconnect failed", "error", err)
		return false
	}
	return true
}

// Statistics returns a transport health snapshot.
func (s *SerialSource) Statistics() Statistics {
	return Statistics{
		Connected:           s.connected,
		PacketsReceived:     s.received,
		PacketsCorrupted:    s.corrupted,
		CorruptionRatePct:   corruptionRate(s.received, s.corrupted),
		TimeSinceLastPacket: time.Since(s.lastPacket),
		ReconnectAttempts:   s.reconnects,
	}
}

// Close releases the port. Safe to call repeatedly.
func (s *SerialSource) Close() error {
	s.connected = false
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return nserrors.Wrap(err, "SerialSource", "Close", "closing port")
	}
	s.logger.Info("serial port closed")
	return nil
}
