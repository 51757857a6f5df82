package acquisition

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePacket parses one wire line of the form
// "timestamp,left,right", e.g. "1234.567,512.3,498.1". Channel values
// outside the ADC range are rejected as corruption; the front end
// never legitimately emits them.
func parsePacket(line string, adcMin, adcMax float64) (Sample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return Sample{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	ts, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("bad timestamp %q: %w", parts[0], err)
	}
	left, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("bad left value %q: %w", parts[1], err)
	}
	right, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("bad right value %q: %w", parts[2], err)
	}

	if left < adcMin || left > adcMax || right < adcMin || right > adcMax {
		return Sample{}, fmt.Errorf("values out of ADC range: left=%g right=%g", left, right)
	}

	return Sample{Timestamp: ts, Left: left, Right: right}, nil
}
