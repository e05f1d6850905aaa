// internal/serial/parser.go
package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/carlink/internal/telemetry"
)

// maxLineLen bounds one telemetry line. Longer lines are discarded.
const maxLineLen = 128

var ErrMalformedLine = errors.New("serial: malformed telemetry line")

// LineParser splits the inbound byte stream into lines.
//
// Nothing is emitted until the first '\n' has been seen: the bytes before
// it may be the tail of a line that started before the port was opened.
type LineParser struct {
	synced bool
	buf    []byte
}

// Feed consumes p and calls emit once per complete, non-empty line.
func (p *LineParser) Feed(b []byte, emit func(line string)) {
	for _, c := range b {
		if c == '\n' {
			if p.synced {
				if line := strings.TrimSpace(string(p.buf)); line != "" {
					emit(line)
				}
			}
			p.synced = true
			p.buf = p.buf[:0]
			continue
		}
		if !p.synced {
			continue
		}
		if len(p.buf) >= maxLineLen {
			// drop and wait for the next newline
			p.synced = false
			p.buf = p.buf[:0]
			continue
		}
		p.buf = append(p.buf, c)
	}
}

// ParseTelemetry parses "<speedCmd> <steeringCmd> <distance>".
// Tokens after the third are ignored.
func ParseTelemetry(line string) (telemetry.Sample, error) {
	parts := strings.Split(line, " ")
	if len(parts) < 3 {
		return telemetry.Sample{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	speed, err := strconv.Atoi(parts[0])
	if err != nil {
		return telemetry.Sample{}, fmt.Errorf("%w: speed: %v", ErrMalformedLine, err)
	}
	steering, err := strconv.Atoi(parts[1])
	if err != nil {
		return telemetry.Sample{}, fmt.Errorf("%w: steering: %v", ErrMalformedLine, err)
	}
	dist, err := strconv.ParseFloat(parts[2], 32)
	if err != nil {
		return telemetry.Sample{}, fmt.Errorf("%w: distance: %v", ErrMalformedLine, err)
	}

	return telemetry.Sample{
		SpeedCommand:    speed,
		SteeringCommand: steering,
		Distance:        float32(dist),
		Online:          true,
	}, nil
}
