// internal/telemetry/sensors.go
package telemetry

import (
	"math"
	"sync/atomic"
)

// Sensor slot layout.
const (
	SlotAccelerometer = 0 // x, y, z
	SlotGyroscope     = 3 // x, y, z
	SlotMagnetometer  = 6 // x, y, z
	SlotLatitude      = 9
	SlotLongitude     = 10

	SensorCount = 11
)

// Sensors is the latest-value sensor array shared between sensor
// callbacks (writers) and the network client (reader).
//
// Each slot is stored atomically. A Snapshot is NOT consistent across slots:
// it may mix values from before and after a concurrent SetRange.
type Sensors struct {
	slots [SensorCount]atomic.Uint32
}

// Set stores one slot. Out-of-range indices are ignored.
func (s *Sensors) Set(i int, v float32) {
	if i < 0 || i >= SensorCount {
		return
	}
	s.slots[i].Store(math.Float32bits(v))
}

// SetRange stores consecutive slots starting at offset,
// e.g. SetRange(SlotGyroscope, x, y, z).
func (s *Sensors) SetRange(offset int, values ...float32) {
	for i, v := range values {
		s.Set(offset+i, v)
	}
}

// SetLocation stores a GPS fix.
func (s *Sensors) SetLocation(lat, lon float32) {
	s.Set(SlotLatitude, lat)
	s.Set(SlotLongitude, lon)
}

// ClearLocation marks the location as unavailable (-1, -1).
func (s *Sensors) ClearLocation() {
	s.SetLocation(-1, -1)
}

// Get returns one slot.
func (s *Sensors) Get(i int) float32 {
	if i < 0 || i >= SensorCount {
		return 0
	}
	return math.Float32frombits(s.slots[i].Load())
}

// Snapshot copies the latest available values.
func (s *Sensors) Snapshot() []float32 {
	out := make([]float32, SensorCount)
	for i := range out {
		out[i] = math.Float32frombits(s.slots[i].Load())
	}
	return out
}
