// internal/telemetry/sample.go
package telemetry

import "fmt"

// Neutral actuator commands reported while the microcontroller is offline.
const (
	DefaultSpeedCommand    = 1400
	DefaultSteeringCommand = 1568
)

// Sample is one telemetry reading from the microcontroller.
// Value type: copy freely, never mutate after construction.
type Sample struct {
	SpeedCommand    int
	SteeringCommand int
	Speed           float32
	Steering        float32
	Distance        float32
	Online          bool
}

// Default returns the telemetry used when the serial link is offline.
func Default() Sample {
	return Sample{
		SpeedCommand:    DefaultSpeedCommand,
		SteeringCommand: DefaultSteeringCommand,
	}
}

func (s Sample) String() string {
	return fmt.Sprintf("[%d;%d;%.1f]", s.SpeedCommand, s.SteeringCommand, s.Distance)
}
