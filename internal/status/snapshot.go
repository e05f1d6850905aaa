// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	SerialState     uint16
	NetworkState    uint16
	SuccessPermille uint16
	Quality         uint16
	Illumination    uint16

	SpeedCommand       uint16
	SteeringCommand    uint16
	DistanceDecimeters uint16
	QueueDepth         uint16
}
