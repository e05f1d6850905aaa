// internal/status/encode.go
package status

// Encode converts a Snapshot into the live slots of the status block
// (LiveSlots registers, starting at slot 0).
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, LiveSlots)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotSerialState] = s.SerialState
	regs[SlotNetworkState] = s.NetworkState
	regs[SlotSuccessPermille] = s.SuccessPermille
	regs[SlotQuality] = s.Quality
	regs[SlotIllumination] = s.Illumination
	regs[SlotSpeedCommand] = s.SpeedCommand
	regs[SlotSteeringCommand] = s.SteeringCommand
	regs[SlotDistanceDecimeters] = s.DistanceDecimeters
	regs[SlotQueueDepth] = s.QueueDepth

	return regs
}

// Clamp converts a non-negative quantity to a register value, saturating
// instead of wrapping.
func Clamp(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 65535:
		return 65535
	default:
		return uint16(v)
	}
}
