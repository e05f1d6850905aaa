// internal/status/constants.go
package status

// Session Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per session.
const SlotsPerDevice = 24

// ---- SLOT INDICES ----

// SlotHealthCode holds the session health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last error category.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the session has been unhealthy.
const SlotSecondsInError = 2

// SlotSerialState holds the serial link state (0 NONE, 1 CONNECTING, 2 CONNECTED).
const SlotSerialState = 3

// SlotNetworkState holds the network client state.
const SlotNetworkState = 4

// SlotSuccessPermille holds the send success estimate in 1/1000.
const SlotSuccessPermille = 5

// SlotQuality holds the current image quality.
const SlotQuality = 6

// SlotIllumination holds the illumination flag (0/1).
const SlotIllumination = 7

// SlotSpeedCommand and SlotSteeringCommand hold the last telemetry commands.
const SlotSpeedCommand = 8
const SlotSteeringCommand = 9

// SlotDistanceDecimeters holds the last measured distance, in decimeters.
const SlotDistanceDecimeters = 10

// SlotQueueDepth holds the frame queue depth.
const SlotQueueDepth = 11

// LiveSlots is the number of slots carried by Encode.
const LiveSlots = 12

// ---- RESERVED RANGE ----

// Slots 12-15 are reserved for future use.
const SlotReservedStart = 12
const SlotReservedEnd = 15

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 16

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state.
const HealthUnknown uint16 = 0

// HealthOK means serial and network are both CONNECTED.
const HealthOK uint16 = 1

// HealthError means the network link is down.
const HealthError uint16 = 2

// HealthStale means the network is up but liveness was lost, or the
// serial link is down and telemetry is defaulted.
const HealthStale uint16 = 3

// ---- ERROR CODES ----

const (
	ErrorNone          uint16 = 0
	ErrorSerial        uint16 = 1
	ErrorNetwork       uint16 = 2
	ErrorFrameTooLarge uint16 = 3
)
