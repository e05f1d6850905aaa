// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// session name sanity (ASCII only)
	for i := 0; i < len(cfg.Session.Name); i++ {
		if cfg.Session.Name[i] > 0x7F {
			return fmt.Errorf("session: name must contain ASCII characters only")
		}
	}

	// ------------------------------------------------------------
	// SERIAL LINK
	// ------------------------------------------------------------

	s := cfg.Serial
	if s.BaudRate < 0 || s.TimeoutMs < 0 {
		return fmt.Errorf("serial: baud_rate and timeout_ms must be >= 0")
	}
	if s.DataBits != 0 && (s.DataBits < 5 || s.DataBits > 8) {
		return fmt.Errorf("serial: data_bits %d out of range 5..8", s.DataBits)
	}
	if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial: stop_bits must be 1 or 2")
	}
	switch s.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial: parity %q must be N, E or O", s.Parity)
	}
	switch s.InitialMode {
	case "", "M", "C":
	default:
		return fmt.Errorf("serial: initial_mode %q must be M or C", s.InitialMode)
	}

	// ------------------------------------------------------------
	// NETWORK CLIENT
	// ------------------------------------------------------------

	n := cfg.Network
	switch n.Mode {
	case "", "stream":
		if n.Address == "" {
			return fmt.Errorf("network: stream mode requires address")
		}
		if n.Bind != "" {
			return fmt.Errorf("network: bind is only valid in datagram mode")
		}
	case "datagram":
		if n.Address == "" && n.Bind == "" {
			return fmt.Errorf("network: datagram mode requires address or bind")
		}
		if n.Proxy != "" {
			return fmt.Errorf("network: proxy is only valid in stream mode")
		}
	default:
		return fmt.Errorf("network: mode %q must be stream or datagram", n.Mode)
	}
	if n.DialTimeoutMs < 0 || n.PingTimeoutMs < 0 || n.PollIntervalMs < 0 {
		return fmt.Errorf("network: timeouts must be >= 0")
	}

	// ------------------------------------------------------------
	// CAMERA
	// ------------------------------------------------------------

	c := cfg.Camera
	switch c.Source {
	case "", "synthetic", "none":
	case "dir":
		if c.Dir == "" {
			return fmt.Errorf("camera: dir source requires dir")
		}
	default:
		return fmt.Errorf("camera: source %q must be synthetic, dir or none", c.Source)
	}
	if c.Width < 0 || c.Height < 0 || c.FPS < 0 {
		return fmt.Errorf("camera: width, height and fps must be >= 0")
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("camera: NV21 frames need even width and height, got %dx%d", c.Width, c.Height)
	}
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("camera: quality %d out of range 0..100", c.Quality)
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	t := cfg.Timing
	if t.ReconnectIntervalMs < 0 || t.FallbackIntervalMs < 0 || t.StatusIntervalMs < 0 {
		return fmt.Errorf("timing: intervals must be >= 0")
	}

	// ------------------------------------------------------------
	// OPTIONAL EXPORTS
	// ------------------------------------------------------------

	if cfg.Status.TimeoutMs < 0 {
		return fmt.Errorf("status: timeout_ms must be >= 0")
	}
	if cfg.Status.Endpoint != "" && cfg.Status.UnitID == 0 {
		return fmt.Errorf("status: endpoint is set but unit_id is 0")
	}

	m := cfg.MQTT
	if m.QoS > 2 {
		return fmt.Errorf("mqtt: qos %d out of range 0..2", m.QoS)
	}
	switch m.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("mqtt: encoding %q must be json or msgpack", m.Encoding)
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log: format %q must be json or console", cfg.Log.Format)
	}

	return nil
}

// ValidateStation checks the operator-side section.
// Vehicle sections are not required for the station.
func ValidateStation(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	st := cfg.Station
	switch st.Mode {
	case "", "stream":
		if st.Listen == "" {
			return fmt.Errorf("station: stream mode requires listen")
		}
	case "datagram":
		if st.Vehicle == "" {
			return fmt.Errorf("station: datagram mode requires vehicle")
		}
	default:
		return fmt.Errorf("station: mode %q must be stream or datagram", st.Mode)
	}
	if st.PingIntervalMs < 0 {
		return fmt.Errorf("station: ping_interval_ms must be >= 0")
	}
	return nil
}
