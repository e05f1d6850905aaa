// internal/config/normalize.go
package config

import (
	"github.com/google/uuid"
)

// Defaults applied by Normalize.
const (
	DefaultBaudRate     = 115200
	DefaultDataBits     = 8
	DefaultStopBits     = 1
	DefaultParity       = "N"
	DefaultInitialMode  = "M"
	DefaultSerialReadMs = 500

	DefaultNetworkMode    = "stream"
	DefaultDialTimeoutMs  = 10000
	DefaultPingTimeoutMs  = 5000
	DefaultPollIntervalMs = 100

	DefaultCameraSource = "synthetic"
	DefaultWidth        = 320
	DefaultHeight       = 240
	DefaultFPS          = 30
	DefaultQuality      = 80

	DefaultReconnectIntervalMs = 1000
	DefaultFallbackIntervalMs  = 5 // 200 Hz
	DefaultStatusIntervalMs    = 1000

	DefaultStatusTimeoutMs = 2000

	DefaultTopicPrefix = "carlink"
	DefaultEncoding    = "json"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultPingIntervalMs = 1000

	maxNameChars = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// SESSION IDENTITY
	// ------------------------------------------------------------

	if cfg.Session.ID == "" {
		cfg.Session.ID = uuid.NewString()
	}
	if cfg.Session.Name == "" {
		id := cfg.Session.ID
		if len(id) > 8 {
			id = id[:8]
		}
		cfg.Session.Name = "car-" + id
	}
	// ASCII already validated; truncate for the status block
	if len(cfg.Session.Name) > maxNameChars {
		cfg.Session.Name = cfg.Session.Name[:maxNameChars]
	}

	// ------------------------------------------------------------
	// SERIAL LINK
	// ------------------------------------------------------------

	s := &cfg.Serial
	setInt(&s.BaudRate, DefaultBaudRate)
	setInt(&s.DataBits, DefaultDataBits)
	setInt(&s.StopBits, DefaultStopBits)
	setInt(&s.TimeoutMs, DefaultSerialReadMs)
	setString(&s.Parity, DefaultParity)
	setString(&s.InitialMode, DefaultInitialMode)

	// ------------------------------------------------------------
	// NETWORK CLIENT
	// ------------------------------------------------------------

	n := &cfg.Network
	setString(&n.Mode, DefaultNetworkMode)
	setInt(&n.DialTimeoutMs, DefaultDialTimeoutMs)
	setInt(&n.PingTimeoutMs, DefaultPingTimeoutMs)
	setInt(&n.PollIntervalMs, DefaultPollIntervalMs)

	// ------------------------------------------------------------
	// CAMERA
	// ------------------------------------------------------------

	c := &cfg.Camera
	setString(&c.Source, DefaultCameraSource)
	setInt(&c.Width, DefaultWidth)
	setInt(&c.Height, DefaultHeight)
	setInt(&c.FPS, DefaultFPS)
	setInt(&c.Quality, DefaultQuality)

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	t := &cfg.Timing
	setInt(&t.ReconnectIntervalMs, DefaultReconnectIntervalMs)
	setInt(&t.FallbackIntervalMs, DefaultFallbackIntervalMs)
	setInt(&t.StatusIntervalMs, DefaultStatusIntervalMs)

	// ------------------------------------------------------------
	// OPTIONAL EXPORTS (defaults only matter when enabled)
	// ------------------------------------------------------------

	setInt(&cfg.Status.TimeoutMs, DefaultStatusTimeoutMs)

	m := &cfg.MQTT
	setString(&m.TopicPrefix, DefaultTopicPrefix)
	setString(&m.Encoding, DefaultEncoding)
	setString(&m.ClientID, "carlink-"+cfg.Session.ID)

	// ------------------------------------------------------------
	// LOGGING + STATION
	// ------------------------------------------------------------

	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)

	setString(&cfg.Station.Mode, DefaultNetworkMode)
	setInt(&cfg.Station.PingIntervalMs, DefaultPingIntervalMs)
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}
