// internal/config/config.go
package config

type Config struct {
	Session SessionConfig `yaml:"session" toml:"session"`
	Serial  SerialConfig  `yaml:"serial" toml:"serial"`
	Network NetworkConfig `yaml:"network" toml:"network"`
	Camera  CameraConfig  `yaml:"camera" toml:"camera"`
	Timing  TimingConfig  `yaml:"timing" toml:"timing"`
	Status  StatusConfig  `yaml:"status" toml:"status"`
	MQTT    MQTTConfig    `yaml:"mqtt" toml:"mqtt"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	Station StationConfig `yaml:"station" toml:"station"`
}

// ---- SESSION ----

type SessionConfig struct {
	ID   string `yaml:"id" toml:"id"`     // generated when empty
	Name string `yaml:"name" toml:"name"` // ASCII, max 16 chars after Normalize
}

// ---- SERIAL LINK ----

type SerialConfig struct {
	Device      string `yaml:"device" toml:"device"` // empty disables the serial link
	BaudRate    int    `yaml:"baud_rate" toml:"baud_rate"`
	DataBits    int    `yaml:"data_bits" toml:"data_bits"`
	StopBits    int    `yaml:"stop_bits" toml:"stop_bits"`
	Parity      string `yaml:"parity" toml:"parity"` // N, E, O
	TimeoutMs   int    `yaml:"timeout_ms" toml:"timeout_ms"`
	InitialMode string `yaml:"initial_mode" toml:"initial_mode"` // M, C
}

// ---- NETWORK CLIENT ----

type NetworkConfig struct {
	Mode           string `yaml:"mode" toml:"mode"`       // stream, datagram
	Address        string `yaml:"address" toml:"address"` // station host:port
	Bind           string `yaml:"bind" toml:"bind"`       // datagram local address
	Proxy          string `yaml:"proxy" toml:"proxy"`     // socks5://host:port, stream only
	DialTimeoutMs  int    `yaml:"dial_timeout_ms" toml:"dial_timeout_ms"`
	PingTimeoutMs  int    `yaml:"ping_timeout_ms" toml:"ping_timeout_ms"`
	PollIntervalMs int    `yaml:"poll_interval_ms" toml:"poll_interval_ms"`
}

// ---- CAMERA ----

type CameraConfig struct {
	Source  string `yaml:"source" toml:"source"` // synthetic, dir, none
	Dir     string `yaml:"dir" toml:"dir"`
	Width   int    `yaml:"width" toml:"width"`
	Height  int    `yaml:"height" toml:"height"`
	FPS     int    `yaml:"fps" toml:"fps"`
	Quality int    `yaml:"quality" toml:"quality"`
}

// ---- TIMING ----

type TimingConfig struct {
	ReconnectIntervalMs int `yaml:"reconnect_interval_ms" toml:"reconnect_interval_ms"`
	FallbackIntervalMs  int `yaml:"fallback_interval_ms" toml:"fallback_interval_ms"`
	StatusIntervalMs    int `yaml:"status_interval_ms" toml:"status_interval_ms"`
}

// ---- STATUS EXPORT (optional, opt-in) ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"` // empty disables export
	UnitID    uint8  `yaml:"unit_id" toml:"unit_id"`
	Slot      uint16 `yaml:"slot" toml:"slot"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// ---- MQTT EVENT MIRROR (optional, opt-in) ----

type MQTTConfig struct {
	Broker      string `yaml:"broker" toml:"broker"` // empty disables the emitter
	ClientID    string `yaml:"client_id" toml:"client_id"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	QoS         byte   `yaml:"qos" toml:"qos"`
	Encoding    string `yaml:"encoding" toml:"encoding"` // json, msgpack
	Telemetry   bool   `yaml:"telemetry" toml:"telemetry"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
}

// ---- STATION (operator side) ----

type StationConfig struct {
	Mode           string `yaml:"mode" toml:"mode"`       // stream, datagram
	Listen         string `yaml:"listen" toml:"listen"`   // stream: local listen address
	Vehicle        string `yaml:"vehicle" toml:"vehicle"` // datagram: vehicle address
	PingIntervalMs int    `yaml:"ping_interval_ms" toml:"ping_interval_ms"`
}
