// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a minimal valid vehicle config quickly
func valid() *Config {
	return &Config{
		Network: NetworkConfig{Mode: "stream", Address: "station:9000"},
	}
}

// ---- tests ----

func TestValidate_MinimalStream(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DatagramBindOnly(t *testing.T) {
	cfg := valid()
	cfg.Network = NetworkConfig{Mode: "datagram", Bind: ":5000"}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"stream without address", func(c *Config) { c.Network.Address = "" }, "requires address"},
		{"stream with bind", func(c *Config) { c.Network.Bind = ":1" }, "only valid in datagram"},
		{"datagram with proxy", func(c *Config) {
			c.Network = NetworkConfig{Mode: "datagram", Bind: ":1", Proxy: "socks5://p:1"}
		}, "only valid in stream"},
		{"unknown mode", func(c *Config) { c.Network.Mode = "carrier-pigeon" }, "must be stream or datagram"},
		{"parity", func(c *Config) { c.Serial.Parity = "X" }, "parity"},
		{"data bits", func(c *Config) { c.Serial.DataBits = 9 }, "data_bits"},
		{"initial mode", func(c *Config) { c.Serial.InitialMode = "Z" }, "initial_mode"},
		{"dir without path", func(c *Config) { c.Camera.Source = "dir" }, "requires dir"},
		{"odd geometry", func(c *Config) { c.Camera.Width = 321; c.Camera.Height = 240 }, "even"},
		{"quality", func(c *Config) { c.Camera.Quality = 101 }, "quality"},
		{"status unit", func(c *Config) { c.Status.Endpoint = "plc:502" }, "unit_id"},
		{"mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }, "qos"},
		{"mqtt encoding", func(c *Config) { c.MQTT.Encoding = "xml" }, "encoding"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "level"},
		{"non-ascii name", func(c *Config) { c.Session.Name = "araç" }, "ASCII"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := valid()
	before := *cfg
	_ = Validate(cfg)
	if *cfg != before {
		t.Fatalf("Validate mutated the config")
	}
}

func TestValidateStation(t *testing.T) {
	cfg := &Config{Station: StationConfig{Mode: "stream", Listen: ":9000"}}
	if err := ValidateStation(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Station = StationConfig{Mode: "datagram"}
	if err := ValidateStation(cfg); err == nil {
		t.Fatalf("datagram station without vehicle must fail")
	}
}
