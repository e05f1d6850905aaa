// internal/config/normalize_test.go
package config

import "testing"

func TestNormalize_Defaults(t *testing.T) {
	cfg := valid()
	Normalize(cfg)

	if cfg.Session.ID == "" {
		t.Fatalf("session id should be generated")
	}
	if cfg.Serial.BaudRate != 115200 || cfg.Serial.DataBits != 8 || cfg.Serial.StopBits != 1 || cfg.Serial.Parity != "N" {
		t.Fatalf("serial defaults: %+v", cfg.Serial)
	}
	if cfg.Network.DialTimeoutMs != 10000 || cfg.Network.PingTimeoutMs != 5000 {
		t.Fatalf("network defaults: %+v", cfg.Network)
	}
	if cfg.Timing.FallbackIntervalMs != 5 {
		t.Fatalf("fallback default: %d", cfg.Timing.FallbackIntervalMs)
	}
	if cfg.Camera.Quality != 80 || cfg.Camera.Source != "synthetic" {
		t.Fatalf("camera defaults: %+v", cfg.Camera)
	}
	if cfg.MQTT.ClientID != "carlink-"+cfg.Session.ID {
		t.Fatalf("mqtt client id: %q", cfg.MQTT.ClientID)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("normalized config must stay valid: %v", err)
	}
}

func TestNormalize_NameTruncatedAndDerived(t *testing.T) {
	cfg := valid()
	cfg.Session.Name = "a-very-long-vehicle-name"
	Normalize(cfg)
	if len(cfg.Session.Name) != 16 {
		t.Fatalf("name should be truncated to 16, got %q", cfg.Session.Name)
	}

	cfg = valid()
	cfg.Session.ID = "0123456789abcdef"
	Normalize(cfg)
	if cfg.Session.Name != "car-01234567" {
		t.Fatalf("derived name: %q", cfg.Session.Name)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := valid()
	cfg.Serial.BaudRate = 9600
	cfg.Camera.Quality = 30
	Normalize(cfg)
	if cfg.Serial.BaudRate != 9600 || cfg.Camera.Quality != 30 {
		t.Fatalf("explicit values overwritten: %+v %+v", cfg.Serial, cfg.Camera)
	}
}

func TestNormalize_Nil(t *testing.T) {
	Normalize(nil)
}
