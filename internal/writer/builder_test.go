// internal/writer/builder_test.go
package writer

import (
	"testing"

	cfg "github.com/tamzrod/carlink/internal/config"
)

func TestBuildStatusWriter_DisabledWithoutEndpoint(t *testing.T) {
	w, closeFn, err := BuildStatusWriter(cfg.StatusConfig{}, "car")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Fatalf("expected no writer")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("noop close: %v", err)
	}
}

func TestBuildStatusPlan(t *testing.T) {
	p := BuildStatusPlan(cfg.StatusConfig{Endpoint: "10.0.0.5:502", UnitID: 3, Slot: 2}, "car-01")
	if p == nil {
		t.Fatalf("expected plan")
	}
	if p.Endpoint != "10.0.0.5:502" || p.UnitID != 3 || p.BaseSlot != 2 || p.DeviceName != "car-01" {
		t.Fatalf("plan: %+v", p)
	}
}

func TestBuildStatusWriter_Enabled(t *testing.T) {
	// the endpoint client dials lazily, so nothing needs to listen here
	w, closeFn, err := BuildStatusWriter(cfg.StatusConfig{Endpoint: "127.0.0.1:1", UnitID: 1, TimeoutMs: 100}, "car")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	dw, ok := w.(*DeviceStatusWriter)
	if !ok || dw.baseAddr() != 0 {
		t.Fatalf("writer: %#v", w)
	}
}
