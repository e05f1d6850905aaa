// internal/writer/builder.go
package writer

import (
	"time"

	cfg "github.com/tamzrod/carlink/internal/config"
	wmodbus "github.com/tamzrod/carlink/internal/writer/modbus"
)

// BuildStatusPlan converts the status section into a plan.
// Returns nil when export is disabled (no endpoint).
func BuildStatusPlan(s cfg.StatusConfig, deviceName string) *StatusPlan {
	if s.Endpoint == "" {
		return nil
	}
	return &StatusPlan{
		Endpoint:   s.Endpoint,
		UnitID:     s.UnitID,
		BaseSlot:   s.Slot,
		DeviceName: deviceName,
	}
}

// BuildStatusWriter creates the status writer and its endpoint client.
// When export is disabled it returns (nil, no-op closer, nil).
func BuildStatusWriter(s cfg.StatusConfig, deviceName string) (StatusWriter, func() error, error) {
	noop := func() error { return nil }

	plan := BuildStatusPlan(s, deviceName)
	if plan == nil {
		return nil, noop, nil
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  time.Duration(s.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, noop, err
	}

	w, _ := NewDeviceStatusWriter(plan, c)
	return w, c.Close, nil
}
