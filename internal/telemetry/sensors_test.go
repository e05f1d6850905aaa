// internal/telemetry/sensors_test.go
package telemetry

import (
	"sync"
	"testing"
)

func TestSensors_SetRangeAndSnapshot(t *testing.T) {
	var s Sensors

	s.SetRange(SlotGyroscope, 0.1, 0.2, 0.3)
	s.SetLocation(41.01, 28.97)

	snap := s.Snapshot()
	if len(snap) != SensorCount {
		t.Fatalf("snapshot len: got=%d want=%d", len(snap), SensorCount)
	}
	if snap[SlotGyroscope+1] != 0.2 {
		t.Fatalf("gyro y: got=%v want=0.2", snap[SlotGyroscope+1])
	}
	if snap[SlotLatitude] != 41.01 || snap[SlotLongitude] != 28.97 {
		t.Fatalf("location: got=%v,%v", snap[SlotLatitude], snap[SlotLongitude])
	}
	if snap[SlotAccelerometer] != 0 {
		t.Fatalf("untouched slot should be zero, got %v", snap[SlotAccelerometer])
	}
}

func TestSensors_OutOfRangeIgnored(t *testing.T) {
	var s Sensors
	s.Set(-1, 5)
	s.Set(SensorCount, 5)
	s.SetRange(SlotLongitude, 1, 2, 3) // only the first fits

	if s.Get(SlotLongitude) != 1 {
		t.Fatalf("longitude: got=%v want=1", s.Get(SlotLongitude))
	}
	if s.Get(SensorCount) != 0 {
		t.Fatalf("out of range Get should return 0")
	}
}

func TestSensors_ClearLocation(t *testing.T) {
	var s Sensors
	s.SetLocation(1, 2)
	s.ClearLocation()
	if s.Get(SlotLatitude) != -1 || s.Get(SlotLongitude) != -1 {
		t.Fatalf("cleared location should be -1,-1")
	}
}

func TestSensors_ConcurrentWritersAndReader(t *testing.T) {
	var s Sensors
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base float32) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.SetRange(SlotAccelerometer, base, base, base)
			}
		}(float32(w))
	}
	for i := 0; i < 1000; i++ {
		_ = s.Snapshot()
	}
	wg.Wait()
}

func TestDefaultSample(t *testing.T) {
	d := Default()
	if d.Online {
		t.Fatalf("default telemetry must be offline")
	}
	if d.SpeedCommand != DefaultSpeedCommand || d.SteeringCommand != DefaultSteeringCommand {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.String() != "[1400;1568;0.0]" {
		t.Fatalf("String: got=%q", d.String())
	}
}
