// internal/writer/modbus/client_test.go
package modbus

import "testing"

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

func TestNewEndpointClient_IsLazy(t *testing.T) {
	// nothing listens here; construction must not dial
	c, err := NewEndpointClient(Config{Endpoint: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = c.Close()
}

func TestPackRegisters_BigEndian(t *testing.T) {
	got := packRegisters([]uint16{0x1234, 0x00FF})
	want := []byte{0x12, 0x34, 0x00, 0xFF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got=%#x want=%#x", i, got[i], want[i])
		}
	}
}
