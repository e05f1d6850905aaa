// internal/emitter/emitter_test.go
package emitter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/carlink/internal/config"
	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/telemetry"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pending() *fakeToken { return &fakeToken{done: make(chan struct{})} }

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	msgs  []published
	token func() mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	if p.token != nil {
		return p.token()
	}
	return completed(nil)
}

func TestEmit_JSONTopicAndPayload(t *testing.T) {
	pub := &fakePublisher{}
	e := New(pub, Options{Session: "s1", Prefix: "carlink", QoS: 1}, zaptest.NewLogger(t))

	e.StateChanged("net", link.Connecting, link.Connected)

	if len(pub.msgs) != 1 {
		t.Fatalf("published: %d", len(pub.msgs))
	}
	m := pub.msgs[0]
	if m.topic != "carlink/s1/state" || m.qos != 1 {
		t.Fatalf("topic=%q qos=%d", m.topic, m.qos)
	}

	var ev Event
	if err := json.Unmarshal(m.payload, &ev); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ev.Session != "s1" || ev.Component != "net" || ev.From != "CONNECTING" || ev.To != "CONNECTED" {
		t.Fatalf("event: %+v", ev)
	}
	if ev.At.IsZero() {
		t.Fatalf("timestamp missing")
	}
}

func TestEmit_Msgpack(t *testing.T) {
	pub := &fakePublisher{}
	e := New(pub, Options{Session: "s1", Prefix: "p", Encoding: "msgpack", Telemetry: true}, nil)

	e.Telemetry(telemetry.Sample{SpeedCommand: 1500, SteeringCommand: 1400, Distance: 2.5, Online: true})

	var ev Event
	if err := msgpack.Unmarshal(pub.msgs[0].payload, &ev); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if ev.Kind != KindTelemetry || ev.Telemetry == nil || ev.Telemetry.SpeedCommand != 1500 {
		t.Fatalf("event: %+v", ev)
	}
}

func TestEmit_TelemetryOptIn(t *testing.T) {
	pub := &fakePublisher{}
	e := New(pub, Options{Session: "s1", Prefix: "p"}, nil)

	e.Telemetry(telemetry.Default())
	e.FrameSent(100)
	if len(pub.msgs) != 0 {
		t.Fatalf("telemetry events must be opt-in, got %d", len(pub.msgs))
	}

	e.Error("serial", errors.New("unplugged"))
	e.Established("serial", "/dev/ttyACM0")
	if len(pub.msgs) != 2 {
		t.Fatalf("lifecycle events always publish, got %d", len(pub.msgs))
	}
}

func TestEmit_NeverBlocksAndCountsFailures(t *testing.T) {
	pub := &fakePublisher{token: func() mqtt.Token { return pending() }}
	e := New(pub, Options{Session: "s", Prefix: "p"}, nil)

	done := make(chan struct{})
	go func() {
		e.Established("net", "x")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Emit blocked on a pending token")
	}

	pub.token = func() mqtt.Token { return completed(errors.New("not connected")) }
	e.Established("net", "x")

	ok, failed := e.Stats()
	if ok != 1 || failed != 1 {
		t.Fatalf("stats: published=%d failed=%d", ok, failed)
	}
}

func TestConnect_RequiresBroker(t *testing.T) {
	if _, err := Connect(config.MQTTConfig{}, "s", nil); err == nil {
		t.Fatalf("expected error")
	}
}
