// internal/emitter/emitter.go
package emitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/config"
	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/telemetry"
)

// Publisher is the subset of mqtt.Client the emitter needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Event is one session event as published on the broker.
type Event struct {
	Session   string    `json:"session" msgpack:"session"`
	Kind      string    `json:"kind" msgpack:"kind"`
	At        time.Time `json:"at" msgpack:"at"`
	Component string    `json:"component,omitempty" msgpack:"component,omitempty"`
	From      string    `json:"from,omitempty" msgpack:"from,omitempty"`
	To        string    `json:"to,omitempty" msgpack:"to,omitempty"`
	Remote    string    `json:"remote,omitempty" msgpack:"remote,omitempty"`
	Error     string    `json:"error,omitempty" msgpack:"error,omitempty"`
	Bytes     int       `json:"bytes,omitempty" msgpack:"bytes,omitempty"`

	Telemetry *Telemetry `json:"telemetry,omitempty" msgpack:"telemetry,omitempty"`
}

type Telemetry struct {
	SpeedCommand    int     `json:"speed_cmd" msgpack:"speed_cmd"`
	SteeringCommand int     `json:"steering_cmd" msgpack:"steering_cmd"`
	Distance        float32 `json:"distance" msgpack:"distance"`
	Online          bool    `json:"online" msgpack:"online"`
}

// Event kinds, also the last topic level.
const (
	KindState       = "state"
	KindEstablished = "established"
	KindError       = "error"
	KindTelemetry   = "telemetry"
	KindSent        = "sent"
)

type Options struct {
	Session   string
	Prefix    string
	QoS       byte
	Encoding  string // json, msgpack
	Telemetry bool   // publish per-sample telemetry events
}

// Emitter mirrors session events to MQTT.
// Publishing never waits for the broker.
type Emitter struct {
	pub  Publisher
	opts Options
	log  *zap.Logger

	marshal func(v interface{}) ([]byte, error)

	published atomic.Uint64
	failed    atomic.Uint64

	disconnect func()
}

func New(pub Publisher, opts Options, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Emitter{
		pub:     pub,
		opts:    opts,
		log:     log,
		marshal: json.Marshal,
	}
	if opts.Encoding == "msgpack" {
		e.marshal = msgpack.Marshal
	}
	return e
}

// Connect dials the broker from config and returns a ready emitter.
// Paho keeps reconnecting in the background after the first connect.
func Connect(cfg config.MQTTConfig, session string, log *zap.Logger) (*Emitter, error) {
	if cfg.Broker == "" {
		return nil, errors.New("emitter: broker required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect", zap.String("broker", cfg.Broker), zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, errors.New("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("emitter: mqtt connect: %w", err)
	}

	e := New(client, Options{
		Session:   session,
		Prefix:    cfg.TopicPrefix,
		QoS:       cfg.QoS,
		Encoding:  cfg.Encoding,
		Telemetry: cfg.Telemetry,
	}, log)
	e.disconnect = func() { client.Disconnect(250) }
	return e, nil
}

// Close disconnects from the broker with a short grace period.
func (e *Emitter) Close() {
	if e.disconnect != nil {
		e.disconnect()
	}
}

// Stats returns published and failed counts.
func (e *Emitter) Stats() (published, failed uint64) {
	return e.published.Load(), e.failed.Load()
}

// ---- event helpers ----

func (e *Emitter) StateChanged(component string, from, to link.State) {
	e.Emit(Event{Kind: KindState, Component: component, From: from.String(), To: to.String()})
}

func (e *Emitter) Established(component, remote string) {
	e.Emit(Event{Kind: KindEstablished, Component: component, Remote: remote})
}

func (e *Emitter) Error(component string, err error) {
	e.Emit(Event{Kind: KindError, Component: component, Error: err.Error()})
}

func (e *Emitter) Telemetry(s telemetry.Sample) {
	if !e.opts.Telemetry {
		return
	}
	e.Emit(Event{Kind: KindTelemetry, Component: "serial", Telemetry: &Telemetry{
		SpeedCommand:    s.SpeedCommand,
		SteeringCommand: s.SteeringCommand,
		Distance:        s.Distance,
		Online:          s.Online,
	}})
}

func (e *Emitter) FrameSent(n int) {
	if !e.opts.Telemetry {
		return
	}
	e.Emit(Event{Kind: KindSent, Component: "net", Bytes: n})
}

// Emit publishes ev on <prefix>/<session>/<kind>.
func (e *Emitter) Emit(ev Event) {
	ev.Session = e.opts.Session
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := e.marshal(ev)
	if err != nil {
		e.failed.Add(1)
		e.log.Warn("event encode failed", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}

	token := e.pub.Publish(e.Topic(ev.Kind), e.opts.QoS, false, payload)

	// only inspect tokens that already completed; never block the caller
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			e.failed.Add(1)
			e.log.Debug("event publish failed", zap.String("kind", ev.Kind), zap.Error(err))
			return
		}
	default:
	}
	e.published.Add(1)
}

func (e *Emitter) Topic(kind string) string {
	return fmt.Sprintf("%s/%s/%s", e.opts.Prefix, e.opts.Session, kind)
}
