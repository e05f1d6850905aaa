// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/command"
	"github.com/tamzrod/carlink/internal/config"
	"github.com/tamzrod/carlink/internal/framequeue"
	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/netclient"
	"github.com/tamzrod/carlink/internal/serial"
	"github.com/tamzrod/carlink/internal/telemetry"
	"github.com/tamzrod/carlink/internal/writer"
)

// Events mirrors session activity to an outside observer.
// *emitter.Emitter implements it.
type Events interface {
	StateChanged(component string, from, to link.State)
	Established(component, remote string)
	Error(component string, err error)
	Telemetry(s telemetry.Sample)
	FrameSent(n int)
}

type nopEvents struct{}

func (nopEvents) StateChanged(string, link.State, link.State) {}
func (nopEvents) Established(string, string)                  {}
func (nopEvents) Error(string, error)                         {}
func (nopEvents) Telemetry(telemetry.Sample)                  {}
func (nopEvents) FrameSent(int)                               {}

// Session owns one run's serial link, network client, frame queue and
// sensor snapshot, and drives them from its tickers.
type Session struct {
	name string
	log  *zap.Logger

	device      string
	initialMode serial.Mode
	timing      timing

	serial  *serial.Link
	net     *netclient.Client
	queue   *framequeue.Queue
	sensors *telemetry.Sensors

	dispatcher *command.Dispatcher
	events     Events
	exporter   writer.StatusWriter

	illumination atomic.Bool
	mode         atomic.Value // serial.Mode
	lastSample   atomic.Pointer[telemetry.Sample]

	errMu      sync.Mutex
	lastErr    uint16
	errorSince time.Time

	wg sync.WaitGroup
}

type timing struct {
	reconnect time.Duration
	fallback  time.Duration
	status    time.Duration
}

type options struct {
	log     *zap.Logger
	opener  serial.Opener
	dialer  netclient.Dialer
	encoder framequeue.Encoder
	recycle func([]byte)
	events  Events
	status  writer.StatusWriter
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSerialOpener replaces the device opener (tests).
func WithSerialOpener(op serial.Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithDialer replaces the stream dialer built from network.proxy.
func WithDialer(d netclient.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithEncoder(enc framequeue.Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

// WithRecycle hands consumed frame buffers back to the camera pool.
func WithRecycle(fn func([]byte)) Option {
	return func(o *options) { o.recycle = fn }
}

func WithEvents(ev Events) Option {
	return func(o *options) { o.events = ev }
}

func WithStatusWriter(w writer.StatusWriter) Option {
	return func(o *options) { o.status = w }
}

// New builds a session from a validated, normalized config.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.events == nil {
		o.events = nopEvents{}
	}
	log := o.log.With(zap.String("session", cfg.Session.Name))

	s := &Session{
		name:        cfg.Session.Name,
		log:         log,
		device:      cfg.Serial.Device,
		initialMode: serial.Mode(cfg.Serial.InitialMode),
		timing: timing{
			reconnect: ms(cfg.Timing.ReconnectIntervalMs),
			fallback:  ms(cfg.Timing.FallbackIntervalMs),
			status:    ms(cfg.Timing.StatusIntervalMs),
		},
		sensors:  &telemetry.Sensors{},
		events:   o.events,
		exporter: o.status,
	}
	s.mode.Store(serial.Mode(""))

	// ---- frame queue ----
	qopts := []framequeue.Option{framequeue.WithLogger(log.Named("queue"))}
	if o.recycle != nil {
		qopts = append(qopts, framequeue.WithRecycle(o.recycle))
	}
	s.queue = framequeue.New(o.encoder, qopts...)
	s.queue.SetQuality(cfg.Camera.Quality)

	// ---- serial link ----
	sopts := []serial.Option{serial.WithLogger(log.Named("serial"))}
	if o.opener != nil {
		sopts = append(sopts, serial.WithOpener(o.opener))
	}
	s.serial = serial.New(serial.Config{
		BaudRate:    cfg.Serial.BaudRate,
		DataBits:    cfg.Serial.DataBits,
		StopBits:    cfg.Serial.StopBits,
		Parity:      cfg.Serial.Parity,
		ReadTimeout: ms(cfg.Serial.TimeoutMs),
	}, serialListener{s}, sopts...)

	// ---- network client ----
	dialer := o.dialer
	if dialer == nil {
		d, err := netclient.NewDialer(cfg.Network.Proxy)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		dialer = d
	}
	mode := netclient.Stream
	if cfg.Network.Mode == "datagram" {
		mode = netclient.Datagram
	}
	nc, err := netclient.New(netclient.Config{
		Mode:         mode,
		Address:      cfg.Network.Address,
		Bind:         cfg.Network.Bind,
		DialTimeout:  ms(cfg.Network.DialTimeoutMs),
		PingTimeout:  ms(cfg.Network.PingTimeoutMs),
		PollInterval: ms(cfg.Network.PollIntervalMs),
	}, s.queue, netListener{s}, netclient.WithDialer(dialer), netclient.WithLogger(log.Named("net")))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.net = nc

	s.dispatcher = command.NewDispatcher(s, log.Named("command"))
	return s, nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Sensors is the snapshot sensor collaborators write into.
func (s *Session) Sensors() *telemetry.Sensors { return s.sensors }

// Offer hands a raw camera frame to the queue. Session is a camera sink.
func (s *Session) Offer(f framequeue.Frame) bool { return s.queue.Offer(f) }

func (s *Session) Name() string               { return s.name }
func (s *Session) SerialLink() *serial.Link   { return s.serial }
func (s *Session) Network() *netclient.Client { return s.net }
func (s *Session) Queue() *framequeue.Queue   { return s.queue }
func (s *Session) Illumination() bool         { return s.illumination.Load() }
func (s *Session) Mode() serial.Mode          { return s.mode.Load().(serial.Mode) }

// Run connects both components and drives the session until ctx is done.
// On return both links are closed and all workers have exited.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session started",
		zap.String("device", s.device),
		zap.Stringer("net_mode", s.net.Mode()),
	)

	s.reconnect()

	s.wg.Add(2)
	go s.every(ctx, s.timing.reconnect, s.reconnect)
	go s.every(ctx, s.timing.fallback, s.fallback)
	if s.exporter != nil {
		s.wg.Add(1)
		go s.statusLoop(ctx)
	}

	<-ctx.Done()
	s.wg.Wait()

	s.net.Close()
	s.serial.Close()
	s.queue.Clear()

	s.log.Info("session stopped")
	return nil
}

// every runs fn on a ticker. One goroutine per concern. No overlap.
func (s *Session) every(ctx context.Context, d time.Duration, fn func()) {
	defer s.wg.Done()

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// reconnect re-issues connect for components that are NONE.
// CONNECTING attempts are left to finish.
func (s *Session) reconnect() {
	if s.device != "" && s.serial.State() == link.None {
		s.serial.Connect(s.device)
	}
	if s.net.State() == link.None {
		s.net.Connect()
	}
}

// fallback keeps frames flowing with default telemetry while the serial
// link is down.
func (s *Session) fallback() {
	if s.serial.State() == link.Connected {
		return
	}
	s.sendFrame(telemetry.Default())
}

func (s *Session) sendFrame(sample telemetry.Sample) bool {
	if s.net.State() != link.Connected || s.queue.Count() == 0 {
		return false
	}
	return s.net.Send(sample, s.sensors.Snapshot())
}

// ---- command.Target ----

func (s *Session) SetQuality(q int) {
	s.queue.SetQuality(q)
	s.log.Info("image quality changed", zap.Int("quality", q))
}

func (s *Session) ToggleIllumination() {
	on := !s.illumination.Load()
	s.illumination.Store(on)
	s.log.Info("illumination toggled", zap.Bool("on", on))
}

func (s *Session) SerialState() link.State { return s.serial.State() }

func (s *Session) ForwardSerial(line string) bool { return s.serial.SendLine(line, 0) }

func (s *Session) RefreshLiveness() { s.net.RefreshLiveness() }
