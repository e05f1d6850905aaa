// internal/netclient/client.go
package netclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/telemetry"
	"github.com/tamzrod/carlink/internal/wire"
)

var ErrFrameTooLarge = errors.New("netclient: frame exceeds datagram limit")

// Mode selects the transport.
type Mode int

const (
	Stream Mode = iota
	Datagram
)

func (m Mode) String() string {
	if m == Datagram {
		return "datagram"
	}
	return "stream"
}

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultPingTimeout  = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond

	// Largest UDP payload over IPv4.
	maxDatagram = 65507

	initialSuccessRate = 0.1
	rateDecay          = 0.995
)

// Listener receives client events, in order, from the client's workers.
// Implementations must not block and must not call Connect or Disconnect
// synchronously. OnStateChange, OnEstablished and OnError run while the
// client holds its lifecycle lock.
type Listener interface {
	OnStateChange(from, to link.State)
	OnEstablished(remote string)
	OnReceived(fields []string)
	OnSent(frame []byte)
	OnError(err error)
}

// FrameSource supplies the encoded image for the next outbound frame.
type FrameSource interface {
	TakeLatestEncoded() ([]byte, bool)
}

type Config struct {
	Mode Mode

	// Address is the remote peer (stream, datagram dial).
	// Empty in datagram mode means bind and learn the peer.
	Address string
	// Bind is the local datagram address, e.g. ":5000".
	Bind string

	DialTimeout  time.Duration
	PingTimeout  time.Duration
	PollInterval time.Duration
}

// Client is the reconnecting network link to the station.
//
// At most one frame is outstanding: Send fills a single-slot mailbox
// that a dedicated writer drains. Reconnection is the caller's job.
type Client struct {
	cfg      Config
	src      FrameSource
	listener Listener
	dialer   Dialer
	log      *zap.Logger

	state *link.Machine

	// opMu pairs every generation change with its state transition, so a
	// superseded attempt can never publish a state after Disconnect.
	opMu sync.Mutex

	mu         sync.Mutex // guards cur, gen, dialCancel
	cur        *conn
	gen        uint64
	dialCancel context.CancelFunc

	lastPing atomic.Int64 // unix nanos

	rateMu sync.Mutex
	rate   float64

	wg sync.WaitGroup
}

type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func New(cfg Config, src FrameSource, listener Listener, opts ...Option) (*Client, error) {
	if src == nil {
		return nil, errors.New("netclient: frame source required")
	}
	if listener == nil {
		return nil, errors.New("netclient: listener required")
	}
	if cfg.Mode == Stream && cfg.Address == "" {
		return nil, errors.New("netclient: stream mode requires an address")
	}
	if cfg.Mode == Datagram && cfg.Address == "" && cfg.Bind == "" {
		return nil, errors.New("netclient: datagram mode requires an address or a bind address")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	c := &Client{
		cfg:      cfg,
		src:      src,
		listener: listener,
		dialer:   &net.Dialer{},
		log:      zap.NewNop(),
		rate:     initialSuccessRate,
	}
	for _, o := range opts {
		o(c)
	}
	c.state = link.NewMachine(listener.OnStateChange)
	return c, nil
}

// State returns a snapshot of the connection state.
func (c *Client) State() link.State { return c.state.State() }

func (c *Client) Mode() Mode { return c.cfg.Mode }

// SuccessRate is the moving average of Send outcomes.
func (c *Client) SuccessRate() float64 {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	return c.rate
}

// RefreshLiveness records a ping from the station.
func (c *Client) RefreshLiveness() {
	c.lastPing.Store(time.Now().UnixNano())
}

// Connect starts an asynchronous connection attempt.
// No-op while CONNECTED. While CONNECTING the pending attempt is replaced
// without a second state event.
func (c *Client) Connect() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.state.State() == link.Connected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)

	c.mu.Lock()
	old, oldCancel := c.cur, c.dialCancel
	c.cur = nil
	c.gen++
	gen := c.gen
	c.dialCancel = cancel
	c.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if old != nil {
		old.close()
	}

	c.state.Set(link.Connecting)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.establish(ctx, gen)
	}()
}

// Disconnect moves to NONE at once, then writes the end marker (best
// effort) and closes the connection. An attempt still in flight is
// discarded when it completes.
// Disconnect does not wait for the workers; Close does.
func (c *Client) Disconnect() {
	c.opMu.Lock()
	c.mu.Lock()
	cur, cancel := c.cur, c.dialCancel
	c.cur = nil
	c.dialCancel = nil
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.state.Set(link.None)
	c.opMu.Unlock()

	if cur != nil {
		cur.goodbye()
		cur.close()
	}
}

// Close disconnects and waits for every worker to exit.
func (c *Client) Close() {
	c.Disconnect()
	c.wg.Wait()
}

// Send builds a frame from the sample, the sensor snapshot and the next
// queued image, and places it in the mailbox. It never blocks.
//
// Returns false without touching the success estimate when not CONNECTED.
// Otherwise every call feeds the estimate, sent or not.
func (c *Client) Send(s telemetry.Sample, sensors []float32) bool {
	if c.state.State() != link.Connected {
		return false
	}

	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()
	if cur == nil {
		return false
	}

	sent := c.offer(cur, s, sensors)
	c.observe(sent)
	return sent
}

func (c *Client) offer(cur *conn, s telemetry.Sample, sensors []float32) bool {
	// busy: do not consume an image we could not send
	if len(cur.slot) > 0 {
		return false
	}

	img, ok := c.src.TakeLatestEncoded()
	if !ok {
		return false
	}

	frame := wire.EncodeFrame(wire.Header{
		Online:          s.Online,
		SpeedCommand:    s.SpeedCommand,
		SteeringCommand: s.SteeringCommand,
		Distance:        s.Distance,
		Sensors:         sensors,
	}, img)

	select {
	case cur.slot <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) observe(sent bool) {
	x := 0.0
	if sent {
		x = 1.0
	}
	c.rateMu.Lock()
	c.rate = c.rate*rateDecay + (1-rateDecay)*x
	c.rateMu.Unlock()
}

// ---- connection lifecycle ----

func (c *Client) establish(ctx context.Context, gen uint64) {
	var (
		cur *conn
		err error
	)
	switch c.cfg.Mode {
	case Datagram:
		cur, err = c.openDatagram()
	default:
		cur, err = c.dialStream(ctx)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err != nil {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.dialCancel = nil
		c.mu.Unlock()
		c.log.Warn("connect failed", zap.Stringer("mode", c.cfg.Mode), zap.Error(err))
		c.listener.OnError(err)
		c.state.SetIf(link.Connecting, link.None)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cur.close()
		return
	}
	cur.gen = gen
	c.cur = cur
	c.dialCancel = nil
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(cur)
	go c.writeLoop(cur)

	// datagram bind mode stays CONNECTING until the first packet
	if remote := cur.remote(); remote != nil {
		c.RefreshLiveness()
		if c.state.SetIf(link.Connecting, link.Connected) {
			c.log.Info("connected", zap.Stringer("mode", c.cfg.Mode), zap.String("remote", remote.String()))
			c.listener.OnEstablished(remote.String())
		}
	} else {
		c.log.Info("listening", zap.String("local", cur.pc.LocalAddr().String()))
	}
}

func (c *Client) dialStream(ctx context.Context) (*conn, error) {
	nc, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("netclient: dial %s: %w", c.cfg.Address, err)
	}
	return newStreamConn(nc), nil
}

func (c *Client) openDatagram() (*conn, error) {
	var peer net.Addr
	if c.cfg.Address != "" {
		ua, err := net.ResolveUDPAddr("udp", c.cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("netclient: resolve %s: %w", c.cfg.Address, err)
		}
		peer = ua
	}

	pc, err := net.ListenPacket("udp", c.cfg.Bind)
	if err != nil {
		return nil, fmt.Errorf("netclient: bind %q: %w", c.cfg.Bind, err)
	}
	return newDatagramConn(pc, peer), nil
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// transition moves from -> to only while gen is still the live connection.
func (c *Client) transition(gen uint64, from, to link.State) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.current(gen) {
		return false
	}
	return c.state.SetIf(from, to)
}

// lost tears down the connection identified by gen and moves to NONE.
// Stale generations are ignored.
func (c *Client) lost(gen uint64, err error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.gen != gen || c.cur == nil {
		c.mu.Unlock()
		return
	}
	cur := c.cur
	c.cur = nil
	c.gen++
	c.mu.Unlock()

	cur.close()

	c.log.Warn("connection lost", zap.Stringer("mode", c.cfg.Mode), zap.Error(err))
	c.listener.OnError(err)
	c.state.Set(link.None)
}
