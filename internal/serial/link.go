// internal/serial/link.go
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	goserial "github.com/goburrow/serial"
	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/telemetry"
	"github.com/tamzrod/carlink/internal/wire"
)

var ErrNotConnected = errors.New("serial: not connected")

// Mode is the microcontroller communication mode.
type Mode string

const (
	ModeMonitor Mode = "M"
	ModeControl Mode = "C"
)

// Listener receives link events. Calls come from the reader goroutine or
// from the goroutine that called into the Link; they must not block and
// must not call Connect or Disconnect synchronously. OnStateChange and
// OnError run under the link's lifecycle lock and must not write to the
// link either.
type Listener interface {
	OnStateChange(from, to link.State)
	OnEstablished(device string)
	OnTelemetry(s telemetry.Sample)
	OnSent(line string)
	OnModeChange(m Mode)
	OnError(err error)
}

// Config is the line configuration. The device is chosen per Connect.
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		ReadTimeout: 500 * time.Millisecond,
	}
}

// Opener opens and configures a device. Tests inject fakes here.
type Opener func(cfg goserial.Config) (io.ReadWriteCloser, error)

func openPort(cfg goserial.Config) (io.ReadWriteCloser, error) {
	return goserial.Open(&cfg)
}

// Link is the serial connection to the microcontroller.
//
// Connect is synchronous. There is no externally visible CONNECTING state:
// the link is NONE until the port is open, then CONNECTED until Disconnect
// or an I/O error.
type Link struct {
	cfg      Config
	open     Opener
	listener Listener
	log      *zap.Logger

	state *link.Machine

	// opMu serializes open, publish and the state transition of Connect
	// with Disconnect and loss handling.
	opMu sync.Mutex

	mu     sync.Mutex // guards port, device, gen
	port   io.ReadWriteCloser
	device string
	gen    uint64

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

type Option func(*Link)

func WithOpener(o Opener) Option {
	return func(l *Link) { l.open = o }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Link) {
		if log != nil {
			l.log = log
		}
	}
}

func New(cfg Config, listener Listener, opts ...Option) *Link {
	l := &Link{
		cfg:      cfg,
		open:     openPort,
		listener: listener,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	l.state = link.NewMachine(listener.OnStateChange)
	return l
}

// State returns a snapshot of the connection state.
func (l *Link) State() link.State { return l.state.State() }

// Device returns the device of the current connection, or "".
func (l *Link) Device() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.device
}

// Connect opens device and starts the reader.
// On failure it returns false and leaves the state untouched; no event fires.
func (l *Link) Connect(device string) bool {
	l.opMu.Lock()
	if l.state.State() == link.Connected {
		l.opMu.Unlock()
		return true
	}

	port, err := l.open(goserial.Config{
		Address:  device,
		BaudRate: l.cfg.BaudRate,
		DataBits: l.cfg.DataBits,
		StopBits: l.cfg.StopBits,
		Parity:   l.cfg.Parity,
		Timeout:  l.cfg.ReadTimeout,
	})
	if err != nil {
		l.opMu.Unlock()
		l.log.Warn("serial open failed", zap.String("device", device), zap.Error(err))
		return false
	}

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.port = port
	l.device = device
	l.mu.Unlock()

	l.state.Set(link.Connected)
	l.wg.Add(1)
	go l.readLoop(port, gen)
	l.opMu.Unlock()

	l.log.Info("serial connected", zap.String("device", device), zap.Int("baud", l.cfg.BaudRate))

	// OnEstablished may write (mode request), so it runs unlocked; skip it
	// when the connection was already torn down.
	if !l.current(gen) {
		return false
	}
	l.listener.OnEstablished(device)
	return true
}

// Disconnect closes the port and moves to NONE.
// It does not wait for the reader; use Close for that.
func (l *Link) Disconnect() {
	l.opMu.Lock()
	l.mu.Lock()
	port := l.port
	l.port = nil
	l.device = ""
	l.gen++
	l.mu.Unlock()

	l.state.Set(link.None)
	l.opMu.Unlock()

	if port != nil {
		_ = port.Close()
	}
}

// Close disconnects and waits for the reader to exit.
func (l *Link) Close() {
	l.Disconnect()
	l.wg.Wait()
}

// RequestMode writes the mode token. No-op unless CONNECTED.
// OnModeChange fires once the write returned; the device never acknowledges.
func (l *Link) RequestMode(m Mode) bool {
	if err := l.write([]byte(string(m) + "\n")); err != nil {
		return false
	}
	l.listener.OnModeChange(m)
	return true
}

// Send writes "<speed> <steering>\n" and then sleeps for delay.
func (l *Link) Send(speed, steering int, delay time.Duration) bool {
	return l.SendLine(fmt.Sprintf("%d %d\n", speed, steering), delay)
}

// SendLine writes a pre-formatted line verbatim and then sleeps for delay.
func (l *Link) SendLine(line string, delay time.Duration) bool {
	if err := l.write([]byte(line)); err != nil {
		return false
	}
	l.listener.OnSent(line)
	if delay > 0 {
		time.Sleep(delay)
	}
	return true
}

func (l *Link) write(b []byte) error {
	l.mu.Lock()
	port, gen := l.port, l.gen
	l.mu.Unlock()

	if port == nil || l.state.State() != link.Connected {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	err := wire.WriteAll(port, b)
	l.writeMu.Unlock()

	if err != nil {
		l.lost(gen, fmt.Errorf("serial: write: %w", err))
		return err
	}
	return nil
}

// ---- reader ----

func (l *Link) readLoop(port io.ReadWriteCloser, gen uint64) {
	defer l.wg.Done()

	var parser LineParser
	buf := make([]byte, 256)

	for {
		n, err := port.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n], l.handleLine)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, goserial.ErrTimeout) {
			if l.current(gen) {
				continue
			}
			return
		}
		l.lost(gen, fmt.Errorf("serial: read: %w", err))
		return
	}
}

func (l *Link) handleLine(line string) {
	s, err := ParseTelemetry(line)
	if err != nil {
		l.log.Debug("telemetry dropped", zap.String("line", line), zap.Error(err))
		return
	}
	l.listener.OnTelemetry(s)
}

func (l *Link) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen
}

// lost tears down the connection identified by gen.
// Stale generations (already disconnected) are ignored.
func (l *Link) lost(gen uint64, err error) {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	port := l.port
	l.port = nil
	l.device = ""
	l.gen++
	l.mu.Unlock()

	if port != nil {
		_ = port.Close()
	}

	l.log.Warn("serial connection lost", zap.Error(err))
	l.listener.OnError(err)
	l.state.Set(link.None)
}
