// internal/serial/link_test.go
package serial

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	goserial "github.com/goburrow/serial"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/telemetry"
)

// ---- fakes ----

type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

type recorder struct {
	mu          sync.Mutex
	states      []link.State
	established []string
	samples     []telemetry.Sample
	sent        []string
	modes       []Mode
	errs        []error
}

func (r *recorder) OnStateChange(_, to link.State) {
	r.mu.Lock()
	r.states = append(r.states, to)
	r.mu.Unlock()
}
func (r *recorder) OnEstablished(d string) {
	r.mu.Lock()
	r.established = append(r.established, d)
	r.mu.Unlock()
}
func (r *recorder) OnTelemetry(s telemetry.Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}
func (r *recorder) OnSent(line string) {
	r.mu.Lock()
	r.sent = append(r.sent, line)
	r.mu.Unlock()
}
func (r *recorder) OnModeChange(m Mode) {
	r.mu.Lock()
	r.modes = append(r.modes, m)
	r.mu.Unlock()
}
func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		states:      append([]link.State(nil), r.states...),
		established: append([]string(nil), r.established...),
		samples:     append([]telemetry.Sample(nil), r.samples...),
		sent:        append([]string(nil), r.sent...),
		modes:       append([]Mode(nil), r.modes...),
		errs:        append([]error(nil), r.errs...),
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestLink(t *testing.T, port *fakePort, openErr error) (*Link, *recorder, *goserial.Config) {
	t.Helper()
	rec := &recorder{}
	var seen goserial.Config
	l := New(DefaultConfig(), rec,
		WithLogger(zaptest.NewLogger(t)),
		WithOpener(func(cfg goserial.Config) (io.ReadWriteCloser, error) {
			seen = cfg
			if openErr != nil {
				return nil, openErr
			}
			return port, nil
		}),
	)
	t.Cleanup(l.Close)
	return l, rec, &seen
}

// ---- tests ----

func TestLink_ConnectFailureLeavesStateNone(t *testing.T) {
	l, rec, _ := newTestLink(t, nil, errors.New("permission denied"))

	if l.Connect("/dev/ttyACM0") {
		t.Fatalf("Connect should fail")
	}
	if l.State() != link.None {
		t.Fatalf("state: got=%s want=NONE", l.State())
	}
	s := rec.snapshot()
	if len(s.states) != 0 || len(s.established) != 0 || len(s.errs) != 0 {
		t.Fatalf("no events expected on open failure: %+v", &s)
	}
}

func TestLink_ConnectConfiguresLine(t *testing.T) {
	port := newFakePort()
	l, rec, seen := newTestLink(t, port, nil)

	if !l.Connect("/dev/ttyACM0") {
		t.Fatalf("Connect failed")
	}
	if seen.Address != "/dev/ttyACM0" || seen.BaudRate != 115200 ||
		seen.DataBits != 8 || seen.StopBits != 1 || seen.Parity != "N" {
		t.Fatalf("unexpected line config: %+v", *seen)
	}

	s := rec.snapshot()
	if len(s.states) != 1 || s.states[0] != link.Connected {
		t.Fatalf("states: %v", s.states)
	}
	if len(s.established) != 1 || s.established[0] != "/dev/ttyACM0" {
		t.Fatalf("established: %v", s.established)
	}
	if l.Device() != "/dev/ttyACM0" {
		t.Fatalf("device: %q", l.Device())
	}

	// already connected: no second open, no second event
	if !l.Connect("/dev/ttyACM0") {
		t.Fatalf("second Connect should report connected")
	}
	if got := len(rec.snapshot().states); got != 1 {
		t.Fatalf("second Connect fired %d events", got)
	}
}

func TestLink_ParsesTelemetryAfterSync(t *testing.T) {
	port := newFakePort()
	l, rec, _ := newTestLink(t, port, nil)
	l.Connect("dev")

	go func() {
		_, _ = port.w.Write([]byte("5 partial\n1400 1568 12.5\r\nnot numbers here\n15"))
		_, _ = port.w.Write([]byte("00 1500 3.0\n"))
	}()

	waitUntil(t, "two samples", func() bool { return len(rec.snapshot().samples) == 2 })

	s := rec.snapshot()
	want := []telemetry.Sample{
		{SpeedCommand: 1400, SteeringCommand: 1568, Distance: 12.5, Online: true},
		{SpeedCommand: 1500, SteeringCommand: 1500, Distance: 3.0, Online: true},
	}
	for i := range want {
		if s.samples[i] != want[i] {
			t.Fatalf("sample %d: got=%+v want=%+v", i, s.samples[i], want[i])
		}
	}
	if l.State() != link.Connected {
		t.Fatalf("malformed line must not drop the link")
	}
}

func TestLink_SendAndRequestMode(t *testing.T) {
	port := newFakePort()
	l, rec, _ := newTestLink(t, port, nil)

	if l.Send(1, 2, 0) || l.RequestMode(ModeMonitor) {
		t.Fatalf("writes must fail while NONE")
	}
	if port.Written() != "" {
		t.Fatalf("nothing should be written while NONE")
	}

	l.Connect("dev")

	if !l.RequestMode(ModeMonitor) {
		t.Fatalf("RequestMode failed")
	}
	if !l.Send(1500, 1600, time.Millisecond) {
		t.Fatalf("Send failed")
	}
	if !l.SendLine("100 200\n", 0) {
		t.Fatalf("SendLine failed")
	}

	if got := port.Written(); got != "M\n1500 1600\n100 200\n" {
		t.Fatalf("written: %q", got)
	}
	s := rec.snapshot()
	if len(s.modes) != 1 || s.modes[0] != ModeMonitor {
		t.Fatalf("modes: %v", s.modes)
	}
	if len(s.sent) != 2 || s.sent[0] != "1500 1600\n" {
		t.Fatalf("sent: %q", s.sent)
	}
}

func TestLink_WriteFailureDropsToNone(t *testing.T) {
	port := newFakePort()
	l, rec, _ := newTestLink(t, port, nil)
	l.Connect("dev")

	port.mu.Lock()
	port.writeErr = errors.New("EIO")
	port.mu.Unlock()

	if l.Send(1, 2, 0) {
		t.Fatalf("Send should fail")
	}
	if l.State() != link.None {
		t.Fatalf("state: got=%s want=NONE", l.State())
	}

	s := rec.snapshot()
	if len(s.errs) != 1 {
		t.Fatalf("errors: %v", s.errs)
	}
	if len(s.states) != 2 || s.states[1] != link.None {
		t.Fatalf("states: %v", s.states)
	}
	if len(s.sent) != 0 {
		t.Fatalf("failed write must not report sent")
	}
}

func TestLink_ReadErrorDropsToNone(t *testing.T) {
	port := newFakePort()
	l, rec, _ := newTestLink(t, port, nil)
	l.Connect("dev")

	_ = port.w.CloseWithError(errors.New("device unplugged"))

	waitUntil(t, "NONE", func() bool { return l.State() == link.None })
	if got := len(rec.snapshot().errs); got != 1 {
		t.Fatalf("expected one error event, got %d", got)
	}
}

func TestLink_DisconnectIsQuiet(t *testing.T) {
	port := newFakePort()
	l, rec, _ := newTestLink(t, port, nil)
	l.Connect("dev")

	l.Close()

	if l.State() != link.None {
		t.Fatalf("state: got=%s", l.State())
	}
	s := rec.snapshot()
	if len(s.errs) != 0 {
		t.Fatalf("explicit disconnect must not report errors: %v", s.errs)
	}
	if len(s.states) != 2 {
		t.Fatalf("states: %v", s.states)
	}
	if l.Send(1, 2, 0) {
		t.Fatalf("Send after disconnect must fail")
	}
}

func TestLink_ReconnectAfterLoss(t *testing.T) {
	first := newFakePort()
	second := newFakePort()
	ports := []*fakePort{first, second}

	rec := &recorder{}
	l := New(DefaultConfig(), rec, WithOpener(func(goserial.Config) (io.ReadWriteCloser, error) {
		p := ports[0]
		ports = ports[1:]
		return p, nil
	}))
	t.Cleanup(l.Close)

	l.Connect("dev")
	_ = first.w.CloseWithError(errors.New("gone"))
	waitUntil(t, "NONE", func() bool { return l.State() == link.None })

	if !l.Connect("dev") {
		t.Fatalf("reconnect failed")
	}
	if !l.Send(7, 8, 0) || second.Written() != "7 8\n" {
		t.Fatalf("write on new port: %q", second.Written())
	}
}

func TestLink_ConcurrentConnectDisconnect(t *testing.T) {
	var mu sync.Mutex
	var opened []*fakePort
	rec := &recorder{}
	l := New(DefaultConfig(), rec,
		WithLogger(zaptest.NewLogger(t)),
		WithOpener(func(goserial.Config) (io.ReadWriteCloser, error) {
			p := newFakePort()
			mu.Lock()
			opened = append(opened, p)
			mu.Unlock()
			return p, nil
		}),
	)
	t.Cleanup(l.Close)

	for i := 0; i < 500; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); l.Connect("dev") }()
		go func() { defer wg.Done(); l.Disconnect() }()
		wg.Wait()

		// CONNECTED must always mean a live, writable port.
		if l.State() == link.Connected {
			if l.Device() != "dev" {
				t.Fatalf("iteration %d: CONNECTED without a device", i)
			}
			if !l.RequestMode(ModeMonitor) {
				t.Fatalf("iteration %d: CONNECTED but write failed", i)
			}
		}
		l.Disconnect()
		if l.State() != link.None {
			t.Fatalf("iteration %d: state after Disconnect: %s", i, l.State())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, p := range opened {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			t.Fatalf("port %d left open", i)
		}
	}
}

func TestParseTelemetry(t *testing.T) {
	s, err := ParseTelemetry("1400 1568 7.5 extra")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.SpeedCommand != 1400 || s.SteeringCommand != 1568 || s.Distance != 7.5 || !s.Online {
		t.Fatalf("got=%+v", s)
	}

	for _, bad := range []string{"", "1 2", "a 2 3", "1 b 3", "1 2 c", "1  2 3"} {
		if _, err := ParseTelemetry(bad); !errors.Is(err, ErrMalformedLine) {
			t.Fatalf("%q: expected ErrMalformedLine, got %v", bad, err)
		}
	}
}

func TestLineParser_DropsOverlongLine(t *testing.T) {
	var got []string
	var p LineParser
	p.Feed([]byte("\n"+string(bytes.Repeat([]byte("9"), maxLineLen+5))+"\n1 2 3\n"), func(l string) {
		got = append(got, l)
	})
	if len(got) != 1 || got[0] != "1 2 3" {
		t.Fatalf("got=%q", got)
	}
}
