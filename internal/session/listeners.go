// internal/session/listeners.go
package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/netclient"
	"github.com/tamzrod/carlink/internal/serial"
	"github.com/tamzrod/carlink/internal/status"
	"github.com/tamzrod/carlink/internal/telemetry"
)

const (
	componentSerial = "serial"
	componentNet    = "net"
)

// serialListener receives serial link events on behalf of the session.
type serialListener struct{ s *Session }

func (l serialListener) OnStateChange(from, to link.State) {
	l.s.log.Info("serial state", zap.Stringer("from", from), zap.Stringer("to", to))
	l.s.events.StateChanged(componentSerial, from, to)
}

func (l serialListener) OnEstablished(device string) {
	l.s.events.Established(componentSerial, device)
	l.s.serial.RequestMode(l.s.initialMode)
}

func (l serialListener) OnTelemetry(sample telemetry.Sample) {
	l.s.lastSample.Store(&sample)
	l.s.events.Telemetry(sample)
	l.s.sendFrame(sample)
}

func (l serialListener) OnSent(line string) {
	l.s.log.Debug("serial sent", zap.String("line", line))
}

func (l serialListener) OnModeChange(m serial.Mode) {
	l.s.mode.Store(m)
	l.s.log.Info("serial mode", zap.String("mode", string(m)))
}

func (l serialListener) OnError(err error) {
	l.s.noteError(status.ErrorSerial)
	l.s.events.Error(componentSerial, err)
}

// netListener receives network client events on behalf of the session.
type netListener struct{ s *Session }

func (l netListener) OnStateChange(from, to link.State) {
	l.s.log.Info("net state", zap.Stringer("from", from), zap.Stringer("to", to))
	l.s.events.StateChanged(componentNet, from, to)
}

func (l netListener) OnEstablished(remote string) {
	l.s.events.Established(componentNet, remote)
}

func (l netListener) OnReceived(fields []string) {
	l.s.dispatcher.Dispatch(fields)
}

func (l netListener) OnSent(frame []byte) {
	l.s.events.FrameSent(len(frame))
}

func (l netListener) OnError(err error) {
	code := status.ErrorNetwork
	if errors.Is(err, netclient.ErrFrameTooLarge) {
		code = status.ErrorFrameTooLarge
	}
	l.s.noteError(code)
	l.s.events.Error(componentNet, err)
}
