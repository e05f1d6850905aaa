// internal/session/status.go
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/status"
	"github.com/tamzrod/carlink/internal/telemetry"
)

func (s *Session) noteError(code uint16) {
	s.errMu.Lock()
	s.lastErr = code
	s.errMu.Unlock()
}

// Status builds the current snapshot. It also advances the
// seconds-in-error clock, so one caller (the status loop) should own it.
func (s *Session) Status() status.Snapshot {
	serialState := s.serial.State()
	netState := s.net.State()

	var snap status.Snapshot

	// ------------------------------------------------------------
	// Health
	// ------------------------------------------------------------
	switch {
	case netState == link.None:
		snap.Health = status.HealthError
	case netState == link.Connecting:
		snap.Health = status.HealthStale
	case s.device != "" && serialState != link.Connected:
		snap.Health = status.HealthStale
	default:
		snap.Health = status.HealthOK
	}

	s.errMu.Lock()
	if snap.Health == status.HealthOK {
		// recovery resets the error view
		s.lastErr = status.ErrorNone
		s.errorSince = time.Time{}
	} else if s.errorSince.IsZero() {
		s.errorSince = time.Now()
	}
	snap.LastErrorCode = s.lastErr
	if !s.errorSince.IsZero() {
		snap.SecondsInError = status.Clamp(int(time.Since(s.errorSince) / time.Second))
	}
	s.errMu.Unlock()

	// ------------------------------------------------------------
	// Links + knobs
	// ------------------------------------------------------------
	snap.SerialState = uint16(serialState)
	snap.NetworkState = uint16(netState)
	snap.SuccessPermille = status.Clamp(int(s.net.SuccessRate()*1000 + 0.5))
	snap.Quality = status.Clamp(s.queue.Quality())
	if s.illumination.Load() {
		snap.Illumination = 1
	}
	snap.QueueDepth = status.Clamp(s.queue.Count())

	// ------------------------------------------------------------
	// Telemetry (defaults until the first serial line)
	// ------------------------------------------------------------
	sample := telemetry.Default()
	if p := s.lastSample.Load(); p != nil && serialState == link.Connected {
		sample = *p
	}
	snap.SpeedCommand = status.Clamp(sample.SpeedCommand)
	snap.SteeringCommand = status.Clamp(sample.SteeringCommand)
	snap.DistanceDecimeters = status.Clamp(int(sample.Distance*10 + 0.5))

	return snap
}

// statusLoop delivers a snapshot on start and then on every tick.
// The writer only sends slots that changed.
func (s *Session) statusLoop(ctx context.Context) {
	defer s.wg.Done()

	s.writeStatus()

	t := time.NewTicker(s.timing.status)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.writeStatus()
		}
	}
}

func (s *Session) writeStatus() {
	if err := s.exporter.WriteStatus(s.Status()); err != nil {
		s.log.Warn("status write failed", zap.Error(err))
	}
}
