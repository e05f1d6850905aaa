// internal/station/station.go
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/wire"
)

var ErrNoVehicle = errors.New("station: no vehicle connected")

type Mode int

const (
	Stream Mode = iota
	Datagram
)

const DefaultPingInterval = time.Second

type Config struct {
	Mode Mode

	// Listen is the stream-mode accept address.
	Listen string
	// Vehicle is the datagram-mode address the vehicle is bound to.
	Vehicle string

	PingInterval time.Duration
}

// Handler receives decoded frames from the vehicle.
type Handler func(remote string, f wire.Frame)

// Station is the operator side of the link: it receives frames from one
// vehicle and sends commands back.
type Station struct {
	cfg     Config
	handler Handler
	log     *zap.Logger

	mu  sync.Mutex // guards cur
	cur net.Conn

	ready chan net.Addr
}

func New(cfg Config, h Handler, log *zap.Logger) (*Station, error) {
	if h == nil {
		return nil, errors.New("station: handler required")
	}
	if cfg.Mode == Stream && cfg.Listen == "" {
		return nil, errors.New("station: stream mode requires a listen address")
	}
	if cfg.Mode == Datagram && cfg.Vehicle == "" {
		return nil, errors.New("station: datagram mode requires a vehicle address")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Station{cfg: cfg, handler: h, log: log, ready: make(chan net.Addr, 1)}, nil
}

// Ready delivers the bound local address once Run has started listening
// (stream) or dialing (datagram).
func (s *Station) Ready() <-chan net.Addr { return s.ready }

// Run serves until ctx is done.
func (s *Station) Run(ctx context.Context) error {
	if s.cfg.Mode == Datagram {
		return s.runDatagram(ctx)
	}
	return s.runStream(ctx)
}

// Send writes one bracketed command to the current vehicle.
func (s *Station) Send(tag string, args ...string) error {
	s.mu.Lock()
	c := s.cur
	s.mu.Unlock()
	if c == nil {
		return ErrNoVehicle
	}
	if err := wire.WriteAll(c, wire.FormatCommand(tag, args...)); err != nil {
		return fmt.Errorf("station: send %s: %w", tag, err)
	}
	return nil
}

func (s *Station) setCurrent(c net.Conn) {
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
}

func (s *Station) clearCurrent(c net.Conn) {
	s.mu.Lock()
	if s.cur == c {
		s.cur = nil
	}
	s.mu.Unlock()
}

// ---- stream ----

func (s *Station) runStream(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("station: listen %s: %w", s.cfg.Listen, err)
	}
	s.log.Info("station listening", zap.String("addr", ln.Addr().String()))
	s.ready <- ln.Addr()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.mu.Lock()
		if s.cur != nil {
			_ = s.cur.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("station: accept: %w", err)
		}
		// one vehicle at a time
		s.serveStream(c)
	}
}

func (s *Station) serveStream(c net.Conn) {
	remote := c.RemoteAddr().String()
	log := s.log.With(zap.String("vehicle", remote))
	log.Info("vehicle connected")

	s.setCurrent(c)
	defer func() {
		s.clearCurrent(c)
		_ = c.Close()
	}()

	dec := wire.NewDecoder(c)
	for {
		f, err := dec.Next()
		switch {
		case err == nil:
			s.handler(remote, f)
		case errors.Is(err, wire.ErrMalformedHeader), errors.Is(err, wire.ErrHeaderTooLong), errors.Is(err, wire.ErrImageTooLarge):
			log.Warn("frame dropped", zap.Error(err))
		case errors.Is(err, wire.ErrPeerClosed):
			log.Info("vehicle ended the session")
			return
		case errors.Is(err, io.EOF):
			log.Info("vehicle disconnected")
			return
		default:
			log.Warn("vehicle connection lost", zap.Error(err))
			return
		}
	}
}

// ---- datagram ----

func (s *Station) runDatagram(ctx context.Context) error {
	c, err := net.Dial("udp", s.cfg.Vehicle)
	if err != nil {
		return fmt.Errorf("station: dial %s: %w", s.cfg.Vehicle, err)
	}
	log := s.log.With(zap.String("vehicle", s.cfg.Vehicle))
	log.Info("station pinging vehicle", zap.Duration("interval", s.cfg.PingInterval))
	s.ready <- c.LocalAddr()

	s.setCurrent(c)
	defer s.clearCurrent(c)

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.ping(ctx, log)
	}()
	defer wg.Wait()

	buf := make([]byte, 64*1024)
	for {
		n, err := c.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// ICMP unreachable while the vehicle is not bound yet
			log.Debug("read failed", zap.Error(err))
			continue
		}

		f, err := wire.DecodeDatagram(buf[:n])
		switch {
		case err == nil:
			s.handler(s.cfg.Vehicle, f)
		case errors.Is(err, wire.ErrPeerClosed):
			log.Info("vehicle ended the session")
		default:
			log.Warn("datagram dropped", zap.Int("bytes", n), zap.Error(err))
		}
	}
}

func (s *Station) ping(ctx context.Context, log *zap.Logger) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()

	for {
		if err := s.Send("P"); err != nil && ctx.Err() == nil {
			log.Debug("ping failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
