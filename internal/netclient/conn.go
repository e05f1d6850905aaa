// internal/netclient/conn.go
package netclient

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
	"github.com/tamzrod/carlink/internal/wire"
)

const goodbyeTimeout = 200 * time.Millisecond

// conn is one established transport plus its mailbox.
// A fresh conn (and a fresh, empty slot) is created per connection, so no
// frame survives a reconnect.
type conn struct {
	gen uint64

	nc net.Conn       // stream mode
	pc net.PacketConn // datagram mode

	mu   sync.Mutex // guards peer
	peer net.Addr

	writeMu sync.Mutex
	slot    chan []byte

	done chan struct{}
	once sync.Once
}

func newStreamConn(nc net.Conn) *conn {
	return &conn{nc: nc, slot: make(chan []byte, 1), done: make(chan struct{})}
}

func newDatagramConn(pc net.PacketConn, peer net.Addr) *conn {
	return &conn{pc: pc, peer: peer, slot: make(chan []byte, 1), done: make(chan struct{})}
}

// remote returns the peer, or nil while a datagram peer is unknown.
func (k *conn) remote() net.Addr {
	if k.nc != nil {
		return k.nc.RemoteAddr()
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.peer
}

func (k *conn) write(b []byte) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if k.nc != nil {
		return wire.WriteAll(k.nc, b)
	}
	peer := k.remote()
	if peer == nil {
		return nil
	}
	_, err := k.pc.WriteTo(b, peer)
	return err
}

// goodbye sends the end-of-communication marker, ignoring errors.
func (k *conn) goodbye() {
	if k.nc != nil {
		_ = k.nc.SetWriteDeadline(time.Now().Add(goodbyeTimeout))
	} else {
		_ = k.pc.SetWriteDeadline(time.Now().Add(goodbyeTimeout))
	}
	_ = k.write([]byte{wire.EndMarker})
}

func (k *conn) close() {
	k.once.Do(func() {
		close(k.done)
		if k.nc != nil {
			_ = k.nc.Close()
		} else {
			_ = k.pc.Close()
		}
	})
}

// ---- reader ----

func (c *Client) readLoop(cur *conn) {
	defer c.wg.Done()

	if cur.nc != nil {
		c.readStream(cur)
		return
	}
	c.readDatagrams(cur)
}

func (c *Client) readStream(cur *conn) {
	var sc wire.CommandScanner
	buf := make([]byte, 1024)

	for {
		n, err := cur.nc.Read(buf)
		if n > 0 && c.current(cur.gen) {
			sc.Feed(buf[:n], c.listener.OnReceived)
		}
		if err != nil {
			c.lost(cur.gen, fmt.Errorf("netclient: read: %w", err))
			return
		}
	}
}

func (c *Client) readDatagrams(cur *conn) {
	var sc wire.CommandScanner
	buf := make([]byte, 64*1024)

	for {
		n, from, err := cur.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				c.lost(cur.gen, fmt.Errorf("netclient: read: %w", err))
				return
			}
			if !c.current(cur.gen) {
				return
			}
			c.degrade(cur.gen, fmt.Errorf("netclient: read: %w", err))
			select {
			case <-cur.done:
				return
			case <-time.After(c.cfg.PollInterval):
			}
			continue
		}
		if !c.current(cur.gen) {
			return
		}

		c.notePeer(cur, from)

		// one datagram carries whole commands only
		sc.Reset()
		sc.Feed(buf[:n], c.listener.OnReceived)
	}
}

// notePeer learns a new peer address, or re-promotes a known peer that
// resumed talking after a liveness timeout.
func (c *Client) notePeer(cur *conn, from net.Addr) {
	cur.mu.Lock()
	learned := cur.peer == nil || cur.peer.String() != from.String()
	if learned {
		cur.peer = from
	}
	cur.mu.Unlock()

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.current(cur.gen) {
		return
	}

	if learned {
		c.RefreshLiveness()
		c.state.SetIf(link.Connecting, link.Connected)
		c.log.Info("peer learned", zap.String("remote", from.String()))
		c.listener.OnEstablished(from.String())
		return
	}

	if c.state.State() == link.Connecting {
		c.RefreshLiveness()
		if c.state.SetIf(link.Connecting, link.Connected) {
			c.log.Info("peer resumed", zap.String("remote", from.String()))
		}
	}
}

// degrade reports a recoverable datagram error and demotes to CONNECTING.
// Errors of a superseded connection are dropped.
func (c *Client) degrade(gen uint64, err error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.current(gen) {
		return
	}

	c.log.Warn("datagram error", zap.Error(err))
	c.listener.OnError(err)
	c.state.SetIf(link.Connected, link.Connecting)
}

// ---- writer ----

func (c *Client) writeLoop(cur *conn) {
	defer c.wg.Done()

	t := time.NewTicker(c.cfg.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-cur.done:
			return

		case frame := <-cur.slot:
			if c.state.State() != link.Connected {
				c.log.Debug("frame dropped", zap.Int("bytes", len(frame)))
				continue
			}
			if !c.writeFrame(cur, frame) {
				return
			}

		case <-t.C:
			if cur.pc != nil {
				c.checkLiveness(cur)
			}
		}
	}
}

// writeFrame returns false when the writer must stop.
func (c *Client) writeFrame(cur *conn, frame []byte) bool {
	if cur.pc != nil && len(frame) > maxDatagram {
		c.log.Warn("frame too large", zap.Int("bytes", len(frame)))
		c.listener.OnError(fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame)))
		return true
	}

	err := cur.write(frame)
	if err == nil {
		c.listener.OnSent(frame)
		return true
	}

	err = fmt.Errorf("netclient: write: %w", err)
	if cur.nc != nil || errors.Is(err, net.ErrClosed) {
		c.lost(cur.gen, err)
		return false
	}
	c.degrade(cur.gen, err)
	return true
}

func (c *Client) checkLiveness(cur *conn) {
	if !c.current(cur.gen) || c.state.State() != link.Connected {
		return
	}
	last := time.Unix(0, c.lastPing.Load())
	if time.Since(last) <= c.cfg.PingTimeout {
		return
	}
	if c.transition(cur.gen, link.Connected, link.Connecting) {
		c.log.Warn("liveness timeout", zap.Duration("since_ping", time.Since(last)))
	}
}
