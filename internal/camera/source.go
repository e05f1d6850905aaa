// internal/camera/source.go
package camera

import (
	"context"

	"github.com/tamzrod/carlink/internal/framequeue"
)

// Sink receives raw frames. The frame queue implements it.
type Sink interface {
	Offer(f framequeue.Frame) bool
}

// Source produces NV21 frames until ctx is done.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// FrameSize is the NV21 byte size of a w x h frame.
func FrameSize(w, h int) int {
	return w*h + 2*((w+1)/2)*((h+1)/2)
}

// Pool is a fixed set of reusable frame buffers.
// Buffers come back through the frame queue's recycle hook.
type Pool struct {
	size int
	free chan []byte
}

func NewPool(size, count int) *Pool {
	p := &Pool{size: size, free: make(chan []byte, count)}
	for i := 0; i < count; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// Get returns a free buffer, or a new one when all are in use.
func (p *Pool) Get() []byte {
	select {
	case b := <-p.free:
		return b
	default:
		return make([]byte, p.size)
	}
}

// Put returns b to the pool. Foreign sizes and overflow are dropped.
func (p *Pool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	select {
	case p.free <- b[:p.size]:
	default:
	}
}
