// internal/framequeue/queue.go
package framequeue

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// Capacity is the maximum number of raw frames held at once.
	Capacity = 2

	DefaultQuality = 80
)

// Frame is one raw camera sample. The queue owns Data from Offer until it
// is evicted, consumed or cleared; then it is handed to the recycle hook.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Encoder turns a raw frame into transport-ready bytes.
type Encoder interface {
	Encode(f Frame, quality int) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(f Frame, quality int) ([]byte, error)

func (fn EncoderFunc) Encode(f Frame, quality int) ([]byte, error) { return fn(f, quality) }

// Queue is a bounded drop-oldest FIFO of raw frames.
//
// Offer never blocks. TakeLatestEncoded pops the oldest frame under the
// lock and encodes it after releasing it, so a slow encode never stalls
// the producer.
type Queue struct {
	mu     sync.Mutex
	frames []Frame

	quality atomic.Int32

	enc     Encoder
	recycle func([]byte)
	log     *zap.Logger
}

type Option func(*Queue)

// WithRecycle sets the hook that receives buffers the queue no longer owns.
func WithRecycle(fn func([]byte)) Option {
	return func(q *Queue) { q.recycle = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// New returns an empty queue. A nil encoder selects the NV21 JPEG encoder.
func New(enc Encoder, opts ...Option) *Queue {
	if enc == nil {
		enc = NV21JPEG{}
	}
	q := &Queue{
		frames: make([]Frame, 0, Capacity),
		enc:    enc,
		log:    zap.NewNop(),
	}
	q.quality.Store(DefaultQuality)
	for _, o := range opts {
		o(q)
	}
	return q
}

// Offer enqueues f, evicting the oldest frame when full.
// Frames with fewer than Width*Height bytes are rejected.
func (q *Queue) Offer(f Frame) bool {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height {
		q.log.Debug("frame rejected",
			zap.Int("len", len(f.Data)),
			zap.Int("width", f.Width),
			zap.Int("height", f.Height),
		)
		return false
	}

	var evicted []byte

	q.mu.Lock()
	if len(q.frames) == Capacity {
		evicted = q.frames[0].Data
		copy(q.frames, q.frames[1:])
		q.frames[len(q.frames)-1] = Frame{}
		q.frames = q.frames[:len(q.frames)-1]
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	if evicted != nil {
		q.release(evicted)
	}
	return true
}

// TakeLatestEncoded pops the longest-waiting frame and encodes it.
// Returns false when the queue is empty or the encoder failed.
func (q *Queue) TakeLatestEncoded() ([]byte, bool) {
	f, ok := q.pop()
	if !ok {
		return nil, false
	}
	defer q.release(f.Data)

	out, err := q.enc.Encode(f, q.Quality())
	if err != nil {
		q.log.Warn("frame encode failed", zap.Error(err))
		return nil, false
	}
	return out, true
}

// Count returns the current depth.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Clear drops every queued frame.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := q.frames
	q.frames = make([]Frame, 0, Capacity)
	q.mu.Unlock()

	for _, f := range dropped {
		q.release(f.Data)
	}
}

// SetQuality sets the encoder quality. The value is not clamped here.
func (q *Queue) SetQuality(v int) { q.quality.Store(int32(v)) }

func (q *Queue) Quality() int { return int(q.quality.Load()) }

func (q *Queue) pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	copy(q.frames, q.frames[1:])
	q.frames[len(q.frames)-1] = Frame{}
	q.frames = q.frames[:len(q.frames)-1]
	return f, true
}

func (q *Queue) release(b []byte) {
	if q.recycle != nil && b != nil {
		q.recycle(b)
	}
}
