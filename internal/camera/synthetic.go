// internal/camera/synthetic.go
package camera

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/carlink/internal/framequeue"
)

// Synthetic is a moving test pattern: a vertical bar sweeping over a luma
// gradient, neutral chroma.
type Synthetic struct {
	Width  int
	Height int
	FPS    int
	Pool   *Pool
}

func (s *Synthetic) Run(ctx context.Context, sink Sink) error {
	if s.Width <= 0 || s.Height <= 0 || s.FPS <= 0 {
		return errors.New("camera: synthetic source needs width, height and fps")
	}
	if s.Pool == nil {
		s.Pool = NewPool(FrameSize(s.Width, s.Height), framequeue.Capacity+2)
	}

	t := time.NewTicker(time.Second / time.Duration(s.FPS))
	defer t.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		buf := s.Pool.Get()
		s.draw(buf, n)
		if !sink.Offer(framequeue.Frame{Data: buf, Width: s.Width, Height: s.Height}) {
			s.Pool.Put(buf)
		}
	}
}

func (s *Synthetic) draw(buf []byte, n int) {
	w, h := s.Width, s.Height
	bar := (n * 4) % w

	for y := 0; y < h; y++ {
		row := buf[y*w : (y+1)*w]
		for x := range row {
			row[x] = byte((x + y) * 255 / (w + h))
			if x >= bar && x < bar+w/16+1 {
				row[x] = 235
			}
		}
	}
	for i := w * h; i < len(buf); i++ {
		buf[i] = 128
	}
}
