// internal/framequeue/nv21.go
package framequeue

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
)

var errGeometry = errors.New("framequeue: invalid frame geometry")

// NV21JPEG encodes NV21 (Y plane followed by interleaved V/U at quarter
// resolution) camera frames as baseline JPEG.
// Missing chroma bytes are encoded as neutral grey.
type NV21JPEG struct{}

func (NV21JPEG) Encode(f Frame, quality int) ([]byte, error) {
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 || len(f.Data) < w*h {
		return nil, errGeometry
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	copy(img.Y, f.Data[:w*h])

	vu := f.Data[w*h:]
	cw, ch := (w+1)/2, (h+1)/2
	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			i := row*cw + col
			cr, cb := byte(128), byte(128)
			if 2*i+1 < len(vu) {
				cr = vu[2*i]
				cb = vu[2*i+1]
			}
			ci := row*img.CStride + col
			img.Cr[ci] = cr
			img.Cb[ci] = cb
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
