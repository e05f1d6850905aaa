// internal/wire/decoder.go
package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const (
	DefaultMaxHeader   = 512
	DefaultMaxImageLen = 8 << 20
)

// Decoder reads outbound frames from a byte stream.
//
// Two-phase read: header up to the closing bracket, then exactly
// ImageLen payload bytes. Bytes before the next '[' are skipped, which
// is also how the decoder resynchronizes after ErrHeaderTooLong or
// ErrMalformedHeader.
type Decoder struct {
	r           *bufio.Reader
	MaxHeader   int
	MaxImageLen int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:           bufio.NewReader(r),
		MaxHeader:   DefaultMaxHeader,
		MaxImageLen: DefaultMaxImageLen,
	}
}

// Next returns the next complete frame.
// A '$' outside a header yields ErrPeerClosed.
func (d *Decoder) Next() (Frame, error) {
	if err := d.skipToOpen(); err != nil {
		return Frame{}, err
	}

	body, err := d.readHeaderBody()
	if err != nil {
		return Frame{}, err
	}

	h, err := ParseHeader(body)
	if err != nil {
		return Frame{}, err
	}
	if h.ImageLen > d.MaxImageLen {
		return Frame{}, fmt.Errorf("%w: %d", ErrImageTooLarge, h.ImageLen)
	}

	img := make([]byte, h.ImageLen)
	if _, err := io.ReadFull(d.r, img); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("%w: image: %v", ErrTruncated, err)
		}
		return Frame{}, fmt.Errorf("wire: read image: %w", err)
	}

	return Frame{Header: h, Image: img}, nil
}

func (d *Decoder) skipToOpen() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case headerOpen:
			return nil
		case EndMarker:
			return ErrPeerClosed
		}
	}
}

func (d *Decoder) readHeaderBody() (string, error) {
	var buf bytes.Buffer
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("%w: header", ErrTruncated)
			}
			return "", err
		}
		switch b {
		case headerClose:
			return buf.String(), nil
		case headerOpen:
			// a new frame started before this one closed
			buf.Reset()
			continue
		}
		if buf.Len() >= d.MaxHeader {
			return "", ErrHeaderTooLong
		}
		buf.WriteByte(b)
	}
}

// DecodeDatagram decodes one frame carried in a single datagram.
func DecodeDatagram(p []byte) (Frame, error) {
	if len(p) > 0 && p[0] == EndMarker {
		return Frame{}, ErrPeerClosed
	}

	open := bytes.IndexByte(p, headerOpen)
	if open < 0 {
		return Frame{}, fmt.Errorf("%w: no header", ErrMalformedHeader)
	}
	end := bytes.IndexByte(p[open:], headerClose)
	if end < 0 {
		return Frame{}, fmt.Errorf("%w: header", ErrTruncated)
	}
	end += open

	h, err := ParseHeader(string(p[open+1 : end]))
	if err != nil {
		return Frame{}, err
	}

	rest := p[end+1:]
	if len(rest) < h.ImageLen {
		return Frame{}, fmt.Errorf("%w: image %d of %d bytes", ErrTruncated, len(rest), h.ImageLen)
	}

	img := make([]byte, h.ImageLen)
	copy(img, rest)
	return Frame{Header: h, Image: img}, nil
}
