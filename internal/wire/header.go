// internal/wire/header.go
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	headerOpen  byte = '['
	headerClose byte = ']'
	fieldSep    byte = ';'

	// EndMarker is written by the vehicle when it ends a session.
	EndMarker byte = '$'

	// Fixed header fields before the optional sensor values.
	fixedFields = 5
)

var (
	ErrMalformedHeader = errors.New("wire: malformed header")
	ErrHeaderTooLong   = errors.New("wire: header too long")
	ErrImageTooLarge   = errors.New("wire: image length exceeds limit")
	ErrTruncated       = errors.New("wire: truncated frame")
	ErrPeerClosed      = errors.New("wire: peer closed session")
)

// Header is the ASCII part of an outbound frame.
type Header struct {
	Online          bool
	SpeedCommand    int
	SteeringCommand int
	Distance        float32
	ImageLen        int
	Sensors         []float32
}

// Frame is one decoded header plus its image payload.
type Frame struct {
	Header
	Image []byte
}

//
// ---- Outbound frame builder (LOCKED) ----
//
// Layout:
//   "[" online(0|1) ";" speedCmd ";" steeringCmd ";" distance(%.1f) ";" imageLen
//       (";" sensor(%.5f))* "]" <imageLen raw bytes>
//
// The image length is a header field. There is no binary length prefix
// and no checksum.
//

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = append(dst, headerOpen)
	if h.Online {
		dst = append(dst, '1')
	} else {
		dst = append(dst, '0')
	}
	dst = append(dst, fieldSep)
	dst = strconv.AppendInt(dst, int64(h.SpeedCommand), 10)
	dst = append(dst, fieldSep)
	dst = strconv.AppendInt(dst, int64(h.SteeringCommand), 10)
	dst = append(dst, fieldSep)
	dst = appendFixed(dst, h.Distance, 1)
	dst = append(dst, fieldSep)
	dst = strconv.AppendInt(dst, int64(h.ImageLen), 10)
	for _, v := range h.Sensors {
		dst = append(dst, fieldSep)
		dst = appendFixed(dst, v, 5)
	}
	return append(dst, headerClose)
}

// EncodeFrame builds header+image. ImageLen is taken from len(image).
func EncodeFrame(h Header, image []byte) []byte {
	h.ImageLen = len(image)
	out := make([]byte, 0, 64+len(h.Sensors)*12+len(image))
	out = AppendHeader(out, h)
	return append(out, image...)
}

// ParseHeader parses the text between the brackets.
func ParseHeader(body string) (Header, error) {
	parts := strings.Split(body, string(fieldSep))
	if len(parts) < fixedFields {
		return Header{}, fmt.Errorf("%w: %d fields", ErrMalformedHeader, len(parts))
	}

	var h Header

	switch parts[0] {
	case "1":
		h.Online = true
	case "0":
	default:
		return Header{}, fmt.Errorf("%w: online flag %q", ErrMalformedHeader, parts[0])
	}

	var err error
	if h.SpeedCommand, err = strconv.Atoi(parts[1]); err != nil {
		return Header{}, fmt.Errorf("%w: speed: %v", ErrMalformedHeader, err)
	}
	if h.SteeringCommand, err = strconv.Atoi(parts[2]); err != nil {
		return Header{}, fmt.Errorf("%w: steering: %v", ErrMalformedHeader, err)
	}
	dist, err := strconv.ParseFloat(parts[3], 32)
	if err != nil {
		return Header{}, fmt.Errorf("%w: distance: %v", ErrMalformedHeader, err)
	}
	h.Distance = float32(dist)

	if h.ImageLen, err = strconv.Atoi(parts[4]); err != nil || h.ImageLen < 0 {
		return Header{}, fmt.Errorf("%w: image length %q", ErrMalformedHeader, parts[4])
	}

	if n := len(parts) - fixedFields; n > 0 {
		h.Sensors = make([]float32, n)
		for i, p := range parts[fixedFields:] {
			v, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return Header{}, fmt.Errorf("%w: sensor %d: %v", ErrMalformedHeader, i, err)
			}
			h.Sensors[i] = float32(v)
		}
	}

	return h, nil
}
