// internal/wire/command.go
package wire

import "strings"

// MaxCommandLen bounds one bracketed command. Longer spans are discarded.
const MaxCommandLen = 256

// CommandScanner extracts "[a;b;c]" spans from an inbound byte stream.
//
// It is armed by '[' and emits the ';'-split fields on ']'.
// Bytes outside a span are discarded. A '[' inside a span restarts it.
// Not safe for concurrent use; each reader owns one.
type CommandScanner struct {
	armed bool
	buf   []byte
}

// Feed consumes p and calls emit once per complete span, in order.
func (s *CommandScanner) Feed(p []byte, emit func(fields []string)) {
	for _, b := range p {
		switch {
		case b == headerOpen:
			s.armed = true
			s.buf = s.buf[:0]

		case !s.armed:
			// outside a span

		case b == headerClose:
			s.armed = false
			emit(strings.Split(string(s.buf), string(fieldSep)))
			s.buf = s.buf[:0]

		default:
			if len(s.buf) >= MaxCommandLen {
				s.Reset()
				continue
			}
			s.buf = append(s.buf, b)
		}
	}
}

// Reset drops any partially accumulated span.
func (s *CommandScanner) Reset() {
	s.armed = false
	s.buf = s.buf[:0]
}

// FormatCommand builds "[tag;arg1;arg2]".
func FormatCommand(tag string, args ...string) []byte {
	var sb strings.Builder
	sb.WriteByte(headerOpen)
	sb.WriteString(tag)
	for _, a := range args {
		sb.WriteByte(fieldSep)
		sb.WriteString(a)
	}
	sb.WriteByte(headerClose)
	return []byte(sb.String())
}
