// internal/command/command.go
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/link"
)

// Kind identifies an inbound station command.
type Kind byte

const (
	Quality      Kind = 'Q'
	Illumination Kind = 'F'
	Forward      Kind = 'A'
	Ping         Kind = 'P'
)

func (k Kind) String() string { return string(rune(k)) }

var (
	ErrEmpty      = errors.New("command: empty frame")
	ErrUnknownTag = errors.New("command: unknown tag")
	ErrBadArg     = errors.New("command: bad argument")
)

// Command is one decoded inbound frame.
type Command struct {
	Kind    Kind
	Quality int    // Quality
	Line    string // Forward, without trailing newline
}

// Decode turns the ';'-split fields of one bracketed frame into a Command.
func Decode(fields []string) (Command, error) {
	if len(fields) == 0 || fields[0] == "" {
		return Command{}, ErrEmpty
	}

	tag := fields[0]
	if len(tag) != 1 {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	switch k := Kind(tag[0]); k {
	case Quality:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%w: Q needs a value", ErrBadArg)
		}
		q, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return Command{}, fmt.Errorf("%w: Q: %v", ErrBadArg, err)
		}
		return Command{Kind: k, Quality: q}, nil

	case Forward:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%w: A needs a line", ErrBadArg)
		}
		// the line itself may have contained ';'
		return Command{Kind: k, Line: strings.Join(fields[1:], ";")}, nil

	case Illumination, Ping:
		return Command{Kind: k}, nil

	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}

// Target receives command effects. The session implements it.
type Target interface {
	SetQuality(q int)
	ToggleIllumination()
	SerialState() link.State
	ForwardSerial(line string) bool
	RefreshLiveness()
}

// Apply performs the effect of c on t.
// A forward is dropped unless the serial link is CONNECTED.
// Forwards also count as liveness: the station only sends them while it
// is actively driving.
func Apply(c Command, t Target) {
	switch c.Kind {
	case Quality:
		t.SetQuality(c.Quality)
	case Illumination:
		t.ToggleIllumination()
	case Forward:
		t.RefreshLiveness()
		if t.SerialState() == link.Connected {
			t.ForwardSerial(c.Line + "\n")
		}
	case Ping:
		t.RefreshLiveness()
	}
}

// Dispatcher decodes and applies inbound frames. It holds no state.
type Dispatcher struct {
	target Target
	log    *zap.Logger
}

func NewDispatcher(t Target, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{target: t, log: log}
}

// Dispatch handles one frame. Bad frames are logged and dropped.
func (d *Dispatcher) Dispatch(fields []string) {
	c, err := Decode(fields)
	if err != nil {
		if errors.Is(err, ErrUnknownTag) || errors.Is(err, ErrEmpty) {
			d.log.Debug("command ignored", zap.Strings("fields", fields), zap.Error(err))
		} else {
			d.log.Warn("command rejected", zap.Strings("fields", fields), zap.Error(err))
		}
		return
	}
	d.log.Debug("command", zap.Stringer("kind", c.Kind))
	Apply(c, d.target)
}
