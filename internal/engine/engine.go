package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/checkora/internal/board"
)

const (
	VerbMoves   = "MOVES"
	VerbPromote = "PROMOTE"

	DefaultTimeout = 5 * time.Second

	movesFieldsPerCandidate = 4
)

var (
	ErrUnavailable    = errors.New("validation engine unavailable")
	ErrTimeout        = errors.New("validation engine timed out")
	ErrMalformedReply = errors.New("malformed engine reply")
)

// Destination is one legal target square reported for a piece.
type Destination struct {
	Row         int  `json:"row"`
	Col         int  `json:"col"`
	IsCapture   bool `json:"is_capture"`
	IsPromotion bool `json:"is_promotion"`
}

func (d Destination) Square() board.Square { return board.Square{Row: d.Row, Col: d.Col} }

// Client answers legality questions about a position. Every failure is one of
// ErrUnavailable, ErrTimeout or ErrMalformedReply; callers treat them alike.
type Client interface {
	QueryMoves(ctx context.Context, wire string, turn board.Color, from board.Square) ([]Destination, error)
	QueryPromotion(ctx context.Context, wire string, turn board.Color, from, to board.Square, kind board.PromotionKind) (string, error)
}

// IsNoResult reports whether err belongs to the engine failure taxonomy.
func IsNoResult(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedReply)
}

func FormatMoves(wire string, turn board.Color, from board.Square) string {
	return fmt.Sprintf("%s %s %s %d %d", VerbMoves, wire, turn, from.Row, from.Col)
}

func FormatPromote(wire string, turn board.Color, from, to board.Square, kind board.PromotionKind) string {
	return fmt.Sprintf("%s %s %s %d %d %d %d %s", VerbPromote, wire, turn, from.Row, from.Col, to.Row, to.Col, kind)
}

// ParseMovesReply decodes "MOVES r c cap promo ..." into destinations.
func ParseMovesReply(line string) ([]Destination, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != VerbMoves {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrMalformedReply, VerbMoves, truncate(line))
	}
	values := fields[1:]
	if len(values)%movesFieldsPerCandidate != 0 {
		return nil, &ArityError{Values: len(values)}
	}
	dests := make([]Destination, 0, len(values)/movesFieldsPerCandidate)
	for i := 0; i < len(values); i += movesFieldsPerCandidate {
		row, err := strconv.Atoi(values[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %q", ErrMalformedReply, values[i])
		}
		col, err := strconv.Atoi(values[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: col %q", ErrMalformedReply, values[i+1])
		}
		if !(board.Square{Row: row, Col: col}).Valid() {
			return nil, fmt.Errorf("%w: square %d,%d out of range", ErrMalformedReply, row, col)
		}
		capture, err := parseFlag(values[i+2])
		if err != nil {
			return nil, err
		}
		promo, err := parseFlag(values[i+3])
		if err != nil {
			return nil, err
		}
		dests = append(dests, Destination{Row: row, Col: col, IsCapture: capture, IsPromotion: promo})
	}
	return dests, nil
}

// ArityError is returned when a MOVES reply cannot be split into candidates of
// four values each. It matches ErrMalformedReply.
type ArityError struct {
	Values int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: %d values is not a multiple of %d", ErrMalformedReply, e.Values, movesFieldsPerCandidate)
}

func (e *ArityError) Unwrap() error { return ErrMalformedReply }

// PerCandidate is the number of values each candidate carries in the expected
// reply format.
func (e *ArityError) PerCandidate() int { return movesFieldsPerCandidate }

// ParsePromoteReply decodes "PROMOTE <board64>" and returns the board text.
func ParsePromoteReply(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != VerbPromote {
		return "", fmt.Errorf("%w: expected %s <board>, got %q", ErrMalformedReply, VerbPromote, truncate(line))
	}
	if _, err := board.ParseWire(fields[1]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return fields[1], nil
}

func FormatMovesReply(dests []Destination) string {
	var sb strings.Builder
	sb.WriteString(VerbMoves)
	for _, d := range dests {
		fmt.Fprintf(&sb, " %d %d %d %d", d.Row, d.Col, boolFlag(d.IsCapture), boolFlag(d.IsPromotion))
	}
	return sb.String()
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: flag %q", ErrMalformedReply, s)
	}
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string) string {
	const max = 96
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
