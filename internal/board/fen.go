package board

import (
	"fmt"
	"strings"
)

// FENPlacement renders the piece-placement field of a FEN string.
func (b Board) FENPlacement() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		empty := 0
		for c := 0; c < Size; c++ {
			p := b[r][c]
			if p == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(byte(p))
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r < Size-1 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// FEN builds a full FEN with no castling or en passant rights.
func (b Board) FEN(turn Color) string {
	side := "w"
	if turn == Black {
		side = "b"
	}
	return b.FENPlacement() + " " + side + " - - 0 1"
}

// FromFENPlacement parses the placement field; trailing FEN fields are ignored.
func FromFENPlacement(fen string) (Board, error) {
	var b Board
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return b, fmt.Errorf("%w: empty fen", ErrBadWire)
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != Size {
		return b, fmt.Errorf("%w: fen has %d ranks", ErrBadWire, len(ranks))
	}
	for r, rank := range ranks {
		c := 0
		for i := 0; i < len(rank); i++ {
			ch := rank[i]
			if ch >= '1' && ch <= '8' {
				c += int(ch - '0')
				continue
			}
			p := Piece(ch)
			if !p.Valid() || c >= Size {
				return Board{}, fmt.Errorf("%w: fen rank %q", ErrBadWire, rank)
			}
			b[r][c] = p
			c++
		}
		if c != Size {
			return Board{}, fmt.Errorf("%w: fen rank %q has %d files", ErrBadWire, rank, c)
		}
	}
	return b, nil
}
