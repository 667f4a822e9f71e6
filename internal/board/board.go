package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Size     = 8
	WireSize = Size * Size

	emptyWire = '.'
	files     = "abcdefgh"
)

var (
	ErrBadWire      = errors.New("malformed board wire form")
	ErrBadGrid      = errors.New("malformed board grid")
	ErrBadSquareKey = errors.New("malformed square key")
)

// Color identifies a side. The string values are the ones exchanged with the
// validation engine and stored in session snapshots.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// Title is used for user-facing text ("White ran out of time").
func (c Color) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Piece is a piece symbol. Uppercase is white, lowercase is black, zero is an
// empty square.
type Piece byte

const NoPiece Piece = 0

func ParsePiece(s string) (Piece, bool) {
	if len(s) != 1 {
		return NoPiece, false
	}
	p := Piece(s[0])
	if !p.Valid() {
		return NoPiece, false
	}
	return p, true
}

func (p Piece) Valid() bool {
	switch p {
	case 'P', 'N', 'B', 'R', 'Q', 'K', 'p', 'n', 'b', 'r', 'q', 'k':
		return true
	}
	return false
}

func (p Piece) Empty() bool { return p == NoPiece }

func (p Piece) Color() Color {
	switch {
	case p >= 'A' && p <= 'Z':
		return White
	case p >= 'a' && p <= 'z':
		return Black
	default:
		return ""
	}
}

// Kind returns the lowercase kind letter (p, n, b, r, q, k).
func (p Piece) Kind() byte {
	if p >= 'A' && p <= 'Z' {
		return byte(p) + ('a' - 'A')
	}
	return byte(p)
}

func (p Piece) String() string {
	if p == NoPiece {
		return ""
	}
	return string(rune(p))
}

// Square is a board coordinate. Row 0 is black's back rank, row 7 is white's.
type Square struct {
	Row int
	Col int
}

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < Size && s.Col >= 0 && s.Col < Size
}

// Key is the composite-key form used where coordinate pairs cannot be map keys.
func (s Square) Key() string {
	return strconv.Itoa(s.Row) + "," + strconv.Itoa(s.Col)
}

// Algebraic renders the square as file+rank, e.g. row 6 col 4 is "e2".
func (s Square) Algebraic() string {
	if !s.Valid() {
		return "??"
	}
	return fmt.Sprintf("%c%d", files[s.Col], Size-s.Row)
}

func (s Square) String() string { return s.Key() }

func ParseSquareKey(key string) (Square, error) {
	rowText, colText, ok := strings.Cut(key, ",")
	if !ok {
		return Square{}, fmt.Errorf("%w: %q", ErrBadSquareKey, key)
	}
	row, err := strconv.Atoi(strings.TrimSpace(rowText))
	if err != nil {
		return Square{}, fmt.Errorf("%w: %q", ErrBadSquareKey, key)
	}
	col, err := strconv.Atoi(strings.TrimSpace(colText))
	if err != nil {
		return Square{}, fmt.Errorf("%w: %q", ErrBadSquareKey, key)
	}
	sq := Square{Row: row, Col: col}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("%w: %q out of range", ErrBadSquareKey, key)
	}
	return sq, nil
}

// Board is an 8x8 grid of piece symbols, indexed [row][col].
type Board [Size][Size]Piece

var initialRows = [Size]string{
	"rnbqkbnr",
	"pppppppp",
	"........",
	"........",
	"........",
	"........",
	"PPPPPPPP",
	"RNBQKBNR",
}

func Initial() Board {
	var b Board
	for r, row := range initialRows {
		for c := 0; c < Size; c++ {
			if row[c] != emptyWire {
				b[r][c] = Piece(row[c])
			}
		}
	}
	return b
}

func (b Board) At(sq Square) Piece { return b[sq.Row][sq.Col] }

func (b *Board) Set(sq Square, p Piece) { b[sq.Row][sq.Col] = p }

// Wire flattens the board into the 64 character engine form.
func (b Board) Wire() string {
	var sb strings.Builder
	sb.Grow(WireSize)
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if p := b[r][c]; p != NoPiece {
				sb.WriteByte(byte(p))
			} else {
				sb.WriteByte(emptyWire)
			}
		}
	}
	return sb.String()
}

func ParseWire(s string) (Board, error) {
	var b Board
	if len(s) != WireSize {
		return b, fmt.Errorf("%w: length %d", ErrBadWire, len(s))
	}
	for i := 0; i < WireSize; i++ {
		ch := s[i]
		if ch == emptyWire {
			continue
		}
		p := Piece(ch)
		if !p.Valid() {
			return Board{}, fmt.Errorf("%w: symbol %q at %d", ErrBadWire, ch, i)
		}
		b[i/Size][i%Size] = p
	}
	return b, nil
}

// Grid converts the board to the structured persisted form, nil for empty.
func (b Board) Grid() [][]*string {
	grid := make([][]*string, Size)
	for r := 0; r < Size; r++ {
		grid[r] = make([]*string, Size)
		for c := 0; c < Size; c++ {
			if p := b[r][c]; p != NoPiece {
				s := p.String()
				grid[r][c] = &s
			}
		}
	}
	return grid
}

func FromGrid(grid [][]*string) (Board, error) {
	var b Board
	if len(grid) != Size {
		return b, fmt.Errorf("%w: %d rows", ErrBadGrid, len(grid))
	}
	for r, row := range grid {
		if len(row) != Size {
			return Board{}, fmt.Errorf("%w: row %d has %d cells", ErrBadGrid, r, len(row))
		}
		for c, cell := range row {
			if cell == nil || *cell == "" {
				continue
			}
			p, ok := ParsePiece(*cell)
			if !ok {
				return Board{}, fmt.Errorf("%w: symbol %q at %d,%d", ErrBadGrid, *cell, r, c)
			}
			b[r][c] = p
		}
	}
	return b, nil
}

// HasKings reports whether each side has exactly one king.
func (b Board) HasKings() bool {
	var white, black int
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch b[r][c] {
			case 'K':
				white++
			case 'k':
				black++
			}
		}
	}
	return white == 1 && black == 1
}

// Notation is the human-readable move text stored in history.
func Notation(from, to Square) string {
	return from.Algebraic() + " -> " + to.Algebraic()
}
