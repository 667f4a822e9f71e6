package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/checkora/internal/board"
)

func squaresOf(dests []Destination) []board.Square {
	out := make([]board.Square, 0, len(dests))
	for _, d := range dests {
		out = append(out, d.Square())
	}
	return out
}

func TestLibraryPawnMoves(t *testing.T) {
	lib := NewLibrary(nil)
	b := board.Initial()

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 6, Col: 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []board.Square{{Row: 5, Col: 4}, {Row: 4, Col: 4}}, squaresOf(dests))
}

func TestLibraryKnightMoves(t *testing.T) {
	lib := NewLibrary(nil)
	b := board.Initial()

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 7, Col: 6})
	require.NoError(t, err)
	assert.ElementsMatch(t, []board.Square{{Row: 5, Col: 5}, {Row: 5, Col: 7}}, squaresOf(dests))
}

func TestLibraryOpponentPieceHasNoMoves(t *testing.T) {
	lib := NewLibrary(nil)
	b := board.Initial()

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 1, Col: 4})
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestLibraryCaptureFlag(t *testing.T) {
	lib := NewLibrary(nil)
	b, err := board.FromFENPlacement("4k3/8/8/3p4/4P3/8/8/4K3")
	require.NoError(t, err)

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 4, Col: 4})
	require.NoError(t, err)
	var capture *Destination
	for i := range dests {
		if dests[i].Row == 3 && dests[i].Col == 3 {
			capture = &dests[i]
		}
	}
	require.NotNil(t, capture)
	assert.True(t, capture.IsCapture)
}

func TestLibraryPromotion(t *testing.T) {
	lib := NewLibrary(nil)
	b, err := board.FromFENPlacement("4k3/P7/8/8/8/8/8/4K3")
	require.NoError(t, err)
	from := board.Square{Row: 1, Col: 0}
	to := board.Square{Row: 0, Col: 0}

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, from)
	require.NoError(t, err)
	require.Len(t, dests, 1)
	assert.True(t, dests[0].IsPromotion)

	wire, err := lib.QueryPromotion(context.Background(), b.Wire(), board.White, from, to, board.PromoteKnight)
	require.NoError(t, err)
	next, err := board.ParseWire(wire)
	require.NoError(t, err)
	assert.Equal(t, board.Piece('N'), next.At(to))
	assert.True(t, next.At(from).Empty())
}

func TestLibraryRequiresKings(t *testing.T) {
	lib := NewLibrary(nil)
	b, err := board.FromFENPlacement("8/P7/8/8/8/8/8/4K3")
	require.NoError(t, err)

	_, err = lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 1, Col: 0})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLibraryMalformedWire(t *testing.T) {
	lib := NewLibrary(nil)
	_, err := lib.QueryMoves(context.Background(), "nope", board.White, board.Square{Row: 6, Col: 4})
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestLibraryPinnedPieceHasNoMoves(t *testing.T) {
	lib := NewLibrary(nil)
	b, err := board.FromFENPlacement("4k3/4r3/8/8/8/8/4B3/4K3")
	require.NoError(t, err)

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 6, Col: 4})
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestLibraryPromotionListsEachSquareOnce(t *testing.T) {
	lib := NewLibrary(nil)
	b, err := board.FromFENPlacement("4k2r/6P1/8/8/8/8/8/4K3")
	require.NoError(t, err)

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.White, board.Square{Row: 1, Col: 6})
	require.NoError(t, err)
	assert.ElementsMatch(t, []Destination{
		{Row: 0, Col: 6, IsCapture: false, IsPromotion: true},
		{Row: 0, Col: 7, IsCapture: true, IsPromotion: true},
	}, dests)
}

func TestLibraryBlackMoves(t *testing.T) {
	lib := NewLibrary(nil)
	b := board.Initial()

	dests, err := lib.QueryMoves(context.Background(), b.Wire(), board.Black, board.Square{Row: 0, Col: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []board.Square{{Row: 2, Col: 0}, {Row: 2, Col: 2}}, squaresOf(dests))
}
