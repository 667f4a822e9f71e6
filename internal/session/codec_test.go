package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/game"
)

type stubEngine struct{}

func (stubEngine) QueryMoves(ctx context.Context, wire string, turn board.Color, from board.Square) ([]engine.Destination, error) {
	switch from {
	case board.Square{Row: 6, Col: 4}:
		return []engine.Destination{{Row: 5, Col: 4}, {Row: 4, Col: 4}}, nil
	case board.Square{Row: 1, Col: 3}:
		return []engine.Destination{{Row: 2, Col: 3}, {Row: 3, Col: 3}}, nil
	case board.Square{Row: 4, Col: 4}:
		return []engine.Destination{{Row: 3, Col: 3, IsCapture: true}}, nil
	}
	return []engine.Destination{}, nil
}

func (stubEngine) QueryPromotion(ctx context.Context, wire string, turn board.Color, from, to board.Square, kind board.PromotionKind) (string, error) {
	return "", engine.ErrUnavailable
}

func testEnv() game.Env {
	now := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)
	return game.Env{Engine: stubEngine{}, Now: func() time.Time { return now }, StartingSeconds: 600}
}

func assertSameState(t *testing.T, want, got *game.Game) {
	t.Helper()
	assert.Equal(t, want.Board, got.Board)
	assert.Equal(t, want.Turn, got.Turn)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.Captured, got.Captured)
	assert.Equal(t, want.Cache.Squares(), got.Cache.Squares())
	for _, sq := range want.Cache.Squares() {
		w, _ := want.Cache.Peek(sq)
		g, ok := got.Cache.Peek(sq)
		require.True(t, ok)
		assert.Equal(t, w, g)
	}
	assert.Equal(t, want.Clock.White, got.Clock.White)
	assert.Equal(t, want.Clock.Black, got.Clock.Black)
	assert.Equal(t, want.Clock.Paused, got.Clock.Paused)
	assert.True(t, want.Clock.LastObserved.Equal(got.Clock.LastObserved))
}

func roundTrip(t *testing.T, g *game.Game) *game.Game {
	t.Helper()
	raw, err := Encode(g)
	require.NoError(t, err)
	back, err := Decode(raw, testEnv())
	require.NoError(t, err)
	return back
}

func TestRoundTripFreshGame(t *testing.T) {
	g := game.New(testEnv())
	assertSameState(t, g, roundTrip(t, g))
}

func TestRoundTripWithCacheHistoryAndCaptures(t *testing.T) {
	ctx := context.Background()
	g := game.New(testEnv())

	_, err := g.ApplyMove(ctx, board.Square{Row: 6, Col: 4}, board.Square{Row: 4, Col: 4}, "")
	require.NoError(t, err)
	_, err = g.ApplyMove(ctx, board.Square{Row: 1, Col: 3}, board.Square{Row: 3, Col: 3}, "")
	require.NoError(t, err)
	_, err = g.ApplyMove(ctx, board.Square{Row: 4, Col: 4}, board.Square{Row: 3, Col: 3}, "")
	require.NoError(t, err)
	_, err = g.LegalMoves(ctx, board.Square{Row: 1, Col: 3})
	require.NoError(t, err)
	_, err = g.LegalMoves(ctx, board.Square{Row: 0, Col: 1})
	require.NoError(t, err)
	g.Pause(true)

	require.Len(t, g.History, 3)
	require.Equal(t, []string{"p"}, g.Captured.White)
	require.Equal(t, 1, g.Cache.Len())

	assertSameState(t, g, roundTrip(t, g))
}

func TestSnapshotWireShape(t *testing.T) {
	ctx := context.Background()
	g := game.New(testEnv())
	_, err := g.LegalMoves(ctx, board.Square{Row: 6, Col: 4})
	require.NoError(t, err)

	raw, err := Encode(g)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"board", "current_turn", "move_history", "captured", "valid_moves_cache", "white_time", "black_time", "last_ts", "paused"} {
		assert.Contains(t, generic, key)
	}
	cache := generic["valid_moves_cache"].(map[string]any)
	assert.Contains(t, cache, "6,4")

	rows := generic["board"].([]any)
	require.Len(t, rows, 8)
	assert.Nil(t, rows[4].([]any)[0])
	assert.Equal(t, "K", rows[7].([]any)[4])
}

func TestDecodeRejectsCorruptSnapshots(t *testing.T) {
	g := game.New(testEnv())
	raw, err := Encode(g)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	badKey := snap
	badKey.ValidMovesCache = map[string][]engine.Destination{"six,four": {}}
	badTurn := snap
	badTurn.CurrentTurn = "green"
	badBoard := snap
	badBoard.Board = snap.Board[:7]

	for name, s := range map[string]Snapshot{"key": badKey, "turn": badTurn, "board": badBoard} {
		blob, err := json.Marshal(s)
		require.NoError(t, err)
		_, err = Decode(blob, testEnv())
		assert.ErrorIs(t, err, ErrCorruptSnapshot, name)
	}

	_, err = Decode([]byte("{not json"), testEnv())
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}
