package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/clock"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/game"
	"github.com/park285/checkora/internal/movecache"
)

// ErrCorruptSnapshot marks a blob this program could not have written.
var ErrCorruptSnapshot = errors.New("corrupt session snapshot")

// Snapshot is the persisted form of a game.
type Snapshot struct {
	Board           [][]*string                     `json:"board"`
	CurrentTurn     board.Color                     `json:"current_turn"`
	MoveHistory     []game.HistoryEntry             `json:"move_history"`
	Captured        game.Captured                   `json:"captured"`
	ValidMovesCache map[string][]engine.Destination `json:"valid_moves_cache"`
	WhiteTime       int                             `json:"white_time"`
	BlackTime       int                             `json:"black_time"`
	LastTS          time.Time                       `json:"last_ts"`
	Paused          bool                            `json:"paused"`
}

func SnapshotOf(g *game.Game) Snapshot {
	cache := make(map[string][]engine.Destination, g.Cache.Len())
	for _, sq := range g.Cache.Squares() {
		dests, _ := g.Cache.Peek(sq)
		cache[sq.Key()] = dests
	}
	history := g.History
	if history == nil {
		history = []game.HistoryEntry{}
	}
	captured := g.Captured
	if captured.White == nil {
		captured.White = []string{}
	}
	if captured.Black == nil {
		captured.Black = []string{}
	}
	return Snapshot{
		Board:           g.Board.Grid(),
		CurrentTurn:     g.Turn,
		MoveHistory:     history,
		Captured:        captured,
		ValidMovesCache: cache,
		WhiteTime:       g.Clock.White,
		BlackTime:       g.Clock.Black,
		LastTS:          g.Clock.LastObserved,
		Paused:          g.Clock.Paused,
	}
}

func Encode(g *game.Game) ([]byte, error) {
	raw, err := json.Marshal(SnapshotOf(g))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return raw, nil
}

func Decode(raw []byte, env game.Env) (*game.Game, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	st, err := snap.state(env.Now)
	if err != nil {
		return nil, err
	}
	return game.FromState(env, st), nil
}

func (s Snapshot) state(now func() time.Time) (game.State, error) {
	b, err := board.FromGrid(s.Board)
	if err != nil {
		return game.State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !s.CurrentTurn.Valid() {
		return game.State{}, fmt.Errorf("%w: turn %q", ErrCorruptSnapshot, s.CurrentTurn)
	}
	cache := movecache.New()
	for key, dests := range s.ValidMovesCache {
		sq, err := board.ParseSquareKey(key)
		if err != nil {
			return game.State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		cache.Put(sq, dests)
	}
	return game.State{
		Board:    b,
		Turn:     s.CurrentTurn,
		History:  s.MoveHistory,
		Captured: s.Captured,
		Cache:    cache,
		Clock:    clock.Restore(s.WhiteTime, s.BlackTime, s.LastTS, s.Paused, now),
	}, nil
}
