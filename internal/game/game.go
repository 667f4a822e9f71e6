package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/clock"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/movecache"
)

var (
	ErrInvalidSquare = errors.New("square out of range")
	ErrIllegalMove   = errors.New("illegal move")
	ErrGameOver      = errors.New("game is over")
)

// Env carries the collaborators a game needs for one request.
type Env struct {
	Engine          engine.Client
	Now             func() time.Time
	Logger          *zap.Logger
	StartingSeconds int
}

func (e Env) normalized() Env {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.StartingSeconds <= 0 {
		e.StartingSeconds = clock.DefaultAllowance
	}
	return e
}

type HistoryEntry struct {
	Notation   string      `json:"notation"`
	Piece      string      `json:"piece"`
	From       [2]int      `json:"from"`
	To         [2]int      `json:"to"`
	Captured   *string     `json:"captured"`
	Color      board.Color `json:"color"`
	PromotedTo *string     `json:"promoted_to"`
}

// Captured lists pieces taken, keyed by the side that took them.
type Captured struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

func (c *Captured) append(side board.Color, p board.Piece) {
	if side == board.Black {
		c.Black = append(c.Black, p.String())
		return
	}
	c.White = append(c.White, p.String())
}

// State is everything about a game that outlives a request.
type State struct {
	Board    board.Board
	Turn     board.Color
	History  []HistoryEntry
	Captured Captured
	Cache    *movecache.Cache
	Clock    *clock.Clock
}

type Game struct {
	State
	env Env
}

type MoveResult struct {
	Notation string
	Captured board.Piece
	Promoted board.Piece
	Flagged  board.Color
	Message  string
}

func (r MoveResult) GameOver() bool { return r.Flagged != "" }

func New(env Env) *Game {
	g := &Game{env: env.normalized()}
	g.Reset()
	return g
}

// FromState binds persisted state to this request's collaborators.
func FromState(env Env, st State) *Game {
	env = env.normalized()
	if st.Cache == nil {
		st.Cache = movecache.New()
	}
	if st.Clock == nil {
		st.Clock = clock.New(env.StartingSeconds, env.Now)
	} else {
		st.Clock.SetNow(env.Now)
	}
	if st.History == nil {
		st.History = []HistoryEntry{}
	}
	if st.Captured.White == nil {
		st.Captured.White = []string{}
	}
	if st.Captured.Black == nil {
		st.Captured.Black = []string{}
	}
	return &Game{State: st, env: env}
}

func (g *Game) Reset() {
	g.State = State{
		Board:    board.Initial(),
		Turn:     board.White,
		History:  []HistoryEntry{},
		Captured: Captured{White: []string{}, Black: []string{}},
		Cache:    movecache.New(),
		Clock:    clock.New(g.env.StartingSeconds, g.env.Now),
	}
}

// Outcome reports the side that ran out of time, if any.
func (g *Game) Outcome() (board.Color, bool) {
	return g.Clock.Flagged()
}

// LegalMoves lists destinations for the piece on sq. Empty squares and pieces
// of the side not on turn yield an empty list without consulting the engine.
func (g *Game) LegalMoves(ctx context.Context, sq board.Square) ([]engine.Destination, error) {
	if !sq.Valid() {
		return nil, ErrInvalidSquare
	}
	piece := g.Board.At(sq)
	if piece.Empty() || piece.Color() != g.Turn {
		return []engine.Destination{}, nil
	}
	dests, _, err := g.Cache.Get(ctx, sq, g.fetchMoves)
	if err != nil {
		g.env.Logger.Warn("legal_moves_unavailable",
			zap.String("square", sq.Key()),
			zap.String("turn", string(g.Turn)),
			zap.Error(err),
		)
		return []engine.Destination{}, nil
	}
	return dests, nil
}

// IsPromotionMove is the geometric check only.
func (g *Game) IsPromotionMove(from, to board.Square) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, ErrInvalidSquare
	}
	return board.IsPromotion(g.Board.At(from), to.Row), nil
}

func (g *Game) ApplyMove(ctx context.Context, from, to board.Square, promotion string) (MoveResult, error) {
	if !from.Valid() || !to.Valid() {
		return MoveResult{}, ErrInvalidSquare
	}
	if side, over := g.Clock.Flagged(); over {
		return MoveResult{}, fmt.Errorf("%w: %s ran out of time", ErrGameOver, side)
	}
	piece := g.Board.At(from)
	if piece.Empty() || piece.Color() != g.Turn || from == to {
		return MoveResult{}, ErrIllegalMove
	}

	promotes := board.IsPromotion(piece, to.Row)
	dests, _, err := g.Cache.Get(ctx, from, g.fetchMoves)
	switch {
	case err != nil && !promotes:
		g.env.Logger.Warn("move_rejected_engine_unavailable",
			zap.String("from", from.Key()),
			zap.String("to", to.Key()),
			zap.Error(err),
		)
		return MoveResult{}, ErrIllegalMove
	case err != nil:
		g.env.Logger.Warn("promotion_legality_unchecked",
			zap.String("from", from.Key()),
			zap.String("to", to.Key()),
			zap.Error(err),
		)
	case !containsSquare(dests, to):
		return MoveResult{}, ErrIllegalMove
	}

	mover := g.Turn
	captured := g.Board.At(to)
	var promoted board.Piece
	if promotes {
		promoted = g.promote(ctx, piece, from, to, board.NormalizePromotion(promotion))
	} else {
		g.Board.Set(to, piece)
		g.Board.Set(from, board.NoPiece)
	}

	notation := board.Notation(from, to)
	if promotes {
		notation += "=" + strings.ToUpper(promoted.String())
	}
	g.History = append(g.History, HistoryEntry{
		Notation:   notation,
		Piece:      piece.String(),
		From:       [2]int{from.Row, from.Col},
		To:         [2]int{to.Row, to.Col},
		Captured:   optionalPiece(captured),
		Color:      mover,
		PromotedTo: optionalPiece(promoted),
	})

	g.Cache.InvalidateAll()

	if !captured.Empty() {
		g.Captured.append(mover, captured)
	}

	g.Clock.Tick(mover)
	flagged, _ := g.Clock.Flagged()
	g.Turn = mover.Opponent()
	g.Clock.Stamp()

	res := MoveResult{
		Notation: notation,
		Captured: captured,
		Promoted: promoted,
		Flagged:  flagged,
		Message:  notation,
	}
	if flagged != "" {
		res.Message = flagged.Title() + " ran out of time"
		g.env.Logger.Info("clock_flagged", zap.String("side", string(flagged)))
	}
	return res, nil
}

// Pause stops or restarts the clock. Pausing charges the side on turn first.
func (g *Game) Pause(paused bool) {
	switch {
	case paused && !g.Clock.Paused:
		g.Clock.Pause(g.Turn)
	case !paused && g.Clock.Paused:
		g.Clock.Resume()
	}
}

// promote asks the engine to apply the promotion. On any failure the pawn is
// replaced locally without further legality checks.
func (g *Game) promote(ctx context.Context, piece board.Piece, from, to board.Square, kind board.PromotionKind) board.Piece {
	if g.env.Engine != nil {
		wire, err := g.env.Engine.QueryPromotion(ctx, g.Board.Wire(), g.Turn, from, to, kind)
		if err == nil {
			next, perr := board.ParseWire(wire)
			if perr == nil && next.At(to).Color() == piece.Color() {
				g.Board = next
				return next.At(to)
			}
			err = fmt.Errorf("%w: promoted square %s not held by mover", engine.ErrMalformedReply, to.Algebraic())
		}
		g.env.Logger.Warn("promotion_local_fallback",
			zap.String("from", from.Key()),
			zap.String("to", to.Key()),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	promoted := board.Promote(piece, kind)
	g.Board.Set(to, promoted)
	g.Board.Set(from, board.NoPiece)
	return promoted
}

func (g *Game) fetchMoves(ctx context.Context, sq board.Square) ([]engine.Destination, error) {
	if g.env.Engine == nil {
		return nil, fmt.Errorf("%w: no engine configured", engine.ErrUnavailable)
	}
	return g.env.Engine.QueryMoves(ctx, g.Board.Wire(), g.Turn, sq)
}

func containsSquare(dests []engine.Destination, sq board.Square) bool {
	for _, d := range dests {
		if d.Square() == sq {
			return true
		}
	}
	return false
}

func optionalPiece(p board.Piece) *string {
	if p.Empty() {
		return nil
	}
	s := p.String()
	return &s
}
