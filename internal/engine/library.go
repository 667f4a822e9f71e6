package engine

import (
	"context"
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/checkora/internal/board"
)

// Library answers the same questions as the engine binary using an in-process
// move generator. Positions carry no castling or en passant rights.
type Library struct {
	logger *zap.Logger
}

func NewLibrary(logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{logger: logger}
}

func (l *Library) QueryMoves(ctx context.Context, wire string, turn board.Color, from board.Square) ([]Destination, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	b, err := l.position(wire, turn)
	if err != nil {
		return nil, err
	}
	if !from.Valid() {
		return nil, fmt.Errorf("%w: square %s out of range", ErrMalformedReply, from.Key())
	}
	piece := b.At(from)
	if piece.Empty() || piece.Color() != turn {
		return []Destination{}, nil
	}

	moves, err := l.legalMoves(b.FEN(turn))
	if err != nil {
		return nil, err
	}
	origin := toLibSquare(from)
	dests := make([]Destination, 0, 8)
	seen := make(map[board.Square]bool, 8)
	for i := range moves {
		m := &moves[i]
		if m.S1() != origin {
			continue
		}
		to := fromLibSquare(m.S2())
		// Promotions are listed once per piece kind.
		if seen[to] {
			continue
		}
		seen[to] = true
		target := b.At(to)
		dests = append(dests, Destination{
			Row:         to.Row,
			Col:         to.Col,
			IsCapture:   !target.Empty() && target.Color() != turn,
			IsPromotion: board.IsPromotion(piece, to.Row),
		})
	}
	return dests, nil
}

func (l *Library) QueryPromotion(ctx context.Context, wire string, turn board.Color, from, to board.Square, kind board.PromotionKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	b, err := l.position(wire, turn)
	if err != nil {
		return "", err
	}
	if !from.Valid() || !to.Valid() {
		return "", fmt.Errorf("%w: squares out of range", ErrMalformedReply)
	}
	fen, ok, err := l.play(b.FEN(turn), uciMove(from, to)+kind.String())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: promotion %s rejected", ErrMalformedReply, board.Notation(from, to))
	}
	next, err := board.FromFENPlacement(fen)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return next.Wire(), nil
}

func (l *Library) position(wire string, turn board.Color) (board.Board, error) {
	b, err := board.ParseWire(wire)
	if err != nil {
		return board.Board{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !turn.Valid() {
		return board.Board{}, fmt.Errorf("%w: turn %q", ErrMalformedReply, turn)
	}
	if !b.HasKings() {
		return board.Board{}, fmt.Errorf("%w: position needs one king per side", ErrUnavailable)
	}
	return b, nil
}

// play applies move to a fresh game at fen. ok is false when the move is
// illegal; err is set only when the generator itself fails.
func (l *Library) play(fen, move string) (next string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("library_engine_panic", zap.String("fen", fen), zap.String("move", move), zap.Any("panic", r))
			next, ok, err = "", false, fmt.Errorf("%w: move generator panic: %v", ErrUnavailable, r)
		}
	}()
	opt, ferr := nchess.FEN(fen)
	if ferr != nil {
		return "", false, fmt.Errorf("%w: load position: %v", ErrUnavailable, ferr)
	}
	game := nchess.NewGame(opt)
	if perr := game.PushNotationMove(move, nchess.UCINotation{}, nil); perr != nil {
		return "", false, nil
	}
	return game.FEN(), true, nil
}

// legalMoves lists every legal move of the side to move at fen.
func (l *Library) legalMoves(fen string) (moves []nchess.Move, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("library_engine_panic", zap.String("fen", fen), zap.Any("panic", r))
			moves, err = nil, fmt.Errorf("%w: move generator panic: %v", ErrUnavailable, r)
		}
	}()
	opt, ferr := nchess.FEN(fen)
	if ferr != nil {
		return nil, fmt.Errorf("%w: load position: %v", ErrUnavailable, ferr)
	}
	return nchess.NewGame(opt).ValidMoves(), nil
}

func toLibSquare(sq board.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.Col), nchess.Rank(board.Size-1-sq.Row))
}

func fromLibSquare(sq nchess.Square) board.Square {
	return board.Square{Row: board.Size - 1 - int(sq.Rank()), Col: int(sq.File())}
}

func uciMove(from, to board.Square) string {
	return from.Algebraic() + to.Algebraic()
}
