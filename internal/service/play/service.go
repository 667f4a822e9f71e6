package play

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/checkora/internal/archive"
	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/domain"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/game"
	"github.com/park285/checkora/internal/msgcat"
	"github.com/park285/checkora/internal/render"
	"github.com/park285/checkora/internal/session"
)

var ErrNoGame = errors.New("no game in progress")

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

type Config struct {
	StartingSeconds   int
	PersistQueryCache bool
	HistoryLimit      int
	Now               func() time.Time
}

type Service struct {
	engine   engine.Client
	store    session.Store
	archive  archive.Repository
	renderer render.BoardRenderer
	catalog  *msgcat.Catalog
	cfg      Config
	logger   *zap.Logger
}

// View is the externally visible state of one game.
type View struct {
	Board     board.Board
	Turn      board.Color
	History   []game.HistoryEntry
	Captured  game.Captured
	WhiteTime int
	BlackTime int
	Paused    bool
	Flagged   board.Color
}

func (v *View) GameOver() bool { return v.Flagged != "" }

// Winner is the opponent of the flagged side, or empty while the game runs.
func (v *View) Winner() board.Color {
	if v.Flagged == "" {
		return ""
	}
	return v.Flagged.Opponent()
}

type MoveOutcome struct {
	Valid    bool
	Message  string
	Captured board.Piece
	GameOver bool
	State    *View
}

func NewService(eng engine.Client, store session.Store, repo archive.Repository, renderer render.BoardRenderer, catalog *msgcat.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("game archive is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:   eng,
		store:    store,
		archive:  repo,
		renderer: renderer,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// NewGame replaces whatever game the session held. A replaced game with moves
// on the board is archived as unfinished.
func (s *Service) NewGame(ctx context.Context, sessionID string) (*View, string, error) {
	env := s.env(sessionID)
	var previous, fresh *game.Game
	err := s.store.Update(ctx, sessionID, func(current []byte) ([]byte, error) {
		previous = nil
		if current != nil {
			old, err := session.Decode(current, env)
			if err != nil {
				env.Logger.Warn("discard_corrupt_session", zap.Error(err))
			} else {
				previous = old
			}
		}
		fresh = game.New(env)
		return session.Encode(fresh)
	})
	if err != nil {
		return nil, "", err
	}
	if previous != nil && len(previous.History) > 0 {
		if _, flagged := previous.Outcome(); !flagged {
			s.archiveGame(ctx, sessionID, previous, domain.ResultUnfinished, domain.MethodReset)
		}
	}
	env.Logger.Info("game_started")
	return viewOf(fresh), s.text("game.new", nil, "New game started. White to move."), nil
}

// Move validates and applies one move. Rejected moves leave the session as it
// was; a missing session plays against a fresh game.
func (s *Service) Move(ctx context.Context, sessionID string, from, to board.Square, promotion string) (*MoveOutcome, error) {
	if !from.Valid() || !to.Valid() {
		return nil, game.ErrInvalidSquare
	}
	env := s.env(sessionID)
	var (
		out      *MoveOutcome
		finished *game.Game
	)
	err := s.store.Update(ctx, sessionID, func(current []byte) ([]byte, error) {
		out, finished = nil, nil
		g, err := s.restore(current, env)
		if err != nil {
			return nil, err
		}
		res, err := g.ApplyMove(ctx, from, to, promotion)
		switch {
		case errors.Is(err, game.ErrIllegalMove):
			out = &MoveOutcome{Message: s.text("move.illegal", nil, "Illegal move."), State: viewOf(g)}
			return nil, nil
		case errors.Is(err, game.ErrGameOver):
			side, _ := g.Outcome()
			out = &MoveOutcome{
				Message:  s.text("move.game_over", map[string]any{"Side": side.Title()}, err.Error()),
				GameOver: true,
				State:    viewOf(g),
			}
			return nil, nil
		case err != nil:
			return nil, err
		}
		blob, err := session.Encode(g)
		if err != nil {
			return nil, err
		}
		out = &MoveOutcome{
			Valid:    !res.GameOver(),
			Message:  s.text("move.applied", map[string]any{"Notation": res.Notation}, res.Notation),
			Captured: res.Captured,
			GameOver: res.GameOver(),
			State:    viewOf(g),
		}
		if res.GameOver() {
			out.Message = s.text("clock.flagged", map[string]any{"Side": res.Flagged.Title()}, res.Message)
			finished = g
		}
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	if finished != nil {
		side, _ := finished.Outcome()
		s.archiveGame(ctx, sessionID, finished, archive.ResultFor(side), domain.MethodTimeout)
	}
	return out, nil
}

// LegalMoves answers from the session's cache, asking the engine on a miss.
// Newly learned answers are written back only if the session is unchanged.
func (s *Service) LegalMoves(ctx context.Context, sessionID string, sq board.Square) ([]engine.Destination, error) {
	if !sq.Valid() {
		return nil, game.ErrInvalidSquare
	}
	loaded, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return []engine.Destination{}, nil
	}
	if err != nil {
		return nil, err
	}
	env := s.env(sessionID)
	g, err := session.Decode(loaded, env)
	if err != nil {
		return nil, err
	}
	before := g.Cache.Len()
	dests, err := g.LegalMoves(ctx, sq)
	if err != nil {
		return nil, err
	}
	if s.cfg.PersistQueryCache && g.Cache.Len() > before {
		s.persistCache(ctx, sessionID, loaded, g, env.Logger)
	}
	return dests, nil
}

func (s *Service) persistCache(ctx context.Context, sessionID string, loaded []byte, g *game.Game, logger *zap.Logger) {
	blob, err := session.Encode(g)
	if err != nil {
		logger.Warn("encode_query_cache_failed", zap.Error(err))
		return
	}
	err = s.store.Update(ctx, sessionID, func(current []byte) ([]byte, error) {
		if !bytes.Equal(current, loaded) {
			return nil, nil
		}
		return blob, nil
	})
	if err != nil && !errors.Is(err, session.ErrConflict) {
		logger.Warn("persist_query_cache_failed", zap.Error(err))
	}
}

func (s *Service) IsPromotion(ctx context.Context, sessionID string, from, to board.Square) (bool, error) {
	g, err := s.current(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return g.IsPromotionMove(from, to)
}

// Pause stops or restarts the session clock.
func (s *Service) Pause(ctx context.Context, sessionID string, paused bool) (*View, string, error) {
	env := s.env(sessionID)
	var view *View
	err := s.store.Update(ctx, sessionID, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrNoGame
		}
		g, err := session.Decode(current, env)
		if err != nil {
			return nil, err
		}
		g.Pause(paused)
		view = viewOf(g)
		return session.Encode(g)
	})
	if err != nil {
		return nil, "", err
	}
	if paused {
		return view, s.text("clock.paused", nil, "Clock paused."), nil
	}
	return view, s.text("clock.resumed", nil, "Clock resumed."), nil
}

// State returns the session's game, or a fresh one that is not persisted.
func (s *Service) State(ctx context.Context, sessionID string) (*View, error) {
	g, err := s.current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(g), nil
}

func (s *Service) BoardPNG(ctx context.Context, sessionID string) ([]byte, error) {
	g, err := s.current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	opts := render.Options{Caption: g.Turn.Title() + " to move"}
	if side, flagged := g.Outcome(); flagged {
		opts.Caption = s.text("clock.flagged", map[string]any{"Side": side.Title()}, side.Title()+" ran out of time")
	}
	if n := len(g.History); n > 0 {
		last := g.History[n-1]
		opts.Highlight = &render.Highlight{
			From: board.Square{Row: last.From[0], Col: last.From[1]},
			To:   board.Square{Row: last.To[0], Col: last.To[1]},
		}
	}
	return s.renderer.RenderPNG(ctx, &g.Board, opts)
}

func (s *Service) RecentGames(ctx context.Context, sessionID string) ([]*domain.GameRecord, error) {
	return s.archive.Recent(ctx, session.HashID(sessionID), s.cfg.HistoryLimit)
}

// Text renders a catalog message for callers outside the service.
func (s *Service) Text(key string, data any, fallback string) string {
	return s.text(key, data, fallback)
}

func (s *Service) current(ctx context.Context, sessionID string) (*game.Game, error) {
	env := s.env(sessionID)
	raw, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return game.New(env), nil
	}
	if err != nil {
		return nil, err
	}
	return session.Decode(raw, env)
}

func (s *Service) restore(current []byte, env game.Env) (*game.Game, error) {
	if current == nil {
		return game.New(env), nil
	}
	return session.Decode(current, env)
}

func (s *Service) archiveGame(ctx context.Context, sessionID string, g *game.Game, result, method string) {
	rec := archive.NewRecord(session.HashID(sessionID), g, result, method, s.cfg.Now())
	id, err := s.archive.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, archive.ErrDuplicateGame) {
			return
		}
		s.logger.Warn("archive_game_failed",
			zap.String("game_id", rec.GameID),
			zap.String("method", method),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("game_archived",
		zap.Int64("id", id),
		zap.String("game_id", rec.GameID),
		zap.String("result", result),
		zap.String("method", method),
		zap.Int("moves", len(rec.Moves)),
	)
}

func (s *Service) env(sessionID string) game.Env {
	return game.Env{
		Engine:          s.engine,
		Now:             s.cfg.Now,
		Logger:          s.logger.With(zap.String("session", shortHash(sessionID))),
		StartingSeconds: s.cfg.StartingSeconds,
	}
}

func (s *Service) text(key string, data any, fallback string) string {
	return s.catalog.Text(key, data, fallback)
}

func shortHash(sessionID string) string {
	return session.HashID(sessionID)[:12]
}

func viewOf(g *game.Game) *View {
	flagged, _ := g.Outcome()
	history := append([]game.HistoryEntry(nil), g.History...)
	return &View{
		Board:   g.Board,
		Turn:    g.Turn,
		History: history,
		Captured: game.Captured{
			White: append([]string{}, g.Captured.White...),
			Black: append([]string{}, g.Captured.Black...),
		},
		WhiteTime: g.Clock.Remaining(board.White),
		BlackTime: g.Clock.Remaining(board.Black),
		Paused:    g.Clock.Paused,
		Flagged:   flagged,
	}
}
