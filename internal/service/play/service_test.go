package play

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/checkora/internal/archive"
	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/domain"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/game"
	"github.com/park285/checkora/internal/msgcat"
	"github.com/park285/checkora/internal/render"
	"github.com/park285/checkora/internal/session"
)

const sid = "3f0c6a9e-6a51-4bd8-8a8e-3a1f5d2b9c10"

var (
	e2 = board.Square{Row: 6, Col: 4}
	e4 = board.Square{Row: 4, Col: 4}
	e5 = board.Square{Row: 3, Col: 4}
	e7 = board.Square{Row: 1, Col: 4}
)

type countingEngine struct {
	engine.Client
	moveCalls int
	onMoves   func()
}

func (c *countingEngine) QueryMoves(ctx context.Context, wire string, turn board.Color, from board.Square) ([]engine.Destination, error) {
	c.moveCalls++
	if c.onMoves != nil {
		c.onMoves()
	}
	return c.Client.QueryMoves(ctx, wire, turn, from)
}

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time { return f.t }

type fixture struct {
	svc    *Service
	store  session.Store
	repo   archive.Repository
	engine *countingEngine
	clock  *fakeTime
}

func newFixture(t *testing.T, store session.Store) *fixture {
	t.Helper()
	if store == nil {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		store = session.NewRedisStore(rdb, time.Hour)
	}
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	ft := &fakeTime{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eng := &countingEngine{Client: engine.NewLibrary(nil)}
	repo := archive.NewMemoryRepository()
	svc, err := NewService(eng, store, repo, render.NewPNGRenderer(), catalog, Config{
		StartingSeconds:   600,
		PersistQueryCache: true,
		Now:               ft.now,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, store: store, repo: repo, engine: eng, clock: ft}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	repo := archive.NewMemoryRepository()
	renderer := render.NewPNGRenderer()
	eng := engine.NewLibrary(nil)

	if _, err := NewService(nil, store, repo, renderer, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := NewService(eng, nil, repo, renderer, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewService(eng, store, nil, renderer, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error without archive")
	}
	if _, err := NewService(eng, store, repo, nil, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error without renderer")
	}
	svc, err := NewService(eng, store, repo, renderer, nil, Config{HistoryLimit: 500}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.cfg.HistoryLimit != defaultHistoryLimit {
		t.Fatalf("expected history limit clamp, got %d", svc.cfg.HistoryLimit)
	}
}

func TestMoveWithoutSessionStartsFreshGame(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Move(ctx, sid, e2, e4, "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !out.Valid || out.Message != "e2 -> e4" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.State.Turn != board.Black || len(out.State.History) != 1 {
		t.Fatalf("unexpected state after move: %+v", out.State)
	}
	if _, err := f.store.Load(ctx, sid); err != nil {
		t.Fatalf("expected session to be stored: %v", err)
	}
}

func TestIllegalMoveLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	before, err := f.store.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err := f.svc.Move(ctx, sid, e2, e5, "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if out.Valid || out.Message != "Illegal move." {
		t.Fatalf("expected illegal move, got %+v", out)
	}
	after, err := f.store.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("illegal move must not rewrite the session")
	}
}

func TestMoveRejectsOutOfRangeSquares(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Move(context.Background(), sid, board.Square{Row: 8, Col: 0}, e4, "")
	if !errors.Is(err, game.ErrInvalidSquare) {
		t.Fatalf("expected ErrInvalidSquare, got %v", err)
	}
}

func TestLegalMovesPersistsQueryCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}

	dests, err := f.svc.LegalMoves(ctx, sid, e2)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if len(dests) != 2 {
		t.Fatalf("expected two pawn destinations, got %+v", dests)
	}
	if _, err := f.svc.LegalMoves(ctx, sid, e2); err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if f.engine.moveCalls != 1 {
		t.Fatalf("expected cached answer on second query, engine called %d times", f.engine.moveCalls)
	}

	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); err != nil {
		t.Fatalf("Move: %v", err)
	}
	raw, err := f.store.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g, err := session.Decode(raw, game.Env{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Cache.Len() != 0 {
		t.Fatalf("expected cache to be cleared after a move, has %d entries", g.Cache.Len())
	}
}

func TestLegalMovesWithoutSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	dests, err := f.svc.LegalMoves(ctx, sid, e2)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if len(dests) != 0 {
		t.Fatalf("expected no moves without a session, got %+v", dests)
	}
	if _, err := f.store.Load(ctx, sid); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("query must not create a session, got %v", err)
	}
}

func TestLegalMovesOpponentPieceSkipsEngine(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	dests, err := f.svc.LegalMoves(ctx, sid, e7)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if len(dests) != 0 || f.engine.moveCalls != 0 {
		t.Fatalf("expected empty answer without engine call, got %+v (%d calls)", dests, f.engine.moveCalls)
	}
}

func TestFlaggedMoveEndsAndArchivesGame(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	f.clock.t = f.clock.t.Add(601 * time.Second)

	out, err := f.svc.Move(ctx, sid, e2, e4, "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if out.Valid || !out.GameOver || out.Message != "White ran out of time" {
		t.Fatalf("expected flagged outcome, got %+v", out)
	}
	if out.State.Winner() != board.Black {
		t.Fatalf("expected black to win, got %q", out.State.Winner())
	}

	games, err := f.svc.RecentGames(ctx, sid)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 1 || games[0].Result != domain.ResultBlack || games[0].Method != domain.MethodTimeout {
		t.Fatalf("expected archived timeout loss, got %+v", games)
	}

	next, err := f.svc.Move(ctx, sid, e7, e5, "")
	if err != nil {
		t.Fatalf("Move after flag: %v", err)
	}
	if next.Valid || !next.GameOver || next.Message != "Game over: White ran out of time." {
		t.Fatalf("expected game over, got %+v", next)
	}
}

func TestNewGameArchivesAbandonedGame(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); err != nil {
		t.Fatalf("Move: %v", err)
	}
	view, msg, err := f.svc.NewGame(ctx, sid)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if msg != "New game started. White to move." || view.Turn != board.White || len(view.History) != 0 {
		t.Fatalf("unexpected new game: %q %+v", msg, view)
	}
	games, err := f.svc.RecentGames(ctx, sid)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 1 || games[0].Result != domain.ResultUnfinished || games[0].Method != domain.MethodReset {
		t.Fatalf("expected abandoned game record, got %+v", games)
	}
	if games[0].PGN != "1. e2 -> e4 *" {
		t.Fatalf("unexpected move text %q", games[0].PGN)
	}
}

func TestNewGameReplacesCorruptSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.store.Save(ctx, sid, []byte(`{"board":"nope"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); !errors.Is(err, session.ErrCorruptSnapshot) {
		t.Fatalf("expected corrupt snapshot error, got %v", err)
	}
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame over corrupt session: %v", err)
	}
	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); err != nil {
		t.Fatalf("Move after reset: %v", err)
	}
}

func TestMoveReportsConcurrentWrite(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	f := newFixture(t, store)
	ctx := context.Background()
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	raw, err := store.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.engine.onMoves = func() {
		_ = store.Save(ctx, sid, raw)
	}
	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPause(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, _, err := f.svc.Pause(ctx, sid, true); !errors.Is(err, ErrNoGame) {
		t.Fatalf("expected ErrNoGame, got %v", err)
	}
	if _, _, err := f.svc.NewGame(ctx, sid); err != nil {
		t.Fatalf("NewGame: %v", err)
	}

	f.clock.t = f.clock.t.Add(30 * time.Second)
	view, msg, err := f.svc.Pause(ctx, sid, true)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !view.Paused || view.WhiteTime != 570 || msg != "Clock paused." {
		t.Fatalf("unexpected paused view: %q %+v", msg, view)
	}

	f.clock.t = f.clock.t.Add(time.Hour)
	view, msg, err = f.svc.Pause(ctx, sid, false)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if view.Paused || view.WhiteTime != 570 || msg != "Clock resumed." {
		t.Fatalf("unexpected resumed view: %q %+v", msg, view)
	}
}

func TestIsPromotionAndState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	promo, err := f.svc.IsPromotion(ctx, sid, e2, e4)
	if err != nil || promo {
		t.Fatalf("expected plain pawn push, got %v %v", promo, err)
	}
	if _, err := f.svc.IsPromotion(ctx, sid, e2, board.Square{Row: -1, Col: 0}); !errors.Is(err, game.ErrInvalidSquare) {
		t.Fatalf("expected ErrInvalidSquare, got %v", err)
	}

	view, err := f.svc.State(ctx, sid)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if view.Turn != board.White || view.WhiteTime != 600 || view.GameOver() {
		t.Fatalf("unexpected fresh state: %+v", view)
	}
}

func TestBoardPNG(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Move(ctx, sid, e2, e4, ""); err != nil {
		t.Fatalf("Move: %v", err)
	}
	raw, err := f.svc.BoardPNG(ctx, sid)
	if err != nil {
		t.Fatalf("BoardPNG: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("expected png output")
	}
}
