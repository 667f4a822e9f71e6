package apiclient

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/checkora/internal/archive"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/httpapi"
	"github.com/park285/checkora/internal/msgcat"
	"github.com/park285/checkora/internal/render"
	"github.com/park285/checkora/internal/service/play"
	"github.com/park285/checkora/internal/session"
)

func serve(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return NewClient("http://checkora.test",
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
		WithTimeout(5*time.Second),
	)
}

func checkoraHandler(t *testing.T) fasthttp.RequestHandler {
	t.Helper()
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	svc, err := play.NewService(
		engine.NewLibrary(nil),
		session.NewMemoryStore(time.Hour),
		archive.NewMemoryRepository(),
		render.NewPNGRenderer(),
		catalog,
		play.Config{StartingSeconds: 600},
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return httpapi.New(svc, httpapi.Config{EngineName: "library"}, nil).Handler()
}

func TestClientPlaysAgainstServer(t *testing.T) {
	c := serve(t, checkoraHandler(t))
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || health.Engine != "library" {
		t.Fatalf("unexpected health %+v", health)
	}

	game, err := c.NewGame(ctx)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if game.GameState == nil || game.CurrentTurn != "white" {
		t.Fatalf("unexpected new game %+v", game)
	}
	sid := c.SessionID()
	if sid == "" {
		t.Fatalf("expected session cookie to be kept")
	}

	dests, err := c.ValidMoves(ctx, 6, 4)
	if err != nil {
		t.Fatalf("ValidMoves: %v", err)
	}
	if len(dests) != 2 {
		t.Fatalf("expected two destinations, got %+v", dests)
	}

	mv, err := c.Move(ctx, 6, 4, 4, 4, "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !mv.Valid || mv.CurrentTurn != "black" {
		t.Fatalf("unexpected move %+v", mv)
	}
	if c.SessionID() != sid {
		t.Fatalf("session id changed mid-game")
	}
}

func TestClientDecodesRejectedMove(t *testing.T) {
	c := serve(t, checkoraHandler(t))
	ctx := context.Background()

	mv, err := c.Move(ctx, 9, 4, 4, 4, "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if mv != nil {
		t.Fatalf("expected no response on error")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"ok","engine":"process"}`)
	})

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Engine != "process" || calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", health, calls.Load())
	}
}

func TestClientDoesNotRetryMoves(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})

	if _, err := c.Move(context.Background(), 6, 4, 4, 4, ""); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("moves must not be retried, got %d calls", calls.Load())
	}
}
