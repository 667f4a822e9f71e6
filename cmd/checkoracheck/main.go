package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/checkora/internal/apiclient"
	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/engine"
)

func main() {
	enginePath := os.Getenv("ENGINE_PATH")
	baseURL := os.Getenv("CHECKORA_BASE_URL")
	cookie := os.Getenv("SESSION_COOKIE")

	if enginePath == "" && baseURL == "" {
		log.Fatal("ENGINE_PATH or CHECKORA_BASE_URL is required")
	}

	failed := false
	if enginePath != "" {
		if err := checkEngine(enginePath); err != nil {
			log.Printf("engine check failed: %v", err)
			failed = true
		}
	} else {
		log.Println("ENGINE_PATH not set; skipping engine check")
	}

	if baseURL != "" {
		if err := checkServer(baseURL, cookie); err != nil {
			log.Printf("server check failed: %v", err)
			failed = true
		}
	} else {
		log.Println("CHECKORA_BASE_URL not set; skipping server check")
	}

	if failed {
		os.Exit(1)
	}
}

func checkEngine(path string) error {
	proc, err := engine.NewProcess(engine.ProcessConfig{Path: path, Timeout: 5 * time.Second, MaxProcs: 1})
	if err != nil {
		return err
	}
	start := board.Initial()
	wire := start.Wire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e2 := board.Square{Row: 6, Col: 4}
	want, err := engine.NewLibrary(nil).QueryMoves(ctx, wire, board.White, e2)
	if err != nil {
		return fmt.Errorf("reference MOVES: %w", err)
	}
	dests, err := proc.QueryMoves(ctx, wire, board.White, e2)
	if err != nil {
		return fmt.Errorf("MOVES: %w", explainMoves(err, len(want)))
	}
	log.Printf("MOVES ok: e2 -> %d destinations (%s)", len(dests), engine.FormatMovesReply(dests))

	promo := board.Board{}
	promo.Set(board.Square{Row: 1, Col: 0}, 'P')
	promo.Set(board.Square{Row: 7, Col: 4}, 'K')
	promo.Set(board.Square{Row: 0, Col: 4}, 'k')
	next, err := proc.QueryPromotion(ctx, promo.Wire(), board.White, board.Square{Row: 1, Col: 0}, board.Square{Row: 0, Col: 0}, board.PromoteQueen)
	if err != nil {
		return fmt.Errorf("PROMOTE: %w", err)
	}
	log.Printf("PROMOTE ok: a7a8=Q -> %s", next)
	return nil
}

// explainMoves names a reply-format mismatch when the engine answered with the
// right number of candidates but a different number of values per candidate.
func explainMoves(err error, want int) error {
	var arity *engine.ArityError
	if !errors.As(err, &arity) || want <= 0 || arity.Values%want != 0 {
		return err
	}
	return fmt.Errorf("engine sends %d values per candidate, expected %d (row col capture promotion): %w",
		arity.Values/want, arity.PerCandidate(), err)
}

func checkServer(baseURL, cookie string) error {
	client := apiclient.NewClient(baseURL, apiclient.WithTimeout(8*time.Second), apiclient.WithCookieName(cookie))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("/healthz: %w", err)
	}
	log.Printf("/healthz ok: status=%s engine=%s", health.Status, health.Engine)

	if _, err := client.NewGame(ctx); err != nil {
		return fmt.Errorf("/api/new-game: %w", err)
	}
	dests, err := client.ValidMoves(ctx, 6, 4)
	if err != nil {
		return fmt.Errorf("/api/valid-moves: %w", err)
	}
	mv, err := client.Move(ctx, 6, 4, 4, 4, "")
	if err != nil {
		return fmt.Errorf("/api/move: %w", err)
	}
	fmt.Printf("session=%s e2 destinations=%d move valid=%t message=%q\n", client.SessionID(), len(dests), mv.Valid, mv.Message)
	return nil
}
