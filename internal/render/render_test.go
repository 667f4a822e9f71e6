package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/park285/checkora/internal/board"
)

func TestRenderPNGDecodes(t *testing.T) {
	r := NewPNGRenderer()
	b := board.Initial()

	raw, err := r.RenderPNG(context.Background(), &b, Options{
		Highlight: &Highlight{From: board.Square{Row: 6, Col: 4}, To: board.Square{Row: 4, Col: 4}},
		Caption:   "White to move",
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := boardSize + margin*2
	if img.Bounds().Dx() != want {
		t.Fatalf("unexpected width %d, want %d", img.Bounds().Dx(), want)
	}
}

func TestRenderPNGRejectsNilBoard(t *testing.T) {
	if _, err := NewPNGRenderer().RenderPNG(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil board")
	}
}

func TestRenderPNGHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := board.Initial()
	if _, err := NewPNGRenderer().RenderPNG(ctx, &b, Options{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestTokenImageIsCached(t *testing.T) {
	a, err := tokenImage(board.White, 40)
	if err != nil {
		t.Fatalf("tokenImage: %v", err)
	}
	b, err := tokenImage(board.White, 40)
	if err != nil {
		t.Fatalf("tokenImage: %v", err)
	}
	if a != b {
		t.Fatalf("expected cached token image")
	}
	if a.Bounds().Dx() != 40 {
		t.Fatalf("unexpected token size %d", a.Bounds().Dx())
	}
}

func TestRenderPNGConcurrent(t *testing.T) {
	r := NewPNGRenderer()
	b := board.Initial()
	errs := make(chan error, 8)
	for i := 0; i < cap(errs); i++ {
		go func() {
			_, err := r.RenderPNG(context.Background(), &b, Options{Caption: "Black to move"})
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		if err := <-errs; err != nil {
			t.Fatalf("RenderPNG: %v", err)
		}
	}
}

func TestPieceFaceUsesTrueType(t *testing.T) {
	face := newPieceFace()
	defer face.Close()
	if face.Metrics().Height.Ceil() <= 13 {
		t.Fatalf("expected scaled truetype face, got height %d", face.Metrics().Height.Ceil())
	}
}
