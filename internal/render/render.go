package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"

	"github.com/park285/checkora/internal/board"
)

type Highlight struct {
	From board.Square
	To   board.Square
}

type Options struct {
	Highlight *Highlight
	Caption   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, b *board.Board, opts Options) ([]byte, error)
}

const (
	squareSize   = 56
	boardSize    = squareSize * board.Size
	margin       = 24
	captionSpace = 24
)

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	coordinateColor = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	whiteTextColor  = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	blackTextColor  = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
)

const pieceFontSize = 26

var (
	pieceFontOnce sync.Once
	pieceFont     *truetype.Font
)

// newPieceFace returns a fresh face for piece letters; faces cache glyphs and
// must not be shared between goroutines. Falls back to the bitmap face if the
// embedded TrueType font cannot be parsed.
func newPieceFace() font.Face {
	pieceFontOnce.Do(func() {
		if f, err := truetype.Parse(gobold.TTF); err == nil {
			pieceFont = f
		}
	})
	if pieceFont == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(pieceFont, &truetype.Options{Size: pieceFontSize, DPI: 72, Hinting: font.HintingFull})
}

type pngRenderer struct{}

func NewPNGRenderer() BoardRenderer { return &pngRenderer{} }

func (r *pngRenderer) RenderPNG(ctx context.Context, b *board.Board, opts Options) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := boardSize + margin*2
	height := boardSize + margin*2 + captionSpace
	origin := image.Point{X: margin, Y: margin + captionSpace}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin)
	if opts.Highlight != nil {
		drawOverlay(img, opts.Highlight.From, origin, highlightFill)
		drawOverlay(img, opts.Highlight.To, origin, highlightFill)
	}
	if err := drawPieces(img, b, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin)
	if opts.Caption != "" {
		drawer := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateColor), Face: basicfont.Face7x13}
		drawCenteredText(drawer, opts.Caption, width/2, margin+captionSpace/2)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareRect(sq board.Square, origin image.Point) image.Rectangle {
	x := origin.X + sq.Col*squareSize
	y := origin.Y + sq.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq board.Square) color.Color {
	if (sq.Row+sq.Col)%2 == 0 {
		return lightSquare
	}
	return darkSquare
}

func drawSquares(dst *image.RGBA, origin image.Point) {
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			sq := board.Square{Row: r, Col: c}
			imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawOverlay(dst *image.RGBA, sq board.Square, origin image.Point, clr color.Color) {
	if !sq.Valid() {
		return
	}
	imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst *image.RGBA, b *board.Board, origin image.Point) error {
	face := newPieceFace()
	defer face.Close()
	drawer := &font.Drawer{Dst: dst, Face: face}
	capHeight := face.Metrics().CapHeight.Ceil()
	if capHeight <= 0 {
		capHeight = face.Metrics().Ascent.Ceil()
	}
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			sq := board.Square{Row: r, Col: c}
			p := b.At(sq)
			if p.Empty() {
				continue
			}
			token, err := tokenImage(p.Color(), squareSize)
			if err != nil {
				return err
			}
			rect := squareRect(sq, origin)
			imagedraw.Draw(dst, rect, token, image.Point{}, imagedraw.Over)

			textColor := blackTextColor
			if p.Color() == board.White {
				textColor = whiteTextColor
			}
			drawer.Src = image.NewUniform(textColor)
			center := rect.Min.Add(image.Pt(squareSize/2, squareSize/2))
			drawCenteredText(drawer, string(rune(p.Kind()-('a'-'A'))), center.X, center.Y+capHeight/2)
		}
	}
	return nil
}

func drawCoordinates(dst *image.RGBA, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateColor), Face: basicfont.Face7x13}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < board.Size; i++ {
		rankCenter := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(drawer, strconv.Itoa(board.Size-i), origin.X-margin/2, rankCenter+ascent/2)

		fileCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('a'+i)), fileCenter, origin.Y+boardSize+ascent+4)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Ceil()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
