package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/checkora/internal/board"
)

const tokenSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">
<circle cx="50" cy="53" r="38" style="fill:#000000;fill-opacity:0.25"/>
<circle cx="50" cy="50" r="38" style="fill:%s;stroke:%s;stroke-width:5"/>
<circle cx="50" cy="50" r="29" style="fill:none;stroke:%s;stroke-width:2"/>
</svg>`

type tokenKey struct {
	color board.Color
	size  int
}

var (
	tokenCache   = map[tokenKey]image.Image{}
	tokenCacheMu sync.RWMutex
)

func tokenColors(c board.Color) (fill, stroke, ring string) {
	if c == board.White {
		return "#f7f3ea", "#2b2b2b", "#b9b1a0"
	}
	return "#26262b", "#0d0d0d", "#6b6b75"
}

// tokenImage rasterizes the disc drawn under every piece letter.
func tokenImage(c board.Color, size int) (image.Image, error) {
	key := tokenKey{color: c, size: size}

	tokenCacheMu.RLock()
	if img, ok := tokenCache[key]; ok {
		tokenCacheMu.RUnlock()
		return img, nil
	}
	tokenCacheMu.RUnlock()

	fill, stroke, ring := tokenColors(c)
	data := []byte(fmt.Sprintf(tokenSVG, fill, stroke, ring))
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse token svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	tokenCacheMu.Lock()
	tokenCache[key] = img
	tokenCacheMu.Unlock()
	return img, nil
}
