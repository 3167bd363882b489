package pdf

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// maxRenderSide bounds the canvas so a bad scale cannot exhaust memory.
const maxRenderSide = 8000

// RenderPage draws page n (1-based) of doc: a white canvas of the page size
// times scale with the text runs placed at their positions.
func RenderPage(doc Document, n int, scale float64) (*image.NRGBA, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("pdf: invalid scale %v", scale)
	}
	if n < 1 || n > doc.NumPages() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	page, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	w, h := int(page.Width*scale+0.5), int(page.Height*scale+0.5)
	if w < 1 || h < 1 || w > maxRenderSide || h > maxRenderSide {
		return nil, fmt.Errorf("pdf: page %d renders to %dx%d", n, w, h)
	}

	img := imaging.New(w, h, color.White)
	d := font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	for _, r := range page.Runs {
		x := int(r.X * scale)
		y := int((page.Height - r.Y) * scale)
		if x >= w || y < 0 || y > h+basicfont.Face7x13.Height {
			continue
		}
		d.Dot = fixed.P(x, y)
		d.DrawString(r.S)
	}
	return img, nil
}
