package pdf

import (
	"bytes"
	"errors"
	"fmt"

	lpdf "github.com/ledongthuc/pdf"
)

// US Letter, used when a page has no MediaBox.
const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
)

// NewEngine returns the default engine backed by github.com/ledongthuc/pdf.
func NewEngine() Engine {
	return ledongthucEngine{}
}

type ledongthucEngine struct{}

func (ledongthucEngine) Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdf: failed to open document: %v", r)
		}
	}()
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, lpdf.ErrInvalidPassword) {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("pdf: failed to open document: %w", err)
	}
	return &ledongthucDocument{r: r}, nil
}

type ledongthucDocument struct {
	r *lpdf.Reader
}

func (d *ledongthucDocument) NumPages() int { return d.r.NumPage() }

func (d *ledongthucDocument) Page(n int) (p Page, err error) {
	if n < 1 || n > d.r.NumPage() {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	// Broken content streams make the library panic.
	defer func() {
		if r := recover(); r != nil {
			p, err = Page{}, fmt.Errorf("pdf: page %d: %v", n, r)
		}
	}()
	pg := d.r.Page(n)
	if pg.V.IsNull() {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	p.Width, p.Height = mediaBox(pg.V)
	for _, t := range pg.Content().Text {
		p.Runs = append(p.Runs, TextRun{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return p, nil
}

// mediaBox returns the page size, following inherited MediaBox entries.
func mediaBox(v lpdf.Value) (float64, float64) {
	for depth := 0; v.Kind() == lpdf.Dict && depth < 32; depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == lpdf.Array && box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

func (d *ledongthucDocument) Info() (out map[string]string) {
	out = make(map[string]string)
	defer func() {
		if recover() != nil {
			out = map[string]string{}
		}
	}()
	info := d.r.Trailer().Key("Info")
	if info.Kind() != lpdf.Dict {
		return out
	}
	for _, key := range info.Keys() {
		if v := info.Key(key); v.Kind() == lpdf.String {
			out[key] = v.Text()
		}
	}
	return out
}

func (d *ledongthucDocument) Outline() (items []OutlineItem) {
	defer func() {
		if recover() != nil {
			items = nil
		}
	}()
	return convertOutline(d.r.Outline().Child)
}

// convertOutline copies bookmark titles. The library does not expose
// destinations, so pages are left for title matching.
func convertOutline(items []lpdf.Outline) []OutlineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]OutlineItem, 0, len(items))
	for _, it := range items {
		out = append(out, OutlineItem{Title: it.Title, Children: convertOutline(it.Child)})
	}
	return out
}
