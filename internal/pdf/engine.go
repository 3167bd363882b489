// Package pdf reads PDF documents through a pluggable Engine. Every page
// becomes one plain-text section.
package pdf

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrEncrypted   = errors.New("pdf: document is encrypted")
	ErrInvalidPage = errors.New("pdf: page out of range")
)

// Engine opens PDF documents. It is built once by the caller and shared by
// parses; implementations must not keep per-document global state.
type Engine interface {
	Open(data []byte) (Document, error)
}

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	NumPages() int
	Page(n int) (Page, error)
	// Info returns the string entries of the Info dictionary.
	Info() map[string]string
	Outline() []OutlineItem
}

// OutlineItem is a bookmark. Page is 0 when the destination is unknown.
type OutlineItem struct {
	Title    string
	Page     int
	Children []OutlineItem
}

// TextRun is a piece of text placed on a page. Coordinates are in points
// with the origin at the bottom left.
type TextRun struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Page is the geometry and text of one page.
type Page struct {
	Width, Height float64
	Runs          []TextRun
}

// Text joins the runs of the page in content order. A vertical move starts
// a new line; a horizontal gap inserts a space.
func (p Page) Text() string {
	var sb strings.Builder
	var prev TextRun
	for i, r := range p.Runs {
		if i > 0 {
			size := math.Max(prev.FontSize, 1)
			switch {
			case math.Abs(r.Y-prev.Y) > size*0.5:
				sb.WriteByte('\n')
			case r.X-(prev.X+prev.W) > size*0.2 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(r.S, " "):
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.S)
		prev = r
	}
	return sb.String()
}
