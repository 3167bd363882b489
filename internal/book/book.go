// Package book defines the reading model shared by the EPUB, MOBI and PDF
// parsers: ordered sections, a table of contents, descriptive metadata and
// location addresses that point inside sections.
package book

import (
	"errors"

	"golang.org/x/net/html"

	"github.com/yuanying/bookcore/internal/cfi"
)

var (
	// ErrResourceNotFound is returned by loaders for unknown resource names.
	ErrResourceNotFound = errors.New("book: resource not found")
	// ErrInvalidContainer is returned when a source is not a readable archive
	// or record file.
	ErrInvalidContainer = errors.New("book: invalid container")
	// ErrNoSection is returned when an href or address maps to no section.
	ErrNoSection = errors.New("book: no matching section")
)

// Loader gives random access to named raw resources of a container.
// Results for a name are stable across calls.
type Loader interface {
	LoadText(name string) (string, error)
	LoadBytes(name string) ([]byte, error)
	Size(name string) (int64, error)
	Close() error
}

// Format identifies the source container format.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatMOBI Format = "mobi"
	FormatPDF  Format = "pdf"
)

// Direction is the page progression direction.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Rendition layouts.
const (
	LayoutReflowable   = "reflowable"
	LayoutPrePaginated = "pre-paginated"
)

// Rendition carries presentation hints.
type Rendition struct {
	Layout      string `json:"layout"`
	Flow        string `json:"flow,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	Spread      string `json:"spread,omitempty"`
}

// TOCItem is a node of the table of contents or page list.
type TOCItem struct {
	Label    string    `json:"label"`
	Href     string    `json:"href"`
	Subitems []TOCItem `json:"subitems,omitempty"`
}

// WalkTOC visits items depth first. Top level items have depth 0.
func WalkTOC(items []TOCItem, fn func(item TOCItem, depth int)) {
	var walk func(items []TOCItem, depth int)
	walk = func(items []TOCItem, depth int) {
		for _, it := range items {
			fn(it, depth)
			walk(it.Subitems, depth+1)
		}
	}
	walk(items, 0)
}

// ContainerInfo holds format specific details that do not fit the common
// model.
type ContainerInfo struct {
	Version      string `json:"version,omitempty"`
	Encrypted    bool   `json:"encrypted,omitempty"`
	Compression  string `json:"compression,omitempty"`
	TextEncoding string `json:"textEncoding,omitempty"`
	RecordCount  int    `json:"recordCount,omitempty"`
}

// Destination is the target of an href or a location address.
type Destination struct {
	Index    int
	Section  *Section
	Fragment string
	Node     *html.Node // element matched by Fragment, if resolved
	Path     cfi.Path   // in-section path of a location address
	Offset   int        // character offset of the last step

	// Range addresses also carry their end point. The end is taken to lie
	// in the same section as the start.
	Range     bool
	EndPath   cfi.Path
	EndOffset int
}

// Navigator resolves references into destinations.
type Navigator interface {
	ResolveHref(href string) (Destination, error)
	ResolveCFI(s string) (Destination, error)
}

// Book is a parsed publication. It is built once by a format parser and not
// modified afterwards.
type Book struct {
	Format    Format        `json:"format"`
	Sections  []*Section    `json:"sections"`
	Dir       Direction     `json:"dir"`
	TOC       []TOCItem     `json:"toc"`
	PageList  []TOCItem     `json:"pageList,omitempty"`
	Metadata  Metadata      `json:"metadata"`
	Rendition Rendition     `json:"rendition"`
	Cover     *Resource     `json:"cover,omitempty"`
	Images    []*Resource   `json:"images,omitempty"`
	PageCount int           `json:"pageCount,omitempty"`
	Container ContainerInfo `json:"container"`
	Warnings  []string      `json:"warnings,omitempty"`

	Navigator Navigator `json:"-"`
}

// ResolveHref maps an href to a destination.
func (b *Book) ResolveHref(href string) (Destination, error) {
	if b.Navigator == nil {
		return Destination{}, ErrNoSection
	}
	return b.Navigator.ResolveHref(href)
}

// ResolveCFI maps a location address to a destination.
func (b *Book) ResolveCFI(s string) (Destination, error) {
	if b.Navigator == nil {
		return Destination{}, ErrNoSection
	}
	return b.Navigator.ResolveCFI(s)
}

// SectionIndex returns the index of the section with the given id or href,
// or -1.
func (b *Book) SectionIndex(ref string) int {
	for i, s := range b.Sections {
		if s.ID == ref || s.Href == ref {
			return i
		}
	}
	return -1
}
