package unified

import (
	"errors"
	"image"
	"time"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/pdf"
)

var (
	ErrSearchDisabled    = errors.New("unified: search is disabled")
	ErrSearchUnsupported = errors.New("unified: search is only available for PDF")
	ErrNotPDF            = errors.New("unified: page rendering is only available for PDF")
)

// UnifiedSection wraps a section of the native book.
type UnifiedSection struct {
	*book.Section
	Format       book.Format `json:"format"`
	Index        int         `json:"index"`
	WordCount    int         `json:"wordCount"`
	ReadingTime  int         `json:"readingTime"`
	ChapterTitle string      `json:"chapterTitle,omitempty"`
}

// Analyze runs the content extractor over the section.
func (s *UnifiedSection) Analyze() (SectionStats, error) {
	return AnalyzeSection(s.Section)
}

// UnifiedBook is the normalized result of a parse. It keeps the loader open
// so sections can load lazily; Close releases it.
type UnifiedBook struct {
	ID          string             `json:"id"`
	Slug        string             `json:"slug"`
	Format      book.Format        `json:"format"`
	Metadata    UnifiedMetadata    `json:"metadata"`
	Sections    []*UnifiedSection  `json:"sections"`
	TOC         []book.TOCItem     `json:"toc,omitempty"`
	PageList    []book.TOCItem     `json:"pageList,omitempty"`
	Dir         book.Direction     `json:"dir"`
	Rendition   book.Rendition     `json:"rendition"`
	Container   book.ContainerInfo `json:"container"`
	Cover       *CoverImage        `json:"cover,omitempty"`
	Images      []ImageInfo        `json:"images,omitempty"`
	TotalPages  int                `json:"totalPages,omitempty"`
	WordCount   int                `json:"wordCount"`
	ReadingTime int                `json:"readingTime"`

	Book *book.Book `json:"-"`

	loader     book.Loader
	doc        pdf.Document
	searchable bool
}

// Close releases the underlying loader. Sections must not be loaded
// afterwards.
func (b *UnifiedBook) Close() error {
	if b.loader == nil {
		return nil
	}
	err := b.loader.Close()
	b.loader = nil
	return err
}

func (b *UnifiedBook) ResolveHref(href string) (book.Destination, error) {
	return b.Book.ResolveHref(href)
}

func (b *UnifiedBook) ResolveCFI(s string) (book.Destination, error) {
	return b.Book.ResolveCFI(s)
}

// Search finds query in the page texts of a PDF book.
func (b *UnifiedBook) Search(query string) ([]pdf.SearchHit, error) {
	if !b.searchable {
		return nil, ErrSearchDisabled
	}
	if b.Format != book.FormatPDF {
		return nil, ErrSearchUnsupported
	}
	return pdf.Search(b.Book, query)
}

// RenderPage draws page n (1-based) of a PDF book.
func (b *UnifiedBook) RenderPage(n int, scale float64) (*image.NRGBA, error) {
	if b.doc == nil {
		return nil, ErrNotPDF
	}
	return pdf.RenderPage(b.doc, n, scale)
}

// Performance describes the cost of one parse. MemoryDelta is the change
// in live heap bytes and may be negative after a collection.
type Performance struct {
	ParseDuration time.Duration `json:"parseDuration"`
	MemoryDelta   int64         `json:"memoryDelta"`
	FileSize      int64         `json:"fileSize"`
}

// ParserResult is always returned by Parse; failures are reported in Error.
type ParserResult struct {
	Success     bool         `json:"success"`
	Book        *UnifiedBook `json:"book,omitempty"`
	Error       *Error       `json:"error,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	Performance Performance  `json:"performance"`
}
