// Package unified detects the format of an ebook, runs the matching format
// parser and normalizes the result into a UnifiedBook. Parse never panics
// or returns an error; every failure is reported in the ParserResult.
package unified

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/epub"
	"github.com/yuanying/bookcore/internal/mobi"
	"github.com/yuanying/bookcore/internal/pdf"
)

// Parser turns ebook bytes into UnifiedBooks. A Parser may be shared by
// concurrent parses; the PDF engine must allow that.
type Parser struct {
	Options Options

	log    *zap.Logger
	engine pdf.Engine
}

// NewParser returns a parser. A nil engine selects pdf.NewEngine.
func NewParser(opts Options, engine pdf.Engine, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	if engine == nil {
		engine = pdf.NewEngine()
	}
	return &Parser{Options: opts, log: log, engine: engine}
}

// ParseFile reads and parses the file at path. The size ceiling is checked
// before the file is read.
func (p *Parser) ParseFile(path string, format book.Format) *ParserResult {
	fi, err := os.Stat(path)
	if err != nil {
		return &ParserResult{Error: newError(CodeUnknown, err.Error(), err)}
	}
	if res := p.gate(path, format, fi.Size()); res != nil {
		return res
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &ParserResult{Error: newError(CodeUnknown, err.Error(), err)}
	}
	return p.Parse(data, path, format)
}

// gate applies format detection and the validation checks that need only
// the size of the input.
func (p *Parser) gate(name string, format book.Format, size int64) *ParserResult {
	fail := func(e *Error) *ParserResult {
		return &ParserResult{Error: e, Performance: Performance{FileSize: size}}
	}
	if _, e := resolveFormat(name, format); e != nil {
		return fail(e)
	}
	if size == 0 {
		return fail(newError(CodeCorruptedFile, "File is empty", nil))
	}
	if limit := p.Options.sizeLimit(); limit > 0 && size > limit {
		return fail(newError(CodeMemoryLimitExceeded, "File too large",
			fmt.Errorf("%d bytes exceeds the %d MB limit", size, p.Options.MaxMemoryUsage)))
	}
	return nil
}

// Parse parses data. name is used for format detection unless format is
// set. On success the caller owns the returned book and must Close it.
func (p *Parser) Parse(data []byte, name string, format book.Format) (res *ParserResult) {
	if res := p.gate(name, format, int64(len(data))); res != nil {
		return res
	}
	format, _ = resolveFormat(name, format)

	start := time.Now()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	res = &ParserResult{}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Parser panic", zap.String("file", name), zap.Any("panic", r))
			res.Success, res.Book = false, nil
			res.Error = newError(CodeUnknown, fmt.Sprintf("internal error: %v", r), fmt.Errorf("panic: %v", r))
		}
		var after runtime.MemStats
		runtime.ReadMemStats(&after)
		res.Performance = Performance{
			ParseDuration: time.Since(start),
			MemoryDelta:   int64(after.HeapAlloc) - int64(before.HeapAlloc),
			FileSize:      int64(len(data)),
		}
	}()

	warn := book.NewWarnings(p.log.With(zap.String("file", name)))
	ub, err := p.parse(data, format, warn)
	res.Warnings = warn.List()
	if err != nil {
		res.Error = classify(err)
		p.log.Debug("Parse failed", zap.String("file", name), zap.String("code", string(res.Error.Code)), zap.Error(err))
		return res
	}
	res.Success, res.Book = true, ub
	return res
}

func (p *Parser) parse(data []byte, format book.Format, warn *book.Warnings) (ub *UnifiedBook, err error) {
	l, err := newLoader(data, format)
	if err != nil {
		return nil, err
	}
	// The loader closes on every failure path, panics included. On success
	// it is handed to the UnifiedBook.
	done := false
	defer func() {
		if !done {
			err = multierr.Append(err, l.Close())
		}
	}()

	b, doc, err := p.parseBook(l)
	if err != nil {
		return nil, err
	}
	for _, w := range b.Warnings {
		warn.Addf("%s", w)
	}
	if len(b.Sections) == 0 {
		return nil, newError(CodeInvalidMetadata, "Book has no sections", nil)
	}
	ub = p.normalize(b, data, warn)
	ub.loader, ub.doc = l, doc
	done = true
	return ub, nil
}

func newLoader(data []byte, format book.Format) (book.Loader, error) {
	switch format {
	case book.FormatEPUB:
		return epub.NewReader(bytes.NewReader(data), int64(len(data)))
	case book.FormatMOBI:
		return mobi.NewLoader(data)
	case book.FormatPDF:
		return pdf.NewLoader(data)
	}
	return nil, newError(CodeUnsupportedFormat, "Unsupported format: "+string(format), nil)
}

// parseBook runs the format parser matching the loader. doc is set for PDF.
func (p *Parser) parseBook(l book.Loader) (*book.Book, pdf.Document, error) {
	switch l := l.(type) {
	case *epub.Reader:
		b, err := epub.Parse(l, p.log)
		return b, nil, err
	case *mobi.Loader:
		b, err := mobi.Parse(l, p.log)
		return b, nil, err
	case *pdf.Loader:
		doc, err := pdf.OpenDocument(l, p.engine)
		if err != nil {
			return nil, nil, err
		}
		b, err := pdf.Parse(l, doc, p.log)
		return b, doc, err
	}
	return nil, nil, fmt.Errorf("unified: no parser for %T", l)
}

func (p *Parser) normalize(b *book.Book, data []byte, warn *book.Warnings) *UnifiedBook {
	opts := p.Options
	ub := &UnifiedBook{
		Format:     b.Format,
		Dir:        b.Dir,
		Rendition:  b.Rendition,
		Container:  b.Container,
		Book:       b,
		searchable: opts.EnableSearch,
	}
	if b.Format == book.FormatPDF {
		ub.TotalPages = b.PageCount
	}

	if opts.ExtractMetadata {
		ub.Metadata = ExtractMetadata(b.Metadata, warn)
	} else {
		ub.Metadata = UnifiedMetadata{Title: clean(b.Metadata.Title.First())}
		if ub.Metadata.Title == "" {
			ub.Metadata.Title = untitled
		}
	}

	titles := chapterTitles(b)
	for i, s := range b.Sections {
		words := estimateWords(s.Size)
		ub.Sections = append(ub.Sections, &UnifiedSection{
			Section:      s,
			Format:       b.Format,
			Index:        i,
			WordCount:    words,
			ReadingTime:  readingMinutes(words),
			ChapterTitle: titles[i],
		})
		ub.WordCount += words
	}
	ub.ReadingTime = readingMinutes(ub.WordCount)

	if opts.GenerateTOC {
		ub.TOC, ub.PageList = b.TOC, b.PageList
	}

	if opts.ExtractImages {
		if b.Cover != nil {
			cover, msg, err := loadCover(b.Cover)
			switch {
			case err != nil:
				warn.Addf("%v", err)
			case msg != "":
				warn.Addf("%s", msg)
			}
			ub.Cover = cover
		}
		for _, img := range b.Images {
			info, err := describeImage(img)
			if err != nil {
				warn.Addf("image %s: %v", img.Href, err)
				continue
			}
			ub.Images = append(ub.Images, info)
		}
	}

	ub.ID = bookID(ub.Metadata, data)
	ub.Slug = slug.Make(ub.Metadata.Title)
	return ub
}

// chapterTitles maps section indexes to the label of the first TOC entry
// that resolves to them.
func chapterTitles(b *book.Book) map[int]string {
	titles := make(map[int]string)
	book.WalkTOC(b.TOC, func(item book.TOCItem, _ int) {
		dest, err := b.ResolveHref(item.Href)
		if err != nil {
			return
		}
		if _, ok := titles[dest.Index]; !ok {
			titles[dest.Index] = clean(item.Label)
		}
	})
	return titles
}

// bookNamespace scopes the name-based book ids.
var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/yuanying/bookcore"))

// bookID is stable for a book: derived from its first identifier, or from
// the file content when it has none.
func bookID(md UnifiedMetadata, data []byte) string {
	if md.ISBN != "" {
		return uuid.NewSHA1(bookNamespace, []byte("isbn:"+md.ISBN)).String()
	}
	if len(md.Identifiers) > 0 {
		return uuid.NewSHA1(bookNamespace, []byte(md.Identifiers[0])).String()
	}
	return uuid.NewSHA1(bookNamespace, data).String()
}
