package pdf

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/cfi"
)

// OpenDocument opens the blob held by l with engine.
func OpenDocument(l *Loader, engine Engine) (Document, error) {
	if engine == nil {
		return nil, errors.New("pdf: no engine")
	}
	doc, err := engine.Open(l.Bytes())
	if err != nil {
		if errors.Is(err, ErrEncrypted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", book.ErrInvalidContainer, err)
	}
	return doc, nil
}

// PageID returns the section id of page n (1-based).
func PageID(n int) string {
	return "page-" + strconv.Itoa(n)
}

// Parse builds a book with one plain-text section per page. Page text is
// extracted once here; outline matching and section sizes need it.
func Parse(l *Loader, doc Document, log *zap.Logger) (*book.Book, error) {
	if log == nil {
		log = zap.NewNop()
	}
	warn := book.NewWarnings(log)

	n := doc.NumPages()
	b := &book.Book{
		Format:    book.FormatPDF,
		Dir:       book.LTR,
		Rendition: book.Rendition{Layout: book.LayoutPrePaginated},
		PageCount: n,
		Container: book.ContainerInfo{Version: l.Version()},
		Metadata:  infoMetadata(doc.Info()),
	}

	texts := make([]string, n)
	for i := range n {
		page, err := doc.Page(i + 1)
		if err != nil {
			warn.Addf("page %d: %v", i+1, err)
		} else {
			texts[i] = page.Text()
		}
		text := texts[i]
		id := PageID(i + 1)
		s := book.NewSection(id, func() (string, error) { return text, nil })
		s.MediaType = book.MediaTypePlainText
		s.Size = int64(len(text))
		s.CFI = book.SectionCFI(i, id)
		b.Sections = append(b.Sections, s)
	}
	log.Debug("Pages extracted", zap.Int("pages", n), zap.String("version", b.Container.Version))

	if outline := doc.Outline(); len(outline) > 0 && n > 0 {
		m := outlineMatcher{texts: texts, prev: 1}
		b.TOC = m.convert(outline)
	}
	if len(b.TOC) == 0 {
		for i := range n {
			b.TOC = append(b.TOC, book.TOCItem{Label: fmt.Sprintf("Page %d", i+1), Href: PageID(i + 1)})
		}
	}

	b.Warnings = warn.List()
	b.Navigator = navigator{book: b, texts: texts}
	return b, nil
}

// infoMetadata maps the Info dictionary. Unmapped keys are kept as meta
// pairs in natural key order.
func infoMetadata(info map[string]string) book.Metadata {
	var md book.Metadata
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))

	for _, k := range keys {
		v := strings.TrimSpace(info[k])
		if v == "" {
			continue
		}
		switch k {
		case "Title":
			md.Title = book.Scalar(v)
		case "Author":
			md.Creator = book.List(splitList(v, ";&")...)
		case "Subject":
			md.Subject = md.Subject.Append(v)
		case "Keywords":
			for _, kw := range splitList(v, ",;") {
				md.Subject = md.Subject.Append(kw)
			}
		case "CreationDate":
			md.Published = book.Scalar(normalizeDate(v))
		case "ModDate":
			md.Modified = book.Scalar(normalizeDate(v))
		default:
			md.Meta = append(md.Meta, book.MetaEntry{Name: k, Value: v})
		}
	}
	return md
}

func splitList(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// outlineMatcher assigns pages to outline entries that lack a destination:
// the first page at or after the previous match whose text contains the
// title.
type outlineMatcher struct {
	texts []string
	prev  int
}

func (m *outlineMatcher) convert(items []OutlineItem) []book.TOCItem {
	var out []book.TOCItem
	for _, it := range items {
		page := it.Page
		if page < 1 || page > len(m.texts) {
			page = m.find(it.Title)
		}
		m.prev = page
		out = append(out, book.TOCItem{
			Label:    strings.TrimSpace(it.Title),
			Href:     PageID(page),
			Subitems: m.convert(it.Children),
		})
	}
	return out
}

func (m *outlineMatcher) find(title string) int {
	needle := foldSpace(title)
	if needle == "" {
		return m.prev
	}
	for p := m.prev; p <= len(m.texts); p++ {
		if strings.Contains(foldSpace(m.texts[p-1]), needle) {
			return p
		}
	}
	return m.prev
}

func foldSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// navigator resolves page hrefs and addresses with a character offset into
// the page text.
type navigator struct {
	book  *book.Book
	texts []string
}

func (n navigator) ResolveHref(href string) (book.Destination, error) {
	return book.IndexNavigator{Book: n.book}.ResolveHref(href)
}

func (n navigator) ResolveCFI(s string) (book.Destination, error) {
	c, err := cfi.Parse(s)
	if err != nil {
		return book.Destination{}, err
	}
	i, err := book.SectionIndexFromCFI(c, len(n.book.Sections))
	if err != nil {
		return book.Destination{}, err
	}
	dest := book.Destination{Index: i, Section: n.book.Sections[i]}
	dest.ApplyPath(c)
	limit := utf8.RuneCountInString(n.texts[i])
	dest.Offset = min(dest.Offset, limit)
	dest.EndOffset = min(dest.EndOffset, limit)
	return dest, nil
}
