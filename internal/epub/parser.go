package epub

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/cfi"
)

const containerPath = "META-INF/container.xml"

// Parse builds a book from an opened archive. The reader must stay open for
// as long as sections are loaded.
func Parse(r *Reader, log *zap.Logger) (*book.Book, error) {
	if log == nil {
		log = zap.NewNop()
	}
	warn := book.NewWarnings(log)
	for _, w := range r.Warnings() {
		warn.Addf("%s", w)
	}

	fontObfuscation, err := checkDRM(r)
	if err != nil {
		return nil, err
	}

	data, err := r.LoadBytes(containerPath)
	if err != nil {
		if errors.Is(err, book.ErrResourceNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}
	opfPath, err := parseContainer(data)
	if err != nil {
		return nil, err
	}
	content, err := r.LoadBytes(opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, opfPath)
	}
	pkg, err := ParsePackage(content, opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	log.Debug("Package parsed",
		zap.String("path", opfPath),
		zap.String("version", pkg.Version),
		zap.Int("manifest", len(pkg.Manifest)),
		zap.Int("spine", len(pkg.Spine)))

	b := &book.Book{
		Format:    book.FormatEPUB,
		Dir:       pkg.Direction,
		Metadata:  pkg.Metadata,
		Rendition: pkg.Rendition,
		Container: book.ContainerInfo{Version: pkg.Version, Encrypted: fontObfuscation},
	}
	nav := &navigator{book: b, bySpine: make(map[int]int), idrefs: make(map[int]string), log: log}

	for i, ref := range pkg.Spine {
		item, ok := pkg.Manifest[ref.IDRef]
		if !ok {
			warn.Addf("spine item %q not found in manifest", ref.IDRef)
			continue
		}
		size, err := r.Size(item.Href)
		if err != nil {
			warn.Addf("spine item %q: %v", ref.IDRef, err)
			continue
		}
		href := item.Href
		s := book.NewSection(href, func() (string, error) { return r.LoadText(href) })
		s.MediaType = item.MediaType
		s.Linear = ref.Linear
		s.Size = size
		s.CFI = book.SectionCFI(i, ref.IDRef)

		nav.bySpine[i] = len(b.Sections)
		nav.idrefs[i] = ref.IDRef
		b.Sections = append(b.Sections, s)
	}

	b.TOC, b.PageList = loadTOC(r, pkg, warn)

	if c := pkg.DetectCover(); c != nil && r.Has(c.Href) {
		log.Debug("Cover detected", zap.String("href", c.Href), zap.String("method", c.DetectionMethod))
		b.Cover = resource(r, c.Href, c.MediaType)
	}
	for _, img := range pkg.Images() {
		if r.Has(img.Href) {
			b.Images = append(b.Images, resource(r, img.Href, img.MediaType))
		}
	}

	b.Warnings = warn.List()
	b.Navigator = nav
	return b, nil
}

func resource(r *Reader, href, mediaType string) *book.Resource {
	return book.NewResource(href, mediaType, func() ([]byte, error) { return r.LoadBytes(href) })
}

// loadTOC prefers the legacy NCX and falls back to the navigation document.
func loadTOC(r *Reader, pkg *Package, warn *book.Warnings) (toc, pageList []book.TOCItem) {
	if pkg.NCXPath != "" {
		data, err := r.LoadBytes(pkg.NCXPath)
		if err == nil {
			toc, pageList, err = parseNCX(data, pkg.NCXPath)
		}
		if err != nil {
			warn.Addf("unable to use NCX %s: %v", pkg.NCXPath, err)
		}
		if len(toc) > 0 {
			return toc, pageList
		}
	}
	if pkg.NavPath != "" {
		data, err := r.LoadBytes(pkg.NavPath)
		if err == nil {
			var navPages []book.TOCItem
			toc, navPages, err = parseNavDocument(data, pkg.NavPath)
			if len(pageList) == 0 {
				pageList = navPages
			}
		}
		if err != nil {
			warn.Addf("unable to use navigation document %s: %v", pkg.NavPath, err)
		}
	}
	return toc, pageList
}

// navigator resolves hrefs and location addresses against the spine.
type navigator struct {
	book    *book.Book
	bySpine map[int]int // spine position -> section index
	idrefs  map[int]string
	log     *zap.Logger
}

func (n *navigator) ResolveHref(href string) (book.Destination, error) {
	p, frag := splitFragment(href)
	p = normalizePath(p)
	i := n.book.SectionIndex(p)
	if i < 0 {
		for j, s := range n.book.Sections {
			if strings.EqualFold(s.Href, p) {
				i = j
				break
			}
		}
	}
	if i < 0 {
		return book.Destination{}, fmt.Errorf("%w: %q", book.ErrNoSection, href)
	}

	dest := book.Destination{Index: i, Section: n.book.Sections[i], Fragment: frag}
	if frag != "" {
		doc, err := dest.Section.CreateDocument()
		if err != nil {
			return dest, err
		}
		dest.Node = findFragment(doc, frag)
	}
	return dest, nil
}

func (n *navigator) ResolveCFI(s string) (book.Destination, error) {
	c, err := cfi.Parse(s)
	if err != nil {
		return book.Destination{}, err
	}
	pos, step, err := book.SpinePosition(c)
	if err != nil {
		return book.Destination{}, err
	}
	i, ok := n.bySpine[pos]
	if !ok {
		return book.Destination{}, fmt.Errorf("%w: spine position %d", book.ErrNoSection, pos)
	}
	if step.HasAssertion && step.Assertion != n.idrefs[pos] {
		n.log.Debug("Spine assertion mismatch, using index",
			zap.String("assertion", step.Assertion), zap.String("idref", n.idrefs[pos]))
	}

	dest := book.Destination{Index: i, Section: n.book.Sections[i]}
	dest.ApplyPath(c)
	if dest.Path != nil {
		doc, err := dest.Section.CreateDocument()
		if err != nil {
			return dest, err
		}
		if pt, ok := cfi.ResolvePath(documentRoot(doc), dest.Path, nil); ok {
			dest.Node = pt.Node
		}
	}
	return dest, nil
}
