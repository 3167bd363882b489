package epub

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/cfi"
)

func parseEntries(t *testing.T, entries []zipEntry) *book.Book {
	t.Helper()
	b, err := Parse(openEntries(t, entries), nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return b
}

func TestParse_MinimalBook(t *testing.T) {
	const opf = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:language>en</dc:language></metadata>
  <manifest><item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/></manifest>
  <spine><itemref idref="chapter1"/></spine>
</package>`
	b := parseEntries(t, []zipEntry{
		{name: "mimetype", data: []byte(epubMimetype)},
		{name: "META-INF/container.xml", data: []byte(testContainer)},
		{name: "OEBPS/content.opf", data: []byte(opf)},
		{name: "OEBPS/chapter1.xhtml", data: []byte(testChapter1)},
	})
	if b.Format != book.FormatEPUB {
		t.Errorf("Format = %q, want epub", b.Format)
	}
	if len(b.Sections) != 1 {
		t.Fatalf("len(Sections) = %d, want 1", len(b.Sections))
	}
	if !b.Metadata.Title.IsZero() {
		t.Errorf("Title = %q, parsers must not default the title", b.Metadata.Title.First())
	}
	if b.TOC != nil {
		t.Errorf("TOC = %+v, want none", b.TOC)
	}
}

func TestParse_FullBook(t *testing.T) {
	b := parseEntries(t, fullEntries())

	if len(b.Sections) != 3 {
		t.Fatalf("len(Sections) = %d, want 3 (ghost idref skipped)", len(b.Sections))
	}
	s := b.Sections[1]
	if s.Href != "OEBPS/text/chapter2.xhtml" || s.CFI != "/6/6[chapter2]" {
		t.Errorf("section[1] = %s %s, want chapter2 at spine position 2", s.Href, s.CFI)
	}
	if b.Sections[2].Linear {
		t.Error("notes section should be non-linear")
	}
	if b.Dir != book.RTL {
		t.Errorf("Dir = %q, want rtl", b.Dir)
	}
	if len(b.TOC) != 2 || b.TOC[0].Label != "Chapter 1" {
		t.Errorf("TOC = %+v, want NCX entries", b.TOC)
	}
	if len(b.PageList) != 1 {
		t.Errorf("PageList = %+v, want 1 entry", b.PageList)
	}
	if b.Cover == nil || b.Cover.Href != "OEBPS/images/cover.png" {
		t.Fatalf("Cover = %+v", b.Cover)
	}
	data, err := b.Cover.Bytes()
	if err != nil || !bytes.Equal(data, pngStub) {
		t.Fatalf("Cover.Bytes() = %d bytes, %v", len(data), err)
	}
	if len(b.Images) != 1 {
		t.Errorf("len(Images) = %d, want 1", len(b.Images))
	}
	if b.Container.Version != "3.0" {
		t.Errorf("Container.Version = %q", b.Container.Version)
	}

	found := false
	for _, w := range b.Warnings {
		if strings.Contains(w, "ghost") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a warning about the ghost idref", b.Warnings)
	}
}

func TestParse_SectionLoadIdempotent(t *testing.T) {
	b := parseEntries(t, fullEntries())
	first, err := b.Sections[0].Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	second, err := b.Sections[0].Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if first != second || !strings.Contains(first, "Hello, World!") {
		t.Fatalf("Load() = %q then %q", first, second)
	}
}

func TestParse_NavFallback(t *testing.T) {
	entries := replaceEntry(fullEntries(), "OEBPS/toc.ncx", nil)
	b := parseEntries(t, entries)
	if len(b.TOC) != 2 || b.TOC[0].Label != "Nav Chapter 1" {
		t.Fatalf("TOC = %+v, want nav document entries", b.TOC)
	}
	if len(b.PageList) != 1 || b.PageList[0].Label != "7" {
		t.Fatalf("PageList = %+v, want nav page list", b.PageList)
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []zipEntry
		want    error
	}{
		{"no container", replaceEntry(fullEntries(), "META-INF/container.xml", nil), ErrContainerNotFound},
		{"no rootfile", replaceEntry(fullEntries(), "META-INF/container.xml", []byte("<container/>")), ErrOPFPathNotFound},
		{"no package", replaceEntry(fullEntries(), "OEBPS/content.opf", nil), ErrPackageNotFound},
		{"bad package", replaceEntry(fullEntries(), "OEBPS/content.opf", []byte("<package><manifest>")), ErrInvalidPackage},
		{"fairplay", append(fullEntries(), zipEntry{name: "META-INF/sinf.xml", data: []byte("<sinf/>")}), ErrDRMProtected},
		{"adept", append(fullEntries(), zipEntry{name: "META-INF/encryption.xml", data: []byte(`<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#aes128-cbc"/></EncryptedData>
</encryption>`)}), ErrDRMProtected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(openEntries(t, tt.entries), nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_FontObfuscationIsNotDRM(t *testing.T) {
	entries := append(fullEntries(), zipEntry{name: "META-INF/encryption.xml", data: []byte(`<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><EncryptionMethod Algorithm="http://www.idpf.org/2008/embedding"/></EncryptedData>
</encryption>`)})
	b := parseEntries(t, entries)
	if !b.Container.Encrypted {
		t.Fatal("Container.Encrypted = false, want true for obfuscated fonts")
	}
}

func TestNavigator_ResolveHref(t *testing.T) {
	b := parseEntries(t, fullEntries())

	dest, err := b.ResolveHref("OEBPS/text/chapter1.xhtml#s11")
	if err != nil {
		t.Fatalf("ResolveHref() error: %v", err)
	}
	if dest.Index != 0 || dest.Node == nil || dest.Node.Data != "p" {
		t.Fatalf("ResolveHref() = index %d node %v, want p#s11 in section 0", dest.Index, dest.Node)
	}

	dest, err = b.ResolveHref("OEBPS/text/chapter1.xhtml#legacy")
	if err != nil || dest.Node == nil || dest.Node.Data != "a" {
		t.Fatalf("ResolveHref(name anchor) = %v, %v", dest.Node, err)
	}

	if _, err := b.ResolveHref("OEBPS/text/missing.xhtml"); !errors.Is(err, book.ErrNoSection) {
		t.Fatalf("ResolveHref(missing) error = %v, want ErrNoSection", err)
	}
}

func TestNavigator_ResolveCFI(t *testing.T) {
	b := parseEntries(t, fullEntries())

	// spine position 2 is chapter2, which is section 1
	dest, err := b.ResolveCFI("epubcfi(/6/6[chapter2]!/1/2/1/1~2)")
	if err != nil {
		t.Fatalf("ResolveCFI() error: %v", err)
	}
	if dest.Index != 1 || dest.Offset != 2 {
		t.Fatalf("ResolveCFI() = index %d offset %d, want 1/2", dest.Index, dest.Offset)
	}
	if dest.Node == nil || dest.Node.Data != "Two" {
		t.Fatalf("ResolveCFI() node = %v, want text node Two", dest.Node)
	}

	// ghost spine entry has no section
	if _, err := b.ResolveCFI("epubcfi(/6/4)"); !errors.Is(err, book.ErrNoSection) {
		t.Fatalf("ResolveCFI(ghost) error = %v, want ErrNoSection", err)
	}
	var pe *cfi.ParseError
	if _, err := b.ResolveCFI("epubcfi(/6/"); !errors.As(err, &pe) {
		t.Fatalf("ResolveCFI(malformed) error = %v, want *cfi.ParseError", err)
	}
}

func TestSectionCFIRoundTrip(t *testing.T) {
	b := parseEntries(t, fullEntries())
	for i, s := range b.Sections {
		dest, err := b.ResolveCFI("epubcfi(" + s.CFI + ")")
		if err != nil {
			t.Fatalf("ResolveCFI(%s) error: %v", s.CFI, err)
		}
		if dest.Index != i {
			t.Errorf("ResolveCFI(%s) = %d, want %d", s.CFI, dest.Index, i)
		}
	}
}
