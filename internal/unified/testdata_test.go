package unified

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/yuanying/bookcore/internal/mobi"
	"github.com/yuanying/bookcore/internal/pdf"
)

const minimalContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const minimalOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Minimal</dc:title>
    <dc:identifier id="bookid">urn:uuid:0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0</dc:identifier>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

const richOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>  The   Rich Book </dc:title>
    <dc:creator>Jane Author</dc:creator>
    <dc:creator>John Writer</dc:creator>
    <dc:language>en-us</dc:language>
    <dc:identifier id="bookid">urn:isbn:978-0-306-40615-7</dc:identifier>
    <dc:subject>Fiction</dc:subject>
    <meta property="dcterms:modified">2024-01-02T03:04:05Z</meta>
    <meta name="calibre:series" content="The Saga"/>
    <meta name="calibre:series_index" content="3"/>
    <meta property="book-edition">Second</meta>
    <meta name="custom10" content="ten"/>
    <meta name="custom2" content="two"/>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover-img" href="cover.png" media-type="image/png" properties="cover-image"/>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
    <itemref idref="chapter2"/>
  </spine>
</package>`

const richNav = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Nav</title></head>
<body>
  <nav epub:type="toc">
    <ol>
      <li><a href="chapter1.xhtml">Opening</a></li>
      <li><a href="chapter2.xhtml">Closing</a></li>
    </ol>
  </nav>
</body>
</html>`

const chapterOne = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title><style>p { color: red; }</style></head>
<body>
  <h1>Chapter One</h1>
  <p>It was a bright cold day in April. The clocks were striking thirteen.</p>
</body>
</html>`

const chapterTwo = `<html><body><p>The end.</p></body></html>`

type zipEntry struct {
	name string
	data []byte
}

func buildEPUB(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	all := append([]zipEntry{{name: "mimetype", data: []byte("application/epub+zip")}}, entries...)
	for _, e := range all {
		method := zip.Deflate
		if e.name == "mimetype" {
			method = zip.Store
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			t.Fatalf("failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func minimalEPUB(t *testing.T) []byte {
	t.Helper()
	return buildEPUB(t,
		zipEntry{"META-INF/container.xml", []byte(minimalContainer)},
		zipEntry{"OEBPS/content.opf", []byte(minimalOPF)},
		zipEntry{"OEBPS/chapter1.xhtml", []byte(chapterOne)},
	)
}

func richEPUB(t *testing.T) []byte {
	t.Helper()
	return buildEPUB(t,
		zipEntry{"META-INF/container.xml", []byte(minimalContainer)},
		zipEntry{"OEBPS/content.opf", []byte(richOPF)},
		zipEntry{"OEBPS/nav.xhtml", []byte(richNav)},
		zipEntry{"OEBPS/cover.png", coverPNG(t, 400, 600)},
		zipEntry{"OEBPS/chapter1.xhtml", []byte(chapterOne)},
		zipEntry{"OEBPS/chapter2.xhtml", []byte(chapterTwo)},
	)
}

func coverPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// plainPDB builds a PDB whose record 0 has only a PalmDOC header followed
// by the given text records.
func plainPDB(t *testing.T, compression uint16, texts ...string) []byte {
	t.Helper()
	r0 := make([]byte, mobi.PalmDOCHeaderSize)
	binary.BigEndian.PutUint16(r0[0:], compression)
	total := 0
	for _, s := range texts {
		total += len(s)
	}
	binary.BigEndian.PutUint32(r0[4:], uint32(total))
	binary.BigEndian.PutUint16(r0[8:], uint16(len(texts)))
	binary.BigEndian.PutUint16(r0[10:], 4096)

	records := [][]byte{r0}
	for _, s := range texts {
		records = append(records, []byte(s))
	}

	var header mobi.PDBHeader
	copy(header.Name[:], "plain")
	copy(header.Type[:], "TEXt")
	copy(header.Creator[:], "REAd")
	header.NumRecords = uint16(len(records))

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, header); err != nil {
		t.Fatalf("failed to encode PDB header: %v", err)
	}
	offset := 78 + 8*len(records) + 2
	for i, r := range records {
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		buf.Write([]byte{0, 0, 0, byte(i)})
		offset += len(r)
	}
	buf.Write([]byte{0, 0})
	for _, r := range records {
		buf.Write(r)
	}
	return buf.Bytes()
}

type fakeDocument struct {
	pages []pdf.Page
	info  map[string]string
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) Page(n int) (pdf.Page, error) {
	if n < 1 || n > len(d.pages) {
		return pdf.Page{}, pdf.ErrInvalidPage
	}
	return d.pages[n-1], nil
}

func (d *fakeDocument) Info() map[string]string { return d.info }

func (d *fakeDocument) Outline() []pdf.OutlineItem { return nil }

type fakeEngine struct {
	doc *fakeDocument
	err error
}

func (e fakeEngine) Open([]byte) (pdf.Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.doc, nil
}

func textPage(s string) pdf.Page {
	return pdf.Page{Width: 612, Height: 792, Runs: []pdf.TextRun{{X: 72, Y: 720, W: float64(len(s)) * 6, FontSize: 12, S: s}}}
}

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
