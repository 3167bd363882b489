package epub

import (
	"archive/zip"
	"bytes"
	"testing"
)

const testContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:creator id="creator01">Jane Author</dc:creator>
    <dc:creator id="creator02">Ed Itor</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="isbn">urn:isbn:9780306406157</dc:identifier>
    <dc:identifier id="bookid">urn:uuid:12345678-1234-1234-1234-123456789abc</dc:identifier>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Adventure</dc:subject>
    <meta refines="#creator01" property="role" scheme="marc:relators">aut</meta>
    <meta refines="#creator02" property="role" scheme="marc:relators">edt</meta>
    <meta property="dcterms:modified">2024-01-02T03:04:05Z</meta>
    <meta property="belongs-to-collection" id="c01">The Saga</meta>
    <meta refines="#c01" property="group-position">2</meta>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-img" href="images/cover.png" media-type="image/png"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="text/notes.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx" page-progression-direction="rtl">
    <itemref idref="chapter1"/>
    <itemref idref="ghost"/>
    <itemref idref="chapter2"/>
    <itemref idref="notes" linear="no"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>Chapter 1</text></navLabel>
      <content src="text/chapter1.xhtml"/>
      <navPoint id="np1a" playOrder="2">
        <navLabel><text> Section 1.1 </text></navLabel>
        <content src="text/chapter1.xhtml#s11"/>
      </navPoint>
    </navPoint>
    <navPoint id="np2" playOrder="3">
      <navLabel><text>Chapter 2</text></navLabel>
      <content src="text/chapter2.xhtml"/>
    </navPoint>
  </navMap>
  <pageList>
    <pageTarget id="p1" type="normal" value="1">
      <navLabel><text>1</text></navLabel>
      <content src="text/chapter1.xhtml#page1"/>
    </pageTarget>
  </pageList>
</ncx>`

const testNav = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Nav</title></head>
<body>
  <nav epub:type="toc">
    <ol>
      <li><a href="text/chapter1.xhtml">Nav Chapter 1</a>
        <ol><li><a href="text/chapter1.xhtml#s11">Nav 1.1</a></li></ol>
      </li>
      <li><span>Part II</span>
        <ol><li><a href="text/chapter2.xhtml">Nav Chapter 2</a></li></ol>
      </li>
    </ol>
  </nav>
  <nav epub:type="page-list">
    <ol><li><a href="text/chapter2.xhtml#p7">7</a></li></ol>
  </nav>
</body>
</html>`

const testChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title></head>
<body><h1>Chapter 1</h1><p>Hello, World!</p><p id="s11">Second <em>part</em></p><a name="legacy">old</a></body>
</html>`

const testChapter2 = `<html><head><title>Chapter 2</title></head><body><p>Two</p></body></html>`

// pngStub is a 1x1 PNG.
var pngStub = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xff, 0xff, 0x3f,
	0x00, 0x05, 0xfe, 0x02, 0xfe, 0xa7, 0x35, 0x81, 0x84, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
	0x44, 0xae, 0x42, 0x60, 0x82,
}

type zipEntry struct {
	name   string
	data   []byte
	method uint16
}

// buildZip writes entries into an in-memory archive.
func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		method := e.method
		if method == 0 && e.name != "mimetype" {
			method = zip.Deflate
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

// fullEntries is a complete EPUB 3 book with both NCX and nav document.
func fullEntries() []zipEntry {
	return []zipEntry{
		{name: "mimetype", data: []byte("application/epub+zip"), method: zip.Store},
		{name: "META-INF/container.xml", data: []byte(testContainer)},
		{name: "OEBPS/content.opf", data: []byte(testOPF)},
		{name: "OEBPS/toc.ncx", data: []byte(testNCX)},
		{name: "OEBPS/nav.xhtml", data: []byte(testNav)},
		{name: "OEBPS/images/cover.png", data: pngStub},
		{name: "OEBPS/text/chapter1.xhtml", data: []byte(testChapter1)},
		{name: "OEBPS/text/chapter2.xhtml", data: []byte(testChapter2)},
		{name: "OEBPS/text/notes.xhtml", data: []byte("<html><body><p>n</p></body></html>")},
	}
}

func openEntries(t *testing.T, entries []zipEntry) *Reader {
	t.Helper()
	data := buildZip(t, entries)
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	return r
}

func replaceEntry(entries []zipEntry, name string, data []byte) []zipEntry {
	out := make([]zipEntry, 0, len(entries))
	for _, e := range entries {
		if e.name == name {
			if data == nil {
				continue
			}
			e.data = data
		}
		out = append(out, e)
	}
	return out
}
