package pdf

import "testing"

// fakeDocument serves pages from memory.
type fakeDocument struct {
	pages   []Page
	info    map[string]string
	outline []OutlineItem
	bad     map[int]error
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) Page(n int) (Page, error) {
	if n < 1 || n > len(d.pages) {
		return Page{}, ErrInvalidPage
	}
	if err := d.bad[n]; err != nil {
		return Page{}, err
	}
	return d.pages[n-1], nil
}

func (d *fakeDocument) Info() map[string]string { return d.info }

func (d *fakeDocument) Outline() []OutlineItem { return d.outline }

type fakeEngine struct {
	doc *fakeDocument
	err error
}

func (e fakeEngine) Open([]byte) (Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.doc, nil
}

// textPage lays lines out top to bottom in 12pt runs on a Letter page.
func textPage(lines ...string) Page {
	p := Page{Width: defaultPageWidth, Height: defaultPageHeight}
	y := 720.0
	for _, line := range lines {
		p.Runs = append(p.Runs, TextRun{X: 72, Y: y, W: float64(len(line)) * 6, FontSize: 12, S: line})
		y -= 14
	}
	return p
}

const minimalPDF = "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"

func testLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader([]byte(minimalPDF))
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	return l
}
