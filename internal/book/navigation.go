package book

import (
	"fmt"
	"strings"

	"github.com/yuanying/bookcore/internal/cfi"
)

// spineStep is the package-document step that holds the spine.
const spineStep = 6

// SectionCFI returns the location prefix of the section at spine position i.
func SectionCFI(i int, id string) string {
	step := cfi.Step{Index: 2 * (i + 1)}
	if id != "" {
		step.Assertion, step.HasAssertion = id, true
	}
	return cfi.Path{{Index: spineStep}, step}.String()
}

// SpinePosition decodes the spine position addressed by the first path of
// c, together with the step that carried it.
func SpinePosition(c *cfi.CFI) (int, cfi.Step, error) {
	c = c.Collapse(false)
	if len(c.Paths) == 0 || len(c.Paths[0]) < 2 || c.Paths[0][0].Index != spineStep {
		return -1, cfi.Step{}, fmt.Errorf("%w: address %s has no section step", ErrNoSection, c)
	}
	step := c.Paths[0][1]
	if step.Index%2 != 0 {
		return -1, step, fmt.Errorf("%w: odd section step %d", ErrNoSection, step.Index)
	}
	return step.Index/2 - 1, step, nil
}

// SectionIndexFromCFI returns the section index addressed by c when
// sections map one to one to spine positions. count bounds the valid range.
func SectionIndexFromCFI(c *cfi.CFI, count int) (int, error) {
	i, _, err := SpinePosition(c)
	if err != nil {
		return -1, err
	}
	if i < 0 || i >= count {
		return -1, fmt.Errorf("%w: section %d out of range", ErrNoSection, i)
	}
	return i, nil
}

// ApplyPath copies the in-section path and the character offset of c into d.
// For a range the end point is copied as well.
func (d *Destination) ApplyPath(c *cfi.CFI) {
	d.Path, d.Offset = inSection(c.Collapse(false))
	if c.IsRange() {
		d.Range = true
		d.EndPath, d.EndOffset = inSection(c.Collapse(true))
	}
}

func inSection(c *cfi.CFI) (cfi.Path, int) {
	if len(c.Paths) == 0 {
		return nil, 0
	}
	var path cfi.Path
	last := c.Paths[len(c.Paths)-1]
	if len(c.Paths) > 1 {
		path = last
	}
	if n := len(last); n > 0 && last[n-1].Offset != nil {
		return path, *last[n-1].Offset
	}
	return path, 0
}

// IndexNavigator resolves references for formats whose sections are a flat
// sequence without internal anchors (MOBI records, PDF pages).
type IndexNavigator struct {
	Book *Book
}

func (n IndexNavigator) ResolveHref(href string) (Destination, error) {
	ref, frag, _ := strings.Cut(href, "#")
	if ref == "" {
		return Destination{}, fmt.Errorf("%w: %q", ErrNoSection, href)
	}
	i := n.Book.SectionIndex(ref)
	if i < 0 {
		return Destination{}, fmt.Errorf("%w: %q", ErrNoSection, href)
	}
	return Destination{Index: i, Section: n.Book.Sections[i], Fragment: frag}, nil
}

func (n IndexNavigator) ResolveCFI(s string) (Destination, error) {
	c, err := cfi.Parse(s)
	if err != nil {
		return Destination{}, err
	}
	i, err := SectionIndexFromCFI(c, len(n.Book.Sections))
	if err != nil {
		return Destination{}, err
	}
	dest := Destination{Index: i, Section: n.Book.Sections[i]}
	dest.ApplyPath(c)
	return dest, nil
}
