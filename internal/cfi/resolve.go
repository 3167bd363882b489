package cfi

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Filter decides which children take part in step indexing.
type Filter func(n *html.Node) bool

// DefaultFilter keeps element nodes and text nodes with non-blank content.
func DefaultFilter(n *html.Node) bool {
	switch n.Type {
	case html.ElementNode:
		return true
	case html.TextNode:
		return strings.TrimSpace(n.Data) != ""
	default:
		return false
	}
}

// Point is a position in a live document. Offset counts characters (runes)
// and is meaningful for text nodes only.
type Point struct {
	Node   *html.Node
	Offset int
}

// Range is a pair of points; a collapsed range has Start == End.
type Range struct {
	Start Point
	End   Point
}

// Collapsed reports whether the range describes a single point.
func (r Range) Collapsed() bool {
	return r.Start == r.End
}

func filteredChildren(n *html.Node, filter Filter) []*html.Node {
	var kids []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if filter(c) {
			kids = append(kids, c)
		}
	}
	return kids
}

// ResolvePath walks p from root. The second result is false when any step
// falls outside the filtered children at its depth or when a character
// offset is past the end of the text node.
func ResolvePath(root *html.Node, p Path, filter Filter) (Point, bool) {
	if root == nil {
		return Point{}, false
	}
	if filter == nil {
		filter = DefaultFilter
	}
	cur := root
	for _, st := range p {
		kids := filteredChildren(cur, filter)
		if st.Index < 1 || st.Index > len(kids) {
			return Point{}, false
		}
		cur = kids[st.Index-1]
	}
	pt := Point{Node: cur}
	if len(p) > 0 && p[len(p)-1].Offset != nil && cur.Type == html.TextNode {
		off := *p[len(p)-1].Offset
		if off > utf8.RuneCountInString(cur.Data) {
			return Point{}, false
		}
		pt.Offset = off
	}
	return pt, true
}

// Resolve resolves the in-document part of c (its last path) against root.
// Leading paths address the containing document and are the caller's concern.
func (c *CFI) Resolve(root *html.Node, filter Filter) (Range, error) {
	if c == nil {
		return Range{}, ErrNoMatch
	}
	if !c.IsRange() {
		if len(c.Paths) == 0 {
			return Range{}, ErrNoMatch
		}
		pt, ok := ResolvePath(root, c.Paths[len(c.Paths)-1], filter)
		if !ok {
			return Range{}, ErrNoMatch
		}
		return Range{Start: pt, End: pt}, nil
	}

	start, ok := ResolvePath(root, rangeLeg(c.Parent, c.Start), filter)
	if !ok {
		return Range{}, ErrNoMatch
	}
	end, ok := ResolvePath(root, rangeLeg(c.Parent, c.End), filter)
	if !ok {
		return Range{}, ErrNoMatch
	}
	return Range{Start: start, End: end}, nil
}

// rangeLeg builds the in-document path of a range endpoint.
func rangeLeg(parent, leg []Path) Path {
	joined := joinPaths(parent, leg)
	if len(joined) == 0 {
		return nil
	}
	return joined[len(joined)-1]
}

// Split splits a text node at the point's offset and returns the node that
// starts at the point. Non-text points are returned unchanged.
func (p Point) Split() *html.Node {
	n := p.Node
	if n == nil || n.Type != html.TextNode || p.Offset <= 0 {
		return n
	}
	b := byteOffset(n.Data, p.Offset)
	if b >= len(n.Data) {
		return n
	}
	tail := &html.Node{Type: html.TextNode, Data: n.Data[b:]}
	n.Data = n.Data[:b]
	if n.Parent != nil {
		n.Parent.InsertBefore(tail, n.NextSibling)
	}
	return tail
}

// Text returns the text between the two points in document order. Text
// nodes rejected by filter are skipped, so blank runs between block elements
// that take no part in step indexing do not leak into the result. The
// endpoint nodes always contribute.
func (r Range) Text(filter Filter) string {
	if r.Start.Node == nil || r.End.Node == nil {
		return ""
	}
	if filter == nil {
		filter = DefaultFilter
	}
	root := r.Start.Node
	for root.Parent != nil {
		root = root.Parent
	}

	const (
		before = iota
		inside
		done
	)
	state := before
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if state == done {
			return
		}
		if n == r.Start.Node {
			state = inside
		}
		endpoint := n == r.Start.Node || n == r.End.Node
		if state == inside && n.Type == html.TextNode && (endpoint || filter(n)) {
			from, to := 0, len(n.Data)
			if n == r.Start.Node {
				from = byteOffset(n.Data, r.Start.Offset)
			}
			if n == r.End.Node {
				to = byteOffset(n.Data, r.End.Offset)
			}
			if from < to {
				sb.WriteString(n.Data[from:to])
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n == r.End.Node {
			state = done
		}
	}
	walk(root)
	return sb.String()
}

// byteOffset converts a rune offset into a byte offset within s.
func byteOffset(s string, runes int) int {
	if runes <= 0 {
		return 0
	}
	i := 0
	for n := 0; n < runes && i < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

var errFilteredOut = errors.New("cfi: node is excluded by filter")

// PathTo derives the path from root to n. For text nodes the offset becomes
// the character offset of the final step.
func PathTo(root, n *html.Node, offset int, filter Filter) (Path, error) {
	if filter == nil {
		filter = DefaultFilter
	}
	var steps Path
	for cur := n; cur != root; cur = cur.Parent {
		if cur == nil || cur.Parent == nil {
			return nil, ErrNoMatch
		}
		idx := 0
		for i, sib := range filteredChildren(cur.Parent, filter) {
			if sib == cur {
				idx = i + 1
				break
			}
		}
		if idx == 0 {
			return nil, errFilteredOut
		}
		steps = append(steps, Step{Index: idx})
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	if n.Type == html.TextNode && len(steps) > 0 {
		off := offset
		steps[len(steps)-1].Offset = &off
	}
	return steps, nil
}

// FromPoint derives a collapsed address for p.
func FromPoint(root *html.Node, p Point, filter Filter) (*CFI, error) {
	path, err := PathTo(root, p.Node, p.Offset, filter)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, ErrNoMatch
	}
	return &CFI{Paths: []Path{path}}, nil
}

// FromRange derives an address for r: collapsed when both points coincide,
// otherwise a range whose parent is the longest common step prefix. The
// parent is empty when the points diverge at the first step below root.
func FromRange(root *html.Node, r Range, filter Filter) (*CFI, error) {
	if r.Collapsed() {
		return FromPoint(root, r.Start, filter)
	}
	pa, err := PathTo(root, r.Start.Node, r.Start.Offset, filter)
	if err != nil {
		return nil, err
	}
	pb, err := PathTo(root, r.End.Node, r.End.Offset, filter)
	if err != nil {
		return nil, err
	}

	k := 0
	for k < len(pa) && k < len(pb) && pa[k].Index == pb[k].Index {
		k++
	}
	if k == len(pa) || k == len(pb) {
		k--
	}
	if k < 0 {
		return nil, ErrNoMatch
	}
	c := &CFI{
		Start: []Path{append(Path(nil), pa[k:]...)},
		End:   []Path{append(Path(nil), pb[k:]...)},
	}
	// Endpoints under different children of root share no parent steps.
	if k > 0 {
		c.Parent = []Path{append(Path(nil), pa[:k]...)}
	}
	return c, nil
}

// Prepend returns a copy of c whose address is nested under base, e.g. a
// section prefix such as /6/4[chap01].
func (c *CFI) Prepend(base []Path) *CFI {
	if c.IsRange() {
		parent := clonePaths(c.Parent)
		if len(parent) == 0 {
			// An empty in-document parent keeps start and end below the
			// "!" indirection instead of extending the base path.
			parent = []Path{{}}
		}
		return &CFI{
			Parent: append(clonePaths(base), parent...),
			Start:  clonePaths(c.Start),
			End:    clonePaths(c.End),
		}
	}
	return &CFI{Paths: append(clonePaths(base), clonePaths(c.Paths)...)}
}
