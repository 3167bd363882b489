// Package cfi implements location addresses (fragment identifiers) that point
// at a position or a span inside a parsed document tree.
//
// An address is written as
//
//	epubcfi(/6/4[chap01]!/4/2/1~12)
//
// Paths are separated by "!", steps by "/". A step starts with a 1-based
// index among the filtered children of the current node and may carry a
// text assertion ([...]), a spatial offset ((x)), a temporal offset (:t),
// a side bias (@b or @a) and a character offset (~n). Three comma separated
// parts describe a range: parent, start and end.
package cfi

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned when an address does not resolve against a document.
// It is an expected outcome for documents edited after the address was taken.
var ErrNoMatch = errors.New("cfi: address does not match document")

// Side disambiguates a position that sits on a boundary.
type Side int8

const (
	SideNone Side = iota
	SideBefore
	SideAfter
)

func (s Side) String() string {
	switch s {
	case SideBefore:
		return "b"
	case SideAfter:
		return "a"
	default:
		return ""
	}
}

// Step is a single move from a node to one of its filtered children.
type Step struct {
	Index int // 1-based, mandatory

	Assertion    string
	HasAssertion bool

	Spatial  *float64
	Temporal *float64
	Side     Side
	Offset   *int // character offset into a text node
}

// Path is a sequence of steps starting at a document root.
type Path []Step

// CFI is either a collapsed address (Paths) or a range (Parent, Start, End).
type CFI struct {
	Paths []Path

	Parent []Path
	Start  []Path
	End    []Path
}

// IsRange reports whether c addresses a span rather than a single point.
func (c *CFI) IsRange() bool {
	return c != nil && len(c.Start) > 0
}

// Collapse returns the address of the start of a range, or c itself when it
// is already collapsed.
func (c *CFI) Collapse(toEnd bool) *CFI {
	if !c.IsRange() {
		return c
	}
	tail := c.Start
	if toEnd {
		tail = c.End
	}
	return &CFI{Paths: joinPaths(c.Parent, tail)}
}

// joinPaths glues a parent path list and a relative path list together: the
// last parent path and the first relative path describe the same document.
func joinPaths(parent, rel []Path) []Path {
	if len(parent) == 0 {
		return clonePaths(rel)
	}
	out := clonePaths(parent)
	if len(rel) == 0 {
		return out
	}
	last := len(out) - 1
	out[last] = append(out[last], rel[0]...)
	return append(out, clonePaths(rel[1:])...)
}

func clonePaths(in []Path) []Path {
	out := make([]Path, len(in))
	for i, p := range in {
		out[i] = append(Path(nil), p...)
	}
	return out
}

// ParseError describes malformed address text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cfi: %s at position %d", e.Msg, e.Pos)
}

func parseErrorf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
