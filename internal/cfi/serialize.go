package cfi

import (
	"strconv"
	"strings"
)

var assertionEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

// String serializes c into its epubcfi(...) form.
func (c *CFI) String() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	if c.IsRange() {
		writePaths(&sb, c.Parent)
		sb.WriteByte(',')
		writePaths(&sb, c.Start)
		sb.WriteByte(',')
		writePaths(&sb, c.End)
	} else {
		writePaths(&sb, c.Paths)
	}
	sb.WriteString(suffix)
	return sb.String()
}

func (p Path) String() string {
	var sb strings.Builder
	writePath(&sb, p)
	return sb.String()
}

func (s Step) String() string {
	var sb strings.Builder
	writeStep(&sb, s)
	return sb.String()
}

func writePaths(sb *strings.Builder, paths []Path) {
	for i, p := range paths {
		if i > 0 {
			sb.WriteByte('!')
		}
		writePath(sb, p)
	}
}

func writePath(sb *strings.Builder, p Path) {
	for _, s := range p {
		sb.WriteByte('/')
		writeStep(sb, s)
	}
}

func writeStep(sb *strings.Builder, s Step) {
	sb.WriteString(strconv.Itoa(s.Index))
	if s.HasAssertion {
		sb.WriteByte('[')
		sb.WriteString(assertionEscaper.Replace(s.Assertion))
		sb.WriteByte(']')
	}
	if s.Spatial != nil {
		sb.WriteByte('(')
		sb.WriteString(formatFloat(*s.Spatial))
		sb.WriteByte(')')
	}
	if s.Temporal != nil {
		sb.WriteByte(':')
		sb.WriteString(formatFloat(*s.Temporal))
	}
	if s.Side != SideNone {
		sb.WriteByte('@')
		sb.WriteString(s.Side.String())
	}
	if s.Offset != nil {
		sb.WriteByte('~')
		sb.WriteString(strconv.Itoa(*s.Offset))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether two addresses carry the same populated fields.
func Equal(a, b *CFI) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// Compare orders addresses by document position of their start points. It
// returns -1, 0 or 1.
func Compare(a, b *CFI) int {
	pa := flatten(a.Collapse(false).Paths)
	pb := flatten(b.Collapse(false).Paths)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := compareInt(pa[i].Index, pb[i].Index); c != 0 {
			return c
		}
	}
	if len(pa) != len(pb) {
		return compareInt(len(pa), len(pb))
	}
	if len(pa) == 0 {
		return 0
	}
	return compareInt(offsetOf(pa[len(pa)-1]), offsetOf(pb[len(pb)-1]))
}

func flatten(paths []Path) Path {
	var out Path
	for _, p := range paths {
		out = append(out, p...)
	}
	return out
}

func offsetOf(s Step) int {
	if s.Offset == nil {
		return 0
	}
	return *s.Offset
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
