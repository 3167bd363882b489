package cfi

import (
	"strconv"
	"strings"
)

const (
	prefix = "epubcfi("
	suffix = ")"
)

type segment struct {
	text string
	pos  int // offset of text within the original input
}

// Parse decodes an address string. The epubcfi(...) wrapper is optional.
func Parse(s string) (*CFI, error) {
	body, base := s, 0
	if strings.HasPrefix(s, prefix) {
		if !strings.HasSuffix(s, suffix) {
			return nil, parseErrorf(len(s), "missing closing parenthesis")
		}
		body = s[len(prefix) : len(s)-len(suffix)]
		base = len(prefix)
	}

	parts, err := splitTop(segment{text: body, pos: base}, ',')
	if err != nil {
		return nil, err
	}

	switch len(parts) {
	case 1:
		paths, err := parsePaths(parts[0])
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, parseErrorf(base, "empty address")
		}
		return &CFI{Paths: paths}, nil
	case 3:
		c := &CFI{}
		names := [3]string{"parent", "start", "end"}
		targets := [3]*[]Path{&c.Parent, &c.Start, &c.End}
		for i, part := range parts {
			if i == 0 {
				paths, err := parseParent(part)
				if err != nil {
					return nil, err
				}
				c.Parent = paths
				continue
			}
			paths, err := parsePaths(part)
			if err != nil {
				return nil, err
			}
			if len(paths) == 0 {
				return nil, parseErrorf(part.pos, "empty range %s", names[i])
			}
			*targets[i] = paths
		}
		return c, nil
	default:
		return nil, parseErrorf(parts[len(parts)-1].pos, "range needs exactly three parts, got %d", len(parts))
	}
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) *CFI {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// splitTop splits seg at sep characters found outside of assertions and
// parenthesized offsets.
func splitTop(seg segment, sep byte) ([]segment, error) {
	var (
		out      []segment
		start    int
		inAssert bool
		inParen  bool
	)
	s := seg.text
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inAssert:
			switch c {
			case '\\':
				i++
				if i >= len(s) {
					return nil, parseErrorf(seg.pos+i-1, "dangling escape")
				}
			case ']':
				inAssert = false
			}
		case inParen:
			if c == ')' {
				inParen = false
			}
		case c == '[':
			inAssert = true
		case c == '(':
			inParen = true
		case c == ']':
			return nil, parseErrorf(seg.pos+i, "unbalanced ']'")
		case c == ')':
			return nil, parseErrorf(seg.pos+i, "unbalanced ')'")
		case c == sep:
			out = append(out, segment{text: s[start:i], pos: seg.pos + start})
			start = i + 1
		}
	}
	if inAssert {
		return nil, parseErrorf(seg.pos+len(s), "unterminated text assertion")
	}
	if inParen {
		return nil, parseErrorf(seg.pos+len(s), "unterminated spatial offset")
	}
	return append(out, segment{text: s[start:], pos: seg.pos + start}), nil
}

func parsePaths(seg segment) ([]Path, error) {
	if seg.text == "" {
		return nil, nil
	}
	parts, err := splitTop(seg, '!')
	if err != nil {
		return nil, err
	}
	paths := make([]Path, 0, len(parts))
	for _, part := range parts {
		p, err := parsePath(part)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// parseParent reads the parent part of a range. It may be empty, and it may
// end with "!" when start and end begin a new document below the parent.
func parseParent(seg segment) ([]Path, error) {
	text, open := strings.CutSuffix(seg.text, "!")
	paths, err := parsePaths(segment{text: text, pos: seg.pos})
	if err != nil {
		return nil, err
	}
	if open {
		if len(paths) == 0 {
			return nil, parseErrorf(seg.pos, "empty path before '!'")
		}
		paths = append(paths, Path{})
	}
	return paths, nil
}

func parsePath(seg segment) (Path, error) {
	if !strings.HasPrefix(seg.text, "/") {
		return nil, parseErrorf(seg.pos, "path must start with '/'")
	}
	steps, err := splitTop(segment{text: seg.text[1:], pos: seg.pos + 1}, '/')
	if err != nil {
		return nil, err
	}
	path := make(Path, 0, len(steps))
	for _, st := range steps {
		step, err := parseStep(st)
		if err != nil {
			return nil, err
		}
		path = append(path, step)
	}
	return path, nil
}

func parseStep(seg segment) (Step, error) {
	var step Step
	s := seg.text

	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == 0 {
		if s == "" {
			return step, parseErrorf(seg.pos, "empty step")
		}
		return step, parseErrorf(seg.pos, "step must start with an index, found %q", s[0])
	}
	idx, err := strconv.Atoi(s[:i])
	if err != nil || idx < 1 {
		return step, parseErrorf(seg.pos, "invalid step index %q", s[:i])
	}
	step.Index = idx

	var seen [5]bool // assertion, spatial, temporal, side, offset
	once := func(slot int, pos int, what string) error {
		if seen[slot] {
			return parseErrorf(pos, "duplicate %s", what)
		}
		seen[slot] = true
		return nil
	}

	for i < len(s) {
		pos := seg.pos + i
		switch s[i] {
		case '[':
			if err := once(0, pos, "text assertion"); err != nil {
				return step, err
			}
			text, n, err := readAssertion(s[i+1:], pos+1)
			if err != nil {
				return step, err
			}
			step.Assertion, step.HasAssertion = text, true
			i += n + 1
		case '(':
			if err := once(1, pos, "spatial offset"); err != nil {
				return step, err
			}
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return step, parseErrorf(pos, "unterminated spatial offset")
			}
			v, err := strconv.ParseFloat(s[i+1:i+end], 64)
			if err != nil {
				return step, parseErrorf(pos+1, "invalid spatial offset %q", s[i+1:i+end])
			}
			step.Spatial = &v
			i += end + 1
		case ':':
			if err := once(2, pos, "temporal offset"); err != nil {
				return step, err
			}
			n := scanNumber(s[i+1:])
			v, err := strconv.ParseFloat(s[i+1:i+1+n], 64)
			if err != nil {
				return step, parseErrorf(pos+1, "invalid temporal offset %q", s[i+1:i+1+n])
			}
			step.Temporal = &v
			i += n + 1
		case '@':
			if err := once(3, pos, "side bias"); err != nil {
				return step, err
			}
			if i+1 >= len(s) {
				return step, parseErrorf(pos, "missing side bias")
			}
			switch s[i+1] {
			case 'b':
				step.Side = SideBefore
			case 'a':
				step.Side = SideAfter
			default:
				return step, parseErrorf(pos+1, "invalid side bias %q", s[i+1])
			}
			i += 2
		case '~':
			if err := once(4, pos, "character offset"); err != nil {
				return step, err
			}
			n := 0
			for i+1+n < len(s) && isDigit(s[i+1+n]) {
				n++
			}
			if n == 0 {
				return step, parseErrorf(pos+1, "missing character offset")
			}
			v, err := strconv.Atoi(s[i+1 : i+1+n])
			if err != nil {
				return step, parseErrorf(pos+1, "invalid character offset %q", s[i+1:i+1+n])
			}
			step.Offset = &v
			i += n + 1
		default:
			return step, parseErrorf(pos, "unexpected character %q", s[i])
		}
	}
	return step, nil
}

// readAssertion reads an escaped assertion body up to the closing bracket and
// returns the unescaped text and the number of bytes consumed (bracket included).
func readAssertion(s string, pos int) (string, int, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, parseErrorf(pos+i, "dangling escape")
			}
			i++
			sb.WriteByte(s[i])
		case ']':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", 0, parseErrorf(pos+len(s), "unterminated text assertion")
}

func scanNumber(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		if isDigit(c) || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			n++
			continue
		}
		break
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
