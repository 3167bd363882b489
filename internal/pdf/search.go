package pdf

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/yuanying/bookcore/internal/book"
)

// snippetRadius is the number of runes kept on each side of a match.
const snippetRadius = 40

// SearchHit is one occurrence of a query. Page is 1-based; Offset counts
// runes into the page text as returned by the section, the same unit a
// location address offset uses.
type SearchHit struct {
	Page    int    `json:"page"`
	Offset  int    `json:"offset"`
	Snippet string `json:"snippet"`
}

// Search finds every case-insensitive occurrence of query in the page
// texts of b, in page order. Matching runs on NFC-normalized text so
// composed and decomposed forms find each other. Matches do not overlap.
func Search(b *book.Book, query string) ([]SearchHit, error) {
	needle := foldRunes(norm.NFC.String(query))
	if len(needle) == 0 {
		return nil, nil
	}
	var hits []SearchHit
	for i, s := range b.Sections {
		text, err := s.Load()
		if err != nil {
			return hits, err
		}
		page := []rune(text)
		folded, pos := normalizeMapped(text)
		for _, at := range indexAll(folded, needle) {
			start, end := pos[at], pos[at+len(needle)]
			hits = append(hits, SearchHit{Page: i + 1, Offset: start, Snippet: snippet(page, start, end)})
		}
	}
	return hits, nil
}

// normalizeMapped returns the case-folded NFC form of text and, for each of
// its runes, the rune offset in text where its normalization segment
// starts. A final entry holds the rune count of text.
func normalizeMapped(text string) ([]rune, []int) {
	var (
		out []rune
		pos []int
		raw int
	)
	for rest := text; rest != ""; {
		n := norm.NFC.NextBoundaryInString(rest, true)
		if n <= 0 {
			n = len(rest)
		}
		seg := rest[:n]
		for _, r := range foldRunes(norm.NFC.String(seg)) {
			out = append(out, r)
			pos = append(pos, raw)
		}
		raw += utf8.RuneCountInString(seg)
		rest = rest[n:]
	}
	return out, append(pos, raw)
}

// foldRunes lower-cases rune by rune so offsets stay aligned with the source.
func foldRunes(s string) []rune {
	r := []rune(s)
	for i, c := range r {
		r[i] = unicode.ToLower(c)
	}
	return r
}

func indexAll(haystack, needle []rune) []int {
	var out []int
	for i := 0; i+len(needle) <= len(haystack); {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			out = append(out, i)
			i += len(needle)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func snippet(page []rune, start, end int) string {
	from := max(0, start-snippetRadius)
	to := min(len(page), end+snippetRadius)
	return strings.Join(strings.Fields(string(page[from:to])), " ")
}
