package unified

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/net/html"

	"github.com/yuanying/bookcore/internal/book"
)

const (
	bytesPerWord   = 5
	wordsPerMinute = 200
	excerptRunes   = 200
)

// SectionStats is what AnalyzeSection learns from section content.
type SectionStats struct {
	Title      string `json:"title,omitempty"`
	Words      int    `json:"words"`
	Characters int    `json:"characters"`
	Sentences  int    `json:"sentences"`
	Excerpt    string `json:"excerpt,omitempty"`
}

var tokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// AnalyzeSection loads s, strips markup and counts words, characters and
// sentences of the remaining text.
func AnalyzeSection(s *book.Section) (SectionStats, error) {
	doc, err := s.CreateDocument()
	if err != nil {
		return SectionStats{}, err
	}
	var stats SectionStats
	for _, sel := range []string{"h1", "h2", "h3", "title"} {
		if t := clean(doc.Find(sel).First().Text()); t != "" {
			stats.Title = t
			break
		}
	}

	text := clean(blockText(doc.Find("body").Nodes))
	stats.Words = len(strings.Fields(text))
	stats.Characters = utf8.RuneCountInString(text)
	stats.Excerpt = excerpt(text, excerptRunes)
	if text != "" {
		if tok, err := tokenizer(); err == nil {
			stats.Sentences = len(tok.Tokenize(text))
		} else {
			stats.Sentences = 1
		}
	}
	return stats, nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dt": true, "figcaption": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "p": true, "pre": true, "section": true,
	"td": true, "th": true, "tr": true,
}

// blockText collects the text under nodes, separating block elements with
// a space. Script and style content is skipped.
func blockText(nodes []*html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return sb.String()
}

// excerpt cuts text to at most n runes at a word boundary.
func excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)[:n]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "…"
}

// estimateWords derives a word count from a byte size.
func estimateWords(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + bytesPerWord - 1) / bytesPerWord)
}

// readingMinutes rounds up to whole minutes.
func readingMinutes(words int) int {
	return (words + wordsPerMinute - 1) / wordsPerMinute
}
