package unified

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
	"golang.org/x/text/language"

	"github.com/yuanying/bookcore/internal/book"
)

const untitled = "Untitled"

// UnifiedMetadata is the format independent view of book.Metadata.
type UnifiedMetadata struct {
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
	Subjects     []string `json:"subjects,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	Description  string   `json:"description,omitempty"`
	Language     string   `json:"language,omitempty"`
	Published    string   `json:"published,omitempty"`
	Modified     string   `json:"modified,omitempty"`
	Rights       string   `json:"rights,omitempty"`
	Identifiers  []string `json:"identifiers,omitempty"`
	ISBN         string   `json:"isbn,omitempty"`
	Series       string   `json:"series,omitempty"`
	Volume       string   `json:"volume,omitempty"`
	Edition      string   `json:"edition,omitempty"`
	CustomFields []Field  `json:"customFields,omitempty"`
}

// Field is a free-form metadata pair.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Meta keys consumed by the extractor or describing other elements.
var knownMeta = map[string]bool{
	"calibre:series":        true,
	"calibre:series_index":  true,
	"belongs-to-collection": true,
	"group-position":        true,
	"collection-type":       true,
	"book-edition":          true,
	"edition":               true,
	"isbn":                  true,
	"identifier-type":       true,
	"role":                  true,
	"file-as":               true,
	"title-type":            true,
	"display-seq":           true,
	"alternate-script":      true,
	"dcterms:modified":      true,
	"cover":                 true,
}

// ExtractMetadata normalizes md. Problems found along the way are added to
// warn.
func ExtractMetadata(md book.Metadata, warn *book.Warnings) UnifiedMetadata {
	um := UnifiedMetadata{
		Title:        clean(md.Title.First()),
		Authors:      cleanAll(md.Creator.All()),
		Contributors: cleanAll(md.Contributor.All()),
		Subjects:     cleanAll(md.Subject.All()),
		Publisher:    clean(md.Publisher.First()),
		Description:  clean(md.Description.First()),
		Published:    clean(md.Published.First()),
		Modified:     clean(md.Modified.First()),
		Rights:       clean(md.Rights.First()),
		Identifiers:  cleanAll(md.Identifier.All()),
	}
	if um.Title == "" {
		um.Title = untitled
	}

	if lang := clean(md.Language.First()); lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			warn.Addf("invalid language tag %q: %v", lang, err)
			um.Language = lang
		} else {
			um.Language = tag.String()
		}
	}

	um.ISBN = findISBN(md, um.Identifiers)
	um.Series, um.Volume = series(md)
	if e, ok := md.LookupMeta("book-edition", "edition"); ok {
		um.Edition = clean(e.Value)
	}
	um.CustomFields = customFields(md.Meta)
	return um
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = clean(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// findISBN returns the first identifier or ISBN meta entry that carries a
// valid ISBN.
func findISBN(md book.Metadata, ids []string) string {
	candidates := append([]string(nil), ids...)
	for _, e := range md.Meta {
		if strings.EqualFold(e.Scheme, "isbn") || strings.EqualFold(e.Key(), "isbn") {
			candidates = append(candidates, e.Value)
		}
	}
	for _, c := range candidates {
		if isbn, ok := CleanISBN(c); ok {
			return isbn
		}
	}
	return ""
}

func series(md book.Metadata) (name, volume string) {
	if e, ok := md.LookupMeta("calibre:series"); ok {
		name = clean(e.Value)
		if idx, ok := md.LookupMeta("calibre:series_index"); ok {
			volume = clean(idx.Value)
		}
		return name, volume
	}
	e, ok := md.LookupMeta("belongs-to-collection")
	if !ok {
		return "", ""
	}
	name = clean(e.Value)
	// Meta entries carry no ids, so the first position is taken.
	if pos, ok := md.LookupMeta("group-position"); ok {
		volume = clean(pos.Value)
	}
	return name, volume
}

// customFields keeps meta pairs the extractor does not understand, ordered
// naturally by name. Rendition properties are skipped; they live in
// book.Rendition.
func customFields(meta []book.MetaEntry) []Field {
	var out []Field
	for _, e := range meta {
		key := e.Key()
		if knownMeta[strings.ToLower(key)] || strings.HasPrefix(key, "rendition:") {
			continue
		}
		out = append(out, Field{Name: key, Value: clean(e.Value)})
	}
	sort.SliceStable(out, func(i, j int) bool { return natural.Less(out[i].Name, out[j].Name) })
	return out
}

// CleanISBN strips separators and an "urn:isbn:" or "isbn" prefix and
// reports whether the rest is an ISBN-10 or ISBN-13 with a valid check
// digit.
func CleanISBN(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, p := range []string{"URN:ISBN:", "ISBN:", "ISBN"} {
		s = strings.TrimPrefix(s, p)
	}
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == 'X':
			sb.WriteRune(r)
		case r == '-', r == ' ':
		default:
			return "", false
		}
	}
	isbn := sb.String()
	if (len(isbn) == 10 && validISBN10(isbn)) || (len(isbn) == 13 && validISBN13(isbn)) {
		return isbn, true
	}
	return "", false
}

func validISBN10(s string) bool {
	sum := 0
	for i := range 10 {
		c := s[i]
		var d int
		switch {
		case c == 'X' && i == 9:
			d = 10
		case c >= '0' && c <= '9':
			d = int(c - '0')
		default:
			return false
		}
		sum += (10 - i) * d
	}
	return sum%11 == 0
}

func validISBN13(s string) bool {
	sum := 0
	for i := range 13 {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}
