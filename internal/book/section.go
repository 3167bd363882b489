package book

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MediaTypePlainText marks sections whose content is bare text.
const MediaTypePlainText = "text/plain"

// LoadFunc materializes section content on demand.
type LoadFunc func() (string, error)

// Section is one unit of reading order. Content is loaded lazily and cached
// until Unload. Not safe for concurrent use.
type Section struct {
	ID        string `json:"id"`
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
	Linear    bool   `json:"linear"`
	Size      int64  `json:"size"`
	CFI       string `json:"cfi"`

	load   LoadFunc
	text   string
	loaded bool
	doc    *goquery.Document
}

// NewSection returns a section whose content comes from load.
func NewSection(id string, load LoadFunc) *Section {
	return &Section{ID: id, Href: id, Linear: true, load: load}
}

// Load returns the section content. Repeated calls return the same text.
func (s *Section) Load() (string, error) {
	if s.loaded {
		return s.text, nil
	}
	if s.load == nil {
		return "", fmt.Errorf("section %s: no content loader", s.ID)
	}
	text, err := s.load()
	if err != nil {
		return "", fmt.Errorf("section %s: %w", s.ID, err)
	}
	s.text, s.loaded = text, true
	return text, nil
}

// CreateDocument parses the section content into a document tree. Plain text
// is wrapped into paragraphs first.
func (s *Section) CreateDocument() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	text, err := s.Load()
	if err != nil {
		return nil, err
	}
	if s.MediaType == MediaTypePlainText {
		text = WrapPlainText(text)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("section %s: failed to parse document: %w", s.ID, err)
	}
	s.doc = doc
	return doc, nil
}

// Unload drops cached content and documents.
func (s *Section) Unload() {
	s.text, s.loaded, s.doc = "", false, nil
}

// WrapPlainText turns text into minimal XHTML with one paragraph per
// non-blank line.
func WrapPlainText(text string) string {
	var sb strings.Builder
	sb.WriteString("<html><head></head><body>")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(line))
		sb.WriteString("</p>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// Resource is an embedded binary file such as a cover or an illustration.
type Resource struct {
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`

	load func() ([]byte, error)
}

// NewResource returns a resource backed by load.
func NewResource(href, mediaType string, load func() ([]byte, error)) *Resource {
	return &Resource{Href: href, MediaType: mediaType, load: load}
}

// Bytes reads the resource content.
func (r *Resource) Bytes() ([]byte, error) {
	if r.load == nil {
		return nil, fmt.Errorf("resource %s: %w", r.Href, ErrResourceNotFound)
	}
	return r.load()
}
