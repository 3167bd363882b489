package epub

import "github.com/yuanying/bookcore/internal/book"

// Package is the parsed OPF package document.
type Package struct {
	Path     string // archive path of the OPF file
	Version  string
	UniqueID string

	Metadata book.Metadata
	CoverID  string // EPUB 2 cover image manifest id (meta name="cover")

	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	Direction     book.Direction
	Guide         []GuideReference
	Rendition     book.Rendition

	NCXPath string // resolved from spine toc attribute or media type
	NavPath string // manifest item with the "nav" property
}

// ManifestItem represents an item in the manifest. Href is an archive path.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item carries the given property.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem represents an item reference in the spine.
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference is an EPUB 2 guide entry.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}
