package book

import "strings"

// Metadata is the descriptive bag shared by all formats. Every field may be
// absent; format parsers never invent a title.
type Metadata struct {
	Title       Value `json:"title"`
	Creator     Value `json:"creator"`
	Contributor Value `json:"contributor"`
	Subject     Value `json:"subject"`
	Description Value `json:"description"`
	Publisher   Value `json:"publisher"`
	Published   Value `json:"published"`
	Modified    Value `json:"modified"`
	Identifier  Value `json:"identifier"`
	Language    Value `json:"language"`
	Rights      Value `json:"rights"`

	// Meta keeps free-form name/value pairs (OPF meta, unmapped EXTH
	// records, PDF info keys) in source order.
	Meta []MetaEntry `json:"meta,omitempty"`
}

// MetaEntry is one free-form pair. EPUB 2 uses Name, EPUB 3 uses Property.
type MetaEntry struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Refines  string `json:"refines,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Value    string `json:"value"`
}

// Key returns the name the entry is known by.
func (e MetaEntry) Key() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Property
}

// LookupMeta returns the first entry whose key matches one of keys
// (case-insensitive).
func (m *Metadata) LookupMeta(keys ...string) (MetaEntry, bool) {
	for _, key := range keys {
		for _, e := range m.Meta {
			if strings.EqualFold(e.Key(), key) {
				return e, true
			}
		}
	}
	return MetaEntry{}, false
}

// Refining returns the entries that refine the element with the given id.
func (m *Metadata) Refining(id string) []MetaEntry {
	if id == "" {
		return nil
	}
	target := "#" + strings.TrimPrefix(id, "#")
	var out []MetaEntry
	for _, e := range m.Meta {
		if e.Refines == target {
			out = append(out, e)
		}
	}
	return out
}
