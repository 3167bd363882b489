package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/yuanying/bookcore/internal/book"
)

const (
	mediaTypeOPF = "application/oebps-package+xml"
	mediaTypeNCX = "application/x-dtbncx+xml"
)

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
	Guide    opfGuide    `xml:"guide"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title       []opfText       `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Contributor []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ contributor"`
	Language    []opfText       `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publisher   []opfText       `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Date        []opfText       `xml:"http://purl.org/dc/elements/1.1/ date"`
	Description []opfText       `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subject     []opfText       `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Rights      []opfText       `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Meta        []opfMeta       `xml:"meta"`
}

// opfText is a DC element with an optional language.
type opfText struct {
	Value string `xml:",chardata"`
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	ID    string `xml:"id,attr"`
}

// opfCreator represents a creator or contributor element
type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	ID   string `xml:"id,attr"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	Scheme string `xml:"http://www.idpf.org/2007/opf scheme,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	Scheme   string `xml:"scheme,attr"`
}

func (m opfMeta) text() string {
	if v := strings.TrimSpace(m.Value); v != "" {
		return v
	}
	return strings.TrimSpace(m.Content)
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc       string       `xml:"toc,attr"`
	Direction string       `xml:"page-progression-direction,attr"`
	ItemRefs  []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

type opfGuide struct {
	References []struct {
		Type  string `xml:"type,attr"`
		Title string `xml:"title,attr"`
		Href  string `xml:"href,attr"`
	} `xml:"reference"`
}

func decodeXML(content []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(content)))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	return dec.Decode(v)
}

// parseContainer extracts the package document path from container.xml.
func parseContainer(content []byte) (string, error) {
	var c container
	if err := decodeXML(content, &c); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath != "" && (rf.MediaType == mediaTypeOPF || rf.MediaType == "") {
			return normalizePath(rf.FullPath), nil
		}
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath != "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	return "", ErrOPFPathNotFound
}

// ParsePackage parses OPF content located at opfPath inside the archive.
func ParsePackage(content []byte, opfPath string) (*Package, error) {
	var pkg opfPackage
	if err := decodeXML(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	p := &Package{
		Path:      opfPath,
		Version:   pkg.Version,
		UniqueID:  pkg.UniqueID,
		Manifest:  make(map[string]ManifestItem, len(pkg.Manifest.Items)),
		Direction: book.LTR,
	}
	p.Metadata = parseMetadata(&pkg.Metadata, pkg.UniqueID)

	for _, m := range pkg.Metadata.Meta {
		if m.Name == "cover" && m.Content != "" {
			p.CoverID = m.Content
			break
		}
	}

	for _, item := range pkg.Manifest.Items {
		if item.ID == "" {
			continue
		}
		mi := ManifestItem{
			ID:         item.ID,
			Href:       resolvePath(opfPath, item.Href),
			MediaType:  strings.TrimSpace(item.MediaType),
			Properties: strings.Fields(item.Properties),
		}
		if _, dup := p.Manifest[item.ID]; !dup {
			p.ManifestOrder = append(p.ManifestOrder, item.ID)
		}
		p.Manifest[item.ID] = mi
		if mi.HasProperty("nav") && p.NavPath == "" {
			p.NavPath = mi.Href
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		p.Spine = append(p.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		})
	}
	if pkg.Spine.Direction == "rtl" {
		p.Direction = book.RTL
	}

	if item, ok := p.Manifest[pkg.Spine.Toc]; ok {
		p.NCXPath = item.Href
	} else {
		for _, id := range p.ManifestOrder {
			if p.Manifest[id].MediaType == mediaTypeNCX {
				p.NCXPath = p.Manifest[id].Href
				break
			}
		}
	}

	for _, ref := range pkg.Guide.References {
		p.Guide = append(p.Guide, GuideReference{
			Type:  strings.ToLower(ref.Type),
			Title: ref.Title,
			Href:  resolveHref(opfPath, ref.Href),
		})
	}

	p.Rendition = parseRendition(pkg.Metadata.Meta)
	return p, nil
}

// parseMetadata maps DC elements and meta pairs into the common model.
func parseMetadata(meta *opfMetadata, uniqueID string) book.Metadata {
	md := book.Metadata{
		Title:       textValue(meta.Title),
		Language:    textValue(meta.Language),
		Publisher:   textValue(meta.Publisher),
		Description: textValue(meta.Description),
		Subject:     textValue(meta.Subject),
		Rights:      textValue(meta.Rights),
		Published:   textValue(meta.Date),
	}

	for _, m := range meta.Meta {
		entry := book.MetaEntry{
			Name:     m.Name,
			Property: m.Property,
			Refines:  m.Refines,
			Scheme:   m.Scheme,
			Value:    m.text(),
		}
		if entry.Key() == "" {
			continue
		}
		md.Meta = append(md.Meta, entry)
		if m.Property == "dcterms:modified" && m.Refines == "" {
			md.Modified = book.Scalar(entry.Value)
		}
	}

	// Identifier marked as unique-identifier goes first.
	var ids []string
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			ids = append(ids, strings.TrimSpace(id.Value))
		}
	}
	for _, id := range meta.Identifier {
		if id.ID != uniqueID {
			ids = append(ids, strings.TrimSpace(id.Value))
		}
		if id.Scheme != "" {
			md.Meta = append(md.Meta, book.MetaEntry{
				Property: "identifier-type",
				Refines:  "#" + id.ID,
				Scheme:   id.Scheme,
				Value:    strings.TrimSpace(id.Value),
			})
		}
	}
	md.Identifier = book.List(ids...)

	var creators, contributors []string
	for _, c := range meta.Creator {
		if isAuthorRole(creatorRole(c, &md)) {
			creators = append(creators, strings.TrimSpace(c.Name))
		} else {
			contributors = append(contributors, strings.TrimSpace(c.Name))
		}
	}
	for _, c := range meta.Contributor {
		contributors = append(contributors, strings.TrimSpace(c.Name))
	}
	md.Creator = book.List(creators...)
	md.Contributor = book.List(contributors...)
	return md
}

// creatorRole returns the MARC relator of a creator: the EPUB 3 refining
// meta wins over the EPUB 2 opf:role attribute.
func creatorRole(c opfCreator, md *book.Metadata) string {
	for _, e := range md.Refining(c.ID) {
		if e.Property == "role" {
			return e.Value
		}
	}
	return c.Role
}

func isAuthorRole(role string) bool {
	return role == "" || role == "aut"
}

// textValue turns repeated DC elements into a Value. Distinct languages on
// every element yield a localized value.
func textValue(items []opfText) book.Value {
	var values []string
	langs := make(map[string]string, len(items))
	localized := len(items) > 1
	for _, it := range items {
		v := strings.TrimSpace(it.Value)
		if v == "" {
			continue
		}
		values = append(values, v)
		if _, dup := langs[it.Lang]; it.Lang == "" || dup {
			localized = false
		}
		langs[it.Lang] = v
	}
	if localized && len(values) > 1 {
		return book.Localized(langs)
	}
	return book.List(values...)
}

func parseRendition(metas []opfMeta) book.Rendition {
	r := book.Rendition{Layout: book.LayoutReflowable}
	for _, m := range metas {
		if m.Refines != "" {
			continue
		}
		switch m.Property {
		case "rendition:layout":
			if m.text() == book.LayoutPrePaginated {
				r.Layout = book.LayoutPrePaginated
			}
		case "rendition:flow":
			r.Flow = m.text()
		case "rendition:orientation":
			r.Orientation = m.text()
		case "rendition:spread":
			r.Spread = m.text()
		}
		if m.Name == "fixed-layout" && m.text() == "true" {
			r.Layout = book.LayoutPrePaginated
		}
	}
	return r
}
