package epub

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover finds the cover image. Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" matched to an image manifest item
//  4. image basename containing "cover" (case-insensitive, SVG excluded)
//
// Returns nil if no cover image is found.
func (p *Package) DetectCover() *CoverInfo {
	found := func(item ManifestItem, method string) *CoverInfo {
		return &CoverInfo{
			ManifestID:      item.ID,
			Href:            item.Href,
			MediaType:       item.MediaType,
			DetectionMethod: method,
		}
	}

	for _, id := range p.ManifestOrder {
		if item := p.Manifest[id]; item.HasProperty("cover-image") {
			return found(item, "properties")
		}
	}

	if item, ok := p.Manifest[p.CoverID]; ok && p.CoverID != "" {
		return found(item, "meta")
	}

	for _, ref := range p.Guide {
		if ref.Type != "cover" {
			continue
		}
		href, _ := splitFragment(ref.Href)
		for _, id := range p.ManifestOrder {
			item := p.Manifest[id]
			if isImageMediaType(item.MediaType) && item.Href == href {
				return found(item, "guide")
			}
		}
	}

	for _, id := range p.ManifestOrder {
		item := p.Manifest[id]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return found(item, "filename")
		}
	}
	return nil
}

// Images returns every raster image of the manifest in document order.
func (p *Package) Images() []ManifestItem {
	var out []ManifestItem
	for _, id := range p.ManifestOrder {
		if item := p.Manifest[id]; isImageMediaType(item.MediaType) {
			out = append(out, item)
		}
	}
	return out
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
