package unified

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	"github.com/yuanying/bookcore/internal/book"
)

const (
	thumbnailWidth   = 200
	thumbnailHeight  = 300
	thumbnailQuality = 85
	maxDecodePixels  = 100 * 1000 * 1000
)

// CoverImage is the decoded cover of a book. Thumbnail is a JPEG that fits
// thumbnailWidth x thumbnailHeight; it is nil when the image did not decode.
type CoverImage struct {
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Data      []byte `json:"-"`
	Thumbnail []byte `json:"-"`
}

// ImageInfo describes an embedded image without keeping its bytes.
type ImageInfo struct {
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Size      int    `json:"size"`
}

// mediaType prefers the declared type and falls back to content sniffing.
func mediaType(declared string, data []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return declared
}

func describeImage(r *book.Resource) (ImageInfo, error) {
	data, err := r.Bytes()
	if err != nil {
		return ImageInfo{}, err
	}
	info := ImageInfo{Href: r.Href, MediaType: mediaType(r.MediaType, data), Size: len(data)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	return info, nil
}

// loadCover reads the cover and renders its thumbnail. A cover that cannot
// be decoded is returned without dimensions together with a warning.
func loadCover(r *book.Resource) (*CoverImage, string, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, "", err
	}
	c := &CoverImage{Href: r.Href, MediaType: mediaType(r.MediaType, data), Data: data}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return c, fmt.Sprintf("cover %s: image decode failed: %v", r.Href, err), nil
	}
	c.Width, c.Height = cfg.Width, cfg.Height
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > maxDecodePixels {
		return c, fmt.Sprintf("cover %s: image too large to decode: %dx%d (%d pixels)", r.Href, cfg.Width, cfg.Height, pixels), nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return c, fmt.Sprintf("cover %s: image decode failed: %v", r.Href, err), nil
	}
	thumb := imaging.Fit(src, thumbnailWidth, thumbnailHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return c, "", fmt.Errorf("cover %s: jpeg encode failed: %w", r.Href, err)
	}
	c.Thumbnail = buf.Bytes()
	return c, "", nil
}
