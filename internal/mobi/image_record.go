package mobi

import (
	"github.com/h2non/filetype"
)

// imageMediaType sniffs the media type of an image record. Non-image
// records (FLIS, FCIS, EOF markers, fonts) yield "".
func imageMediaType(data []byte) string {
	if !filetype.IsImage(data) {
		return ""
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
