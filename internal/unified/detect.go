package unified

import (
	"path/filepath"
	"strings"

	"github.com/yuanying/bookcore/internal/book"
)

var extensions = map[string]book.Format{
	".epub": book.FormatEPUB,
	".mobi": book.FormatMOBI,
	".azw":  book.FormatMOBI,
	".azw3": book.FormatMOBI,
	".prc":  book.FormatMOBI,
	".pdb":  book.FormatMOBI,
	".pdf":  book.FormatPDF,
}

// DetectFormat maps a file name to a format by its extension.
func DetectFormat(name string) (book.Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// ParseFormat validates an explicit format tag.
func ParseFormat(s string) (book.Format, bool) {
	switch f := book.Format(strings.ToLower(strings.TrimSpace(s))); f {
	case book.FormatEPUB, book.FormatMOBI, book.FormatPDF:
		return f, true
	}
	return "", false
}

func resolveFormat(name string, format book.Format) (book.Format, *Error) {
	if format != "" {
		f, ok := ParseFormat(string(format))
		if !ok {
			return "", newError(CodeUnsupportedFormat, "Unsupported format: "+string(format), nil)
		}
		return f, nil
	}
	f, ok := DetectFormat(name)
	if !ok {
		return "", newError(CodeUnsupportedFormat, "Unable to detect file format.", nil)
	}
	return f, nil
}
