package pdf

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/yuanying/bookcore/internal/book"
)

// ResourceDocument is the only resource a PDF loader exposes.
const ResourceDocument = "document"

var versionPattern = regexp.MustCompile(`%PDF-(\d\.\d)`)

// Loader holds a PDF file as one opaque blob.
type Loader struct {
	data []byte
}

// Open reads a PDF file from disk.
func Open(name string) (*Loader, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return NewLoader(data)
}

// NewLoader wraps data. The header is checked so obvious non-PDF input
// fails before an engine sees it.
func NewLoader(data []byte) (*Loader, error) {
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", book.ErrInvalidContainer)
	}
	return &Loader{data: data}, nil
}

// Version returns the header version, such as "1.7".
func (l *Loader) Version() string {
	m := versionPattern.FindSubmatch(l.data[:min(len(l.data), 1024)])
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Bytes returns the document blob. It must not be modified.
func (l *Loader) Bytes() []byte { return l.data }

func (l *Loader) LoadBytes(name string) ([]byte, error) {
	if name != ResourceDocument {
		return nil, fmt.Errorf("pdf: %s: %w", name, book.ErrResourceNotFound)
	}
	return bytes.Clone(l.data), nil
}

func (l *Loader) LoadText(name string) (string, error) {
	if name != ResourceDocument {
		return "", fmt.Errorf("pdf: %s: %w", name, book.ErrResourceNotFound)
	}
	return string(l.data), nil
}

func (l *Loader) Size(name string) (int64, error) {
	if name != ResourceDocument {
		return 0, fmt.Errorf("pdf: %s: %w", name, book.ErrResourceNotFound)
	}
	return int64(len(l.data)), nil
}

// Close is a no-op; the loader holds no file handle.
func (l *Loader) Close() error { return nil }
