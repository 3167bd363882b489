package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/yuanying/bookcore/internal/book"
)

const (
	// maxDecompressSize guards against zip bombs.
	maxDecompressSize int64 = 256 << 20

	// Bounds of the eager cache filled at construction.
	maxCachedEntries       = 512
	maxCachedBytes   int64 = 32 << 20

	epubMimetype = "application/epub+zip"
)

var (
	ErrInvalidMimetype    = errors.New("epub: invalid mimetype, must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("epub: mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("epub: mimetype file not found")
	ErrContainerNotFound  = errors.New("epub: META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("epub: OPF path not found in container.xml")
	ErrPackageNotFound    = errors.New("epub: package document not found")
	ErrInvalidPackage     = errors.New("epub: malformed package document")
	ErrDRMProtected       = errors.New("epub: content is DRM protected")
)

// Reader is the EPUB loader. Structural entries are read once at
// construction into a bounded cache; everything else is read from the
// archive on demand.
type Reader struct {
	zr     *zip.Reader
	closer io.Closer

	files map[string]*zip.File
	lower map[string]*zip.File
	names []string

	cache      map[string][]byte
	cacheBytes int64

	limit    int64
	warnings []string
}

// Open opens an EPUB file from disk.
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat EPUB: %w", err)
	}
	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads an EPUB archive from ra.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", book.ErrInvalidContainer, err)
	}

	r := &Reader{
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
		cache: make(map[string][]byte),
		limit: maxDecompressSize,
	}

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !isSafePath(f.Name) {
			r.warnf("skipping unsafe entry %q", f.Name)
			continue
		}
		name := normalizePath(f.Name)
		if _, dup := r.files[name]; dup {
			continue
		}
		r.files[name] = f
		r.names = append(r.names, name)
		if low := strings.ToLower(name); r.lower[low] == nil {
			r.lower[low] = f
		}
	}
	sort.Sort(natural.StringSlice(r.names))

	r.preload()
	r.validateMimetype()
	return r, nil
}

// preload fills the eager tier with structural entries.
func (r *Reader) preload() {
	for _, name := range r.names {
		if len(r.cache) >= maxCachedEntries {
			return
		}
		if !isStructural(name) {
			continue
		}
		f := r.files[name]
		if r.cacheBytes+int64(f.UncompressedSize64) > maxCachedBytes {
			continue
		}
		data, err := readZipFile(f, r.limit)
		if err != nil {
			r.warnf("unable to preload %s: %v", name, err)
			continue
		}
		r.cache[name] = data
		r.cacheBytes += int64(len(data))
	}
}

func isStructural(name string) bool {
	if name == "META-INF/container.xml" {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".opf", ".ncx", ".xhtml", ".html", ".htm", ".xml":
		return true
	}
	return false
}

// validateMimetype records a warning when the mimetype entry is missing,
// compressed or wrong. Many readers accept such books.
func (r *Reader) validateMimetype() {
	f, ok := r.files["mimetype"]
	if !ok {
		r.warnf("%v", ErrMimetypeNotFound)
		return
	}
	if f.Method != zip.Store {
		r.warnf("%v", ErrMimetypeCompressed)
	}
	content, err := readZipFile(f, 1024)
	if err != nil {
		r.warnf("failed to read mimetype: %v", err)
		return
	}
	if strings.TrimSpace(string(content)) != epubMimetype {
		r.warnf("%v", ErrInvalidMimetype)
	}
}

func (r *Reader) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns problems found while opening the archive.
func (r *Reader) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// Entries lists archive entry names in natural order.
func (r *Reader) Entries() []string {
	return append([]string(nil), r.names...)
}

// Cached reports whether name is held by the eager cache.
func (r *Reader) Cached(name string) bool {
	_, ok := r.cache[normalizePath(name)]
	return ok
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) lookup(name string) (*zip.File, bool) {
	name = normalizePath(name)
	if f, ok := r.files[name]; ok {
		return f, true
	}
	f, ok := r.lower[strings.ToLower(name)]
	return f, ok
}

// LoadBytes returns the content of an entry.
func (r *Reader) LoadBytes(name string) ([]byte, error) {
	if data, ok := r.cache[normalizePath(name)]; ok {
		return bytes.Clone(data), nil
	}
	f, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("epub: %s: %w", name, book.ErrResourceNotFound)
	}
	if data, ok := r.cache[normalizePath(f.Name)]; ok {
		return bytes.Clone(data), nil
	}
	return readZipFile(f, r.limit)
}

// LoadText returns the content of an entry as text, without a leading BOM.
func (r *Reader) LoadText(name string) (string, error) {
	data, err := r.LoadBytes(name)
	if err != nil {
		return "", err
	}
	return string(stripBOM(data)), nil
}

// Size returns the uncompressed size of an entry.
func (r *Reader) Size(name string) (int64, error) {
	if data, ok := r.cache[normalizePath(name)]; ok {
		return int64(len(data)), nil
	}
	f, ok := r.lookup(name)
	if !ok {
		return 0, fmt.Errorf("epub: %s: %w", name, book.ErrResourceNotFound)
	}
	return int64(f.UncompressedSize64), nil
}

// Has reports whether the archive contains name.
func (r *Reader) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// readZipFile reads an entry, refusing declared or actual sizes over limit.
func readZipFile(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("epub: zip entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("epub: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("epub: zip entry %s decompressed size exceeds limit (%d bytes)", f.Name, limit)
	}
	return data, nil
}

// normalizePath removes a leading ./ or / from archive names.
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// isSafePath rejects names escaping the archive root.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// resolvePath resolves href against the directory of base. Empty result means
// the href is absolute, external or escapes the archive.
func resolvePath(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") || strings.Contains(href, "://") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(base), href))
	if !isSafePath(cleaned) {
		return ""
	}
	return cleaned
}

// resolveHref resolves an href keeping its fragment.
func resolveHref(base, href string) string {
	p, frag := splitFragment(href)
	if p == "" {
		if frag == "" {
			return ""
		}
		return normalizePath(base) + "#" + frag
	}
	resolved := resolvePath(base, p)
	if resolved == "" || frag == "" {
		return resolved
	}
	return resolved + "#" + frag
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (p, fragment string) {
	p, fragment, _ = strings.Cut(src, "#")
	return p, fragment
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
