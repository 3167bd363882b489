package mobi

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
)

const mediaTypeHTML = "text/html"

// Parse builds a book from the records of l. Sections decompress their
// record on first load.
func Parse(l *Loader, log *zap.Logger) (*book.Book, error) {
	if log == nil {
		log = zap.NewNop()
	}
	warn := book.NewWarnings(log)

	rec0, err := l.Record(0)
	if err != nil {
		return nil, err
	}
	r0, err := ParseRecord0(rec0)
	if err != nil {
		return nil, err
	}
	if r0.PalmDOC.Encryption != 0 {
		return nil, fmt.Errorf("%w: encryption type %d", ErrDRMProtected, r0.PalmDOC.Encryption)
	}
	decompress, err := decompressor(r0.PalmDOC.Compression)
	if err != nil {
		return nil, err
	}

	encoding := EncodingCP1252
	var extraFlags uint16
	if h := r0.MOBI; h != nil {
		encoding = h.TextEncoding
		extraFlags = h.ExtraRecordDataFlags
		if encoding != EncodingUTF8 && encoding != EncodingCP1252 {
			warn.Addf("unknown text encoding %d, decoding as cp1252", encoding)
		}
	}
	log.Debug("Record 0 parsed",
		zap.String("compression", compressionName(r0.PalmDOC.Compression)),
		zap.String("encoding", encodingName(encoding)),
		zap.Int("records", l.RecordCount()),
		zap.Bool("mobi", r0.MOBI != nil))

	b := &book.Book{
		Format:    book.FormatMOBI,
		Dir:       book.LTR,
		Rendition: book.Rendition{Layout: book.LayoutReflowable},
		Container: book.ContainerInfo{
			Compression:  compressionName(r0.PalmDOC.Compression),
			TextEncoding: encodingName(encoding),
			RecordCount:  l.RecordCount(),
		},
	}

	var info exthInfo
	if r0.EXTH != nil {
		records, err := ParseEXTH(r0.EXTH)
		if err != nil {
			warn.Addf("EXTH: %v", err)
		}
		info = applyEXTH(&b.Metadata, records)
	}
	fillMetadata(&b.Metadata, l.PDB(), r0)
	if info.fixedLayout {
		b.Rendition.Layout = book.LayoutPrePaginated
	}
	if info.rtl {
		b.Dir = book.RTL
	}
	if r0.MOBI != nil {
		b.Container.Version = strconv.FormatUint(uint64(r0.MOBI.FileVersion), 10)
	}

	first, last := contentRange(r0, l.RecordCount())
	for n := first; n <= last; n++ {
		size, _ := l.Size(RecordName(n))
		id := "record-" + strconv.Itoa(n)
		s := book.NewSection(id, func() (string, error) {
			return loadTextRecord(l, n, extraFlags, decompress, encoding)
		})
		s.MediaType = mediaTypeHTML
		if r0.MOBI == nil {
			s.MediaType = book.MediaTypePlainText
		}
		s.Size = size
		s.CFI = book.SectionCFI(len(b.Sections), id)
		b.Sections = append(b.Sections, s)
		b.TOC = append(b.TOC, book.TOCItem{Label: fmt.Sprintf("Section %d", len(b.Sections)), Href: id})
	}
	if len(b.Sections) == 0 {
		warn.Addf("no text records")
	}

	if h := r0.MOBI; h != nil && h.HasImages() {
		b.Images = imageResources(l, int(h.FirstImageIndex))
		b.Cover = coverResource(l, int(h.FirstImageIndex), info, warn)
	}

	b.Warnings = warn.List()
	b.Navigator = book.IndexNavigator{Book: b}
	return b, nil
}

// contentRange returns the inclusive record range holding book text,
// clipped to the text record count and to the first image record.
func contentRange(r0 *Record0, count int) (int, int) {
	first, last := 1, int(r0.PalmDOC.TextRecordCount)
	if h := r0.MOBI; h != nil {
		if h.FirstContentRecord > 0 {
			first = int(h.FirstContentRecord)
		}
		if l := int(h.LastContentRecord); l > 0 && l < last {
			last = l
		}
		if h.HasImages() && int(h.FirstImageIndex) <= last {
			last = int(h.FirstImageIndex) - 1
		}
	}
	if last >= count {
		last = count - 1
	}
	return first, last
}

func loadTextRecord(l *Loader, n int, flags uint16, decompress decompressFunc, encoding uint32) (string, error) {
	rec, err := l.Record(n)
	if err != nil {
		return "", err
	}
	rec, err = stripTrailingEntries(rec, flags)
	if err != nil {
		return "", fmt.Errorf("record %d: %w", n, err)
	}
	data, err := decompress(rec)
	if err != nil {
		return "", fmt.Errorf("record %d: %w", n, err)
	}
	return decodeText(data, encoding)
}

// fillMetadata applies the title and language fallbacks.
func fillMetadata(md *book.Metadata, p *PDB, r0 *Record0) {
	if md.Title.IsZero() {
		if r0.FullName != "" {
			md.Title = book.Scalar(r0.FullName)
		} else {
			md.Title = book.Scalar(p.Header.DatabaseName())
		}
	}
	if md.Language.IsZero() && r0.MOBI != nil {
		md.Language = book.Scalar(LanguageTag(r0.MOBI.Locale))
	}
	if md.Modified.IsZero() {
		if t := p.Header.Modified(); !t.IsZero() {
			md.Modified = book.Scalar(t.Format(time.RFC3339))
		}
	}
}

func imageResources(l *Loader, first int) []*book.Resource {
	var images []*book.Resource
	for n := first; n < l.RecordCount(); n++ {
		rec, err := l.Record(n)
		if err != nil {
			break
		}
		mt := imageMediaType(rec)
		if mt == "" {
			break
		}
		images = append(images, recordResource(l, n, mt))
	}
	return images
}

func coverResource(l *Loader, first int, info exthInfo, warn *book.Warnings) *book.Resource {
	var offset uint32
	switch {
	case info.hasCover:
		offset = info.coverOffset
	case info.hasThumb:
		offset = info.thumbOffset
	default:
		return nil
	}
	n := first + int(offset)
	rec, err := l.Record(n)
	if err != nil {
		warn.Addf("cover record %d: %v", n, err)
		return nil
	}
	mt := imageMediaType(rec)
	if mt == "" {
		warn.Addf("cover record %d is not an image", n)
		return nil
	}
	return recordResource(l, n, mt)
}

func recordResource(l *Loader, n int, mediaType string) *book.Resource {
	name := RecordName(n)
	return book.NewResource(name, mediaType, func() ([]byte, error) { return l.LoadBytes(name) })
}
