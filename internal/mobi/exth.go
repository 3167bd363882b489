package mobi

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yuanying/bookcore/internal/book"
)

// EXTH record types with a dedicated meaning, numbered as Kindle files
// write them: 100 is the author, 101 the publisher and 105 a subject. The
// title lives in 503; 102 (imprint) has no field and is kept as a meta entry.
const (
	exthCreator     uint32 = 100
	exthPublisher   uint32 = 101
	exthDescription uint32 = 103
	exthISBN        uint32 = 104
	exthSubject     uint32 = 105
	exthPublished   uint32 = 106
	exthContributor uint32 = 108
	exthRights      uint32 = 109
	exthASIN        uint32 = 113
	exthFixedLayout uint32 = 122
	exthCoverOffset uint32 = 201
	exthThumbOffset uint32 = 202
	exthTitle       uint32 = 503
	exthLanguage    uint32 = 524
	exthPPD         uint32 = 527
)

// numericEXTH lists record types whose payload is a big-endian integer.
var numericEXTH = map[uint32]bool{
	115: true, 116: true, 121: true, 125: true, 131: true,
	201: true, 202: true, 203: true, 204: true, 205: true, 206: true, 207: true,
	300: true, 401: true, 402: true, 403: true, 404: true, 406: true,
}

// EXTHRecord represents a single EXTH metadata record.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// Uint32 decodes a numeric payload of up to four bytes.
func (r EXTHRecord) Uint32() (uint32, bool) {
	if len(r.Data) == 0 || len(r.Data) > 4 {
		return 0, false
	}
	var v uint32
	for _, b := range r.Data {
		v = v<<8 | uint32(b)
	}
	return v, true
}

// String returns the payload as text.
func (r EXTHRecord) String() string {
	return strings.TrimRight(string(r.Data), "\x00")
}

// ParseEXTH decodes the records of an EXTH block. On a malformed record it
// returns the records decoded so far together with the error.
func ParseEXTH(data []byte) ([]EXTHRecord, error) {
	if len(data) < 12 || string(data[:4]) != "EXTH" {
		return nil, fmt.Errorf("mobi: EXTH identifier not found")
	}
	headerLen := binary.BigEndian.Uint32(data[4:])
	count := binary.BigEndian.Uint32(data[8:])
	if int64(headerLen) < 12 || int64(headerLen) > int64(len(data)) {
		return nil, fmt.Errorf("mobi: EXTH length %d exceeds record 0", headerLen)
	}
	data = data[:headerLen]

	var records []EXTHRecord
	off := 12
	for i := uint32(0); i < count; i++ {
		if off+8 > len(data) {
			return records, fmt.Errorf("mobi: EXTH record %d truncated", i)
		}
		typ := binary.BigEndian.Uint32(data[off:])
		n := binary.BigEndian.Uint32(data[off+4:])
		if n < 8 || int64(off)+int64(n) > int64(len(data)) {
			return records, fmt.Errorf("mobi: EXTH record %d has invalid length %d", i, n)
		}
		records = append(records, EXTHRecord{Type: typ, Data: data[off+8 : off+int(n)]})
		off += int(n)
	}
	return records, nil
}

// exthInfo is what EXTH contributes beyond Metadata.
type exthInfo struct {
	coverOffset uint32
	thumbOffset uint32
	hasCover    bool
	hasThumb    bool
	fixedLayout bool
	rtl         bool
}

// applyEXTH maps records into md.
func applyEXTH(md *book.Metadata, records []EXTHRecord) exthInfo {
	var info exthInfo
	for _, rec := range records {
		s := strings.TrimSpace(rec.String())
		switch rec.Type {
		case exthCreator:
			md.Creator = md.Creator.Append(s)
		case exthPublisher:
			md.Publisher = md.Publisher.Append(s)
		case exthDescription:
			md.Description = md.Description.Append(s)
		case exthISBN:
			md.Identifier = md.Identifier.Append(s)
			md.Meta = append(md.Meta, book.MetaEntry{Name: "isbn", Scheme: "ISBN", Value: s})
		case exthSubject:
			md.Subject = md.Subject.Append(s)
		case exthPublished:
			md.Published = md.Published.Append(s)
		case exthContributor:
			md.Contributor = md.Contributor.Append(s)
		case exthRights:
			md.Rights = md.Rights.Append(s)
		case exthASIN:
			md.Identifier = md.Identifier.Append(s)
			md.Meta = append(md.Meta, book.MetaEntry{Name: "asin", Scheme: "ASIN", Value: s})
		case exthTitle:
			md.Title = md.Title.Append(s)
		case exthLanguage:
			md.Language = md.Language.Append(s)
		case exthFixedLayout:
			info.fixedLayout = strings.EqualFold(s, "true")
		case exthPPD:
			info.rtl = strings.EqualFold(s, "rtl")
		case exthCoverOffset:
			info.coverOffset, info.hasCover = rec.Uint32()
		case exthThumbOffset:
			info.thumbOffset, info.hasThumb = rec.Uint32()
		default:
			if v, ok := exthValue(rec); ok {
				md.Meta = append(md.Meta, book.MetaEntry{Name: "exth:" + strconv.FormatUint(uint64(rec.Type), 10), Value: v})
			}
		}
	}
	return info
}

// exthValue renders an unmapped record, or reports false for binary payloads.
func exthValue(rec EXTHRecord) (string, bool) {
	if numericEXTH[rec.Type] {
		if v, ok := rec.Uint32(); ok {
			return strconv.FormatUint(uint64(v), 10), true
		}
		return "", false
	}
	s := rec.String()
	if s == "" || !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}
