package mobi

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// languageCodeMap maps BCP 47 language tags to MOBI language codes.
var languageCodeMap = map[string]uint32{
	"en": 0x0409, // English (US)
	"ja": 0x0411, // Japanese
	"de": 0x0407, // German
	"fr": 0x040C, // French
	"es": 0x040A, // Spanish
	"it": 0x0410, // Italian
	"pt": 0x0416, // Portuguese (Brazil)
	"zh": 0x0804, // Chinese (Simplified)
	"ko": 0x0412, // Korean
	"nl": 0x0413, // Dutch
	"ru": 0x0419, // Russian
}

// primaryLanguages indexes languageCodeMap by the primary language id (the
// low byte of a locale).
var primaryLanguages = func() map[uint32]string {
	tags := make([]string, 0, len(languageCodeMap))
	for tag := range languageCodeMap {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	m := make(map[uint32]string, len(tags))
	for _, tag := range tags {
		m[languageCodeMap[tag]&0xFF] = tag
	}
	return m
}()

const (
	// CompressionNone indicates no compression.
	CompressionNone uint16 = 1
	// CompressionPalmDoc indicates PalmDoc compression.
	CompressionPalmDoc uint16 = 2
	// CompressionHuffCDIC indicates Huffman/CDIC compression ("DH").
	CompressionHuffCDIC uint16 = 17480

	// PalmDOCHeaderSize is the size of the PalmDOC header in bytes.
	PalmDOCHeaderSize = 16

	// EncodingUTF8 is the MOBI encoding code for UTF-8.
	EncodingUTF8 uint32 = 65001
	// EncodingCP1252 is the MOBI encoding code for Windows-1252.
	EncodingCP1252 uint32 = 1252

	// EXTHFlagPresent indicates that EXTH records are present.
	EXTHFlagPresent uint32 = 0x40

	// noRecord marks an absent record index.
	noRecord uint32 = 0xFFFFFFFF

	// extraFlagsMinHeader is the smallest MOBI header carrying extra record
	// data flags.
	extraFlagsMinHeader = 0xE4
)

// LanguageTag converts a MOBI locale to a BCP 47 language tag. Unknown
// locales yield "".
func LanguageTag(locale uint32) string {
	for tag, code := range languageCodeMap {
		if code == locale {
			return tag
		}
	}
	return primaryLanguages[locale&0xFF]
}

// PalmDOCHeader is the first 16 bytes of record 0.
type PalmDOCHeader struct {
	Compression     uint16
	TextLength      uint32
	TextRecordCount uint16
	RecordSize      uint16
	Encryption      uint16
}

// MOBIHeader holds the fields of the MOBI header read from record 0.
// Offsets in the comments are from the start of record 0.
type MOBIHeader struct {
	HeaderLength         uint32 // 20
	MOBIType             uint32 // 24
	TextEncoding         uint32 // 28
	UniqueID             uint32 // 32
	FileVersion          uint32 // 36
	FirstNonBookRecord   uint32 // 80
	FullNameOffset       uint32 // 84
	FullNameLength       uint32 // 88
	Locale               uint32 // 92
	FirstImageIndex      uint32 // 108
	HuffmanRecordOffset  uint32 // 112
	HuffmanRecordCount   uint32 // 116
	EXTHFlags            uint32 // 128
	DRMOffset            uint32 // 168
	DRMCount             uint32 // 172
	DRMSize              uint32 // 176
	DRMFlags             uint32 // 180
	FirstContentRecord   uint16 // 192
	LastContentRecord    uint16 // 194
	ExtraRecordDataFlags uint16 // 242
}

// HasEXTH reports whether an EXTH block follows the header.
func (h *MOBIHeader) HasEXTH() bool {
	return h.EXTHFlags&EXTHFlagPresent != 0
}

// HasImages reports whether the header points at image records.
func (h *MOBIHeader) HasImages() bool {
	return h.FirstImageIndex != 0 && h.FirstImageIndex != noRecord
}

// Record0 is the decoded content of the first record.
type Record0 struct {
	PalmDOC PalmDOCHeader
	MOBI    *MOBIHeader // nil for plain PalmDOC books
	// FullName is the book title stored in record 0.
	FullName string
	// EXTH is the raw EXTH block, nil when absent.
	EXTH []byte
}

// ParseRecord0 decodes the PalmDOC header and, when present, the MOBI header
// and the location of the EXTH block.
func ParseRecord0(rec []byte) (*Record0, error) {
	if len(rec) < PalmDOCHeaderSize {
		return nil, fmt.Errorf("%w: record 0 too short (%d bytes)", ErrInvalidHeader, len(rec))
	}
	r0 := &Record0{
		PalmDOC: PalmDOCHeader{
			Compression:     binary.BigEndian.Uint16(rec[0:]),
			TextLength:      binary.BigEndian.Uint32(rec[4:]),
			TextRecordCount: binary.BigEndian.Uint16(rec[8:]),
			RecordSize:      binary.BigEndian.Uint16(rec[10:]),
			Encryption:      binary.BigEndian.Uint16(rec[12:]),
		},
	}
	if len(rec) < PalmDOCHeaderSize+8 || string(rec[16:20]) != "MOBI" {
		return r0, nil
	}

	hl := binary.BigEndian.Uint32(rec[20:])
	end := PalmDOCHeaderSize + int(hl)
	if hl < 8 || end > len(rec) {
		return nil, fmt.Errorf("%w: MOBI header length %d exceeds record 0", ErrInvalidHeader, hl)
	}
	u32 := func(off int) uint32 {
		if off+4 > end {
			return 0
		}
		return binary.BigEndian.Uint32(rec[off:])
	}
	u16 := func(off int) uint16 {
		if off+2 > end {
			return 0
		}
		return binary.BigEndian.Uint16(rec[off:])
	}

	h := &MOBIHeader{
		HeaderLength:        hl,
		MOBIType:            u32(24),
		TextEncoding:        u32(28),
		UniqueID:            u32(32),
		FileVersion:         u32(36),
		FirstNonBookRecord:  u32(80),
		FullNameOffset:      u32(84),
		FullNameLength:      u32(88),
		Locale:              u32(92),
		FirstImageIndex:     u32(108),
		HuffmanRecordOffset: u32(112),
		HuffmanRecordCount:  u32(116),
		EXTHFlags:           u32(128),
		DRMOffset:           u32(168),
		DRMCount:            u32(172),
		DRMSize:             u32(176),
		DRMFlags:            u32(180),
		FirstContentRecord:  u16(192),
		LastContentRecord:   u16(194),
	}
	if h.TextEncoding == 0 {
		h.TextEncoding = EncodingCP1252
	}
	if hl >= extraFlagsMinHeader {
		h.ExtraRecordDataFlags = u16(242)
	}
	r0.MOBI = h

	if h.FullNameLength > 0 {
		start, n := int(h.FullNameOffset), int(h.FullNameLength)
		if start >= PalmDOCHeaderSize && start+n <= len(rec) {
			r0.FullName = string(rec[start : start+n])
		}
	}
	if h.HasEXTH() && end < len(rec) {
		r0.EXTH = rec[end:]
	}
	return r0, nil
}
