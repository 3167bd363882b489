package mobi

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unicode/utf8"
)

var pngStub = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

var gifStub = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")

// testPDB builds a Palm Database from record bodies.
func testPDB(t *testing.T, name string, records [][]byte) []byte {
	t.Helper()
	sizes := make([]int, len(records))
	for i, r := range records {
		sizes[i] = len(r)
	}
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	header := PDBHeader{
		Name:             truncateDatabaseName(name),
		CreationDate:     palmEpochSeconds(created),
		ModificationDate: palmEpochSeconds(created),
		Type:             [4]byte{'B', 'O', 'O', 'K'},
		Creator:          [4]byte{'M', 'O', 'B', 'I'},
		NumRecords:       uint16(len(records)),
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		t.Fatalf("failed to encode PDB header: %v", err)
	}
	for _, rec := range buildRecordEntries(sizes) {
		binary.Write(buf, binary.BigEndian, rec.Offset)
		buf.WriteByte(rec.Attributes)
		buf.Write(rec.UniqueID[:])
	}
	// 2-byte gap after the record list
	buf.Write([]byte{0, 0})
	for _, r := range records {
		buf.Write(r)
	}
	return buf.Bytes()
}

func palmEpochSeconds(t time.Time) uint32 {
	return uint32(t.Unix()) + PalmEpochOffset
}

// buildRecordEntries lays records out after the header, the record list and
// its 2-byte gap.
func buildRecordEntries(recordSizes []int) []RecordEntry {
	records := make([]RecordEntry, len(recordSizes))
	offset := uint32(pdbHeaderSize + len(recordSizes)*recordEntrySize + 2)
	for i, size := range recordSizes {
		records[i] = RecordEntry{
			Offset:   offset,
			UniqueID: [3]byte{byte(i >> 16), byte(i >> 8), byte(i)},
		}
		offset += uint32(size)
	}
	return records
}

// truncateDatabaseName truncates the database name to 31 bytes and NULL pads to 32 bytes.
func truncateDatabaseName(name string) [32]byte {
	var result [32]byte
	var buf []byte
	for i := 0; i < len(name); {
		_, size := utf8.DecodeRuneInString(name[i:])
		if len(buf)+size > 31 {
			break
		}
		buf = append(buf, name[i:i+size]...)
		i += size
	}
	copy(result[:], buf)
	return result
}

// record0 describes a record 0 to build.
type record0 struct {
	compression  uint16
	encryption   uint16
	textLength   uint32
	textRecords  uint16
	plain        bool // PalmDOC only, no MOBI header
	encoding     uint32
	version      uint32
	locale       uint32
	firstImage   uint32 // 0 means none
	firstContent uint16
	lastContent  uint16
	extraFlags   uint16
	fullName     string
	exth         []EXTHRecord
}

const testMOBIHeaderLength = 0xE8

func (r record0) bytes() []byte {
	palm := make([]byte, PalmDOCHeaderSize)
	binary.BigEndian.PutUint16(palm[0:], r.compression)
	binary.BigEndian.PutUint32(palm[4:], r.textLength)
	binary.BigEndian.PutUint16(palm[8:], r.textRecords)
	binary.BigEndian.PutUint16(palm[10:], 4096)
	binary.BigEndian.PutUint16(palm[12:], r.encryption)
	if r.plain {
		return palm
	}

	rec := make([]byte, PalmDOCHeaderSize+testMOBIHeaderLength)
	copy(rec, palm)
	copy(rec[16:], "MOBI")
	put32 := func(off int, v uint32) { binary.BigEndian.PutUint32(rec[off:], v) }
	put32(20, testMOBIHeaderLength)
	put32(24, 2)
	encoding := r.encoding
	if encoding == 0 {
		encoding = EncodingUTF8
	}
	put32(28, encoding)
	put32(32, 0xCAFE)
	put32(36, r.version)
	put32(80, uint32(r.textRecords)+1)
	put32(92, r.locale)
	firstImage := r.firstImage
	if firstImage == 0 {
		firstImage = noRecord
	}
	put32(108, firstImage)
	put32(168, noRecord)
	binary.BigEndian.PutUint16(rec[192:], r.firstContent)
	binary.BigEndian.PutUint16(rec[194:], r.lastContent)
	binary.BigEndian.PutUint16(rec[242:], r.extraFlags)

	if len(r.exth) > 0 {
		put32(128, EXTHFlagPresent)
		rec = append(rec, exthBytes(r.exth)...)
	}
	if r.fullName != "" {
		put32(84, uint32(len(rec)))
		put32(88, uint32(len(r.fullName)))
		rec = append(rec, r.fullName...)
		rec = append(rec, 0, 0)
	}
	return rec
}

// exthBytes serializes records as "EXTH"(4) + headerLength(4) + recordCount(4) + records + padding.
func exthBytes(records []EXTHRecord) []byte {
	size := 12
	for _, rec := range records {
		size += 8 + len(rec.Data)
	}
	padding := (4 - size%4) % 4

	buf := bytes.NewBuffer(make([]byte, 0, size+padding))
	buf.WriteString("EXTH")
	binary.Write(buf, binary.BigEndian, uint32(size+padding))
	binary.Write(buf, binary.BigEndian, uint32(len(records)))
	for _, rec := range records {
		binary.Write(buf, binary.BigEndian, rec.Type)
		binary.Write(buf, binary.BigEndian, uint32(8+len(rec.Data)))
		buf.Write(rec.Data)
	}
	buf.Write(make([]byte, padding))
	return buf.Bytes()
}

func stringRecord(typ uint32, s string) EXTHRecord {
	return EXTHRecord{Type: typ, Data: []byte(s)}
}

func uint32Record(typ, v uint32) EXTHRecord {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, v)
	return EXTHRecord{Type: typ, Data: data}
}

// palmDocCompress applies PalmDoc compression so fixtures exercise every
// control byte class.
func palmDocCompress(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if bestLen, bestDist := findMatch(data, i); bestLen >= 3 {
			out = append(out, byte(0x80|(bestDist>>5)), byte(((bestDist&0x1F)<<3)|(bestLen-3)))
			i += bestLen
			continue
		}
		if data[i] == 0x20 && i+1 < len(data) && data[i+1] >= 0x40 && data[i+1] <= 0x7F {
			out = append(out, data[i+1]^0x80)
			i += 2
			continue
		}
		b := data[i]
		if b == 0x00 || (b >= 0x09 && b <= 0x7F) {
			out = append(out, b)
			i++
			continue
		}
		start := i
		for i < len(data) && i-start < 8 {
			b := data[i]
			if b == 0x00 || (b >= 0x09 && b <= 0x7F) {
				break
			}
			i++
		}
		out = append(out, byte(i-start))
		out = append(out, data[start:i]...)
	}
	return out
}

// findMatch searches for the longest match in the sliding window.
func findMatch(data []byte, pos int) (int, int) {
	if pos+3 > len(data) {
		return 0, 0
	}
	maxDist := min(2047, pos)
	maxLen := min(10, len(data)-pos)
	bestLen, bestDist := 0, 0
	for dist := 1; dist <= maxDist; dist++ {
		start := pos - dist
		n := 0
		for n < maxLen && data[start+n] == data[pos+n] {
			n++
		}
		if n >= 3 && n > bestLen {
			bestLen, bestDist = n, dist
			if bestLen == maxLen {
				break
			}
		}
	}
	return bestLen, bestDist
}

func openPDB(t *testing.T, data []byte) *Loader {
	t.Helper()
	l, err := NewLoader(data)
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	return l
}
