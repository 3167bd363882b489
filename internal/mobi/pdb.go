package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/yuanying/bookcore/internal/book"
)

// PalmEpochOffset represents the difference in seconds between Unix epoch and Palm epoch.
// Palm epoch starts at 1904-01-01 00:00:00 UTC.
const PalmEpochOffset = 2082844800

const (
	pdbHeaderSize   = 78
	recordEntrySize = 8
)

// PDBHeader represents the fixed 78-byte Palm Database header.
// All fields are encoded in big-endian order.
type PDBHeader struct {
	Name               [32]byte // Database name (NULL padded)
	Attributes         uint16
	Version            uint16
	CreationDate       uint32
	ModificationDate   uint32
	BackupDate         uint32
	ModificationNumber uint32
	AppInfoOffset      uint32
	SortInfoOffset     uint32
	Type               [4]byte // "BOOK"
	Creator            [4]byte // "MOBI"
	UniqueSeed         uint32
	NextRecordList     uint32
	NumRecords         uint16
}

// DatabaseName returns the header name without NULL padding.
func (h *PDBHeader) DatabaseName() string {
	name := h.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// Created returns the creation timestamp.
func (h *PDBHeader) Created() time.Time { return PalmTime(h.CreationDate) }

// Modified returns the modification timestamp.
func (h *PDBHeader) Modified() time.Time { return PalmTime(h.ModificationDate) }

// RecordEntry represents a single record entry in the Palm Database record list.
type RecordEntry struct {
	Offset     uint32
	Attributes uint8
	UniqueID   [3]byte
}

// PDB contains the Palm Database header, the record list and the length of
// every record.
type PDB struct {
	Header  PDBHeader
	Records []RecordEntry
	Lengths []int
}

// PalmTime converts a PDB timestamp to time. Values with the high bit clear
// are treated as Unix seconds, the way some converters write them.
func PalmTime(v uint32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v&0x80000000 == 0 {
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Unix(int64(v)-PalmEpochOffset, 0).UTC()
}

// ReadPDB decodes the header and record list of a Palm Database. Each record
// runs up to the next record's offset, the last one to the end of data.
func ReadPDB(data []byte) (*PDB, error) {
	if len(data) < pdbHeaderSize {
		return nil, fmt.Errorf("%w: PDB header truncated (%d bytes)", book.ErrInvalidContainer, len(data))
	}

	p := &PDB{}
	if err := binary.Read(bytes.NewReader(data[:pdbHeaderSize]), binary.BigEndian, &p.Header); err != nil {
		return nil, fmt.Errorf("%w: failed to decode PDB header: %v", book.ErrInvalidContainer, err)
	}

	n := int(p.Header.NumRecords)
	tableEnd := pdbHeaderSize + n*recordEntrySize
	if n == 0 || tableEnd > len(data) {
		return nil, fmt.Errorf("%w: record list of %d entries does not fit", book.ErrInvalidContainer, n)
	}

	p.Records = make([]RecordEntry, n)
	for i := range p.Records {
		entry := data[pdbHeaderSize+i*recordEntrySize:]
		p.Records[i] = RecordEntry{
			Offset:     binary.BigEndian.Uint32(entry[0:4]),
			Attributes: entry[4],
			UniqueID:   [3]byte{entry[5], entry[6], entry[7]},
		}
	}

	p.Lengths = make([]int, n)
	for i, rec := range p.Records {
		start := int64(rec.Offset)
		end := int64(len(data))
		if i+1 < n {
			end = int64(p.Records[i+1].Offset)
		}
		switch {
		case start < int64(tableEnd):
			return nil, fmt.Errorf("%w: record %d starts inside the record list", book.ErrInvalidContainer, i)
		case start > int64(len(data)) || end > int64(len(data)):
			return nil, fmt.Errorf("%w: record %d extends past end of file", book.ErrInvalidContainer, i)
		case end < start:
			return nil, fmt.Errorf("%w: record %d offset out of order", book.ErrInvalidContainer, i)
		}
		p.Lengths[i] = int(end - start)
	}
	return p, nil
}
