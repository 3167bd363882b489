package mobi

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yuanying/bookcore/internal/book"
)

// Named resources exposed by Loader besides "record/<n>".
const (
	ResourcePDBHeader   = "pdb-header"
	ResourceMOBIHeader  = "mobi-header"
	ResourceRecordTable = "record-table"

	recordPrefix = "record/"
)

// Loader gives access to the records of an in-memory Palm Database.
type Loader struct {
	data []byte
	pdb  *PDB
}

// Open reads a PDB file from disk.
func Open(name string) (*Loader, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read MOBI: %w", err)
	}
	return NewLoader(data)
}

// NewLoader validates the PDB header and record list of data.
func NewLoader(data []byte) (*Loader, error) {
	p, err := ReadPDB(data)
	if err != nil {
		return nil, err
	}
	return &Loader{data: data, pdb: p}, nil
}

// RecordName returns the resource name of record n.
func RecordName(n int) string {
	return recordPrefix + strconv.Itoa(n)
}

// PDB returns the decoded database header and record list.
func (l *Loader) PDB() *PDB { return l.pdb }

// RecordCount returns the number of records.
func (l *Loader) RecordCount() int { return len(l.pdb.Records) }

// Record returns the bytes of record n. The slice aliases the loader's
// buffer and must not be modified.
func (l *Loader) Record(n int) ([]byte, error) {
	if n < 0 || n >= len(l.pdb.Records) {
		return nil, fmt.Errorf("mobi: record %d: %w", n, book.ErrResourceNotFound)
	}
	start := int(l.pdb.Records[n].Offset)
	return l.data[start : start+l.pdb.Lengths[n]], nil
}

func (l *Loader) resource(name string) ([]byte, error) {
	switch name {
	case ResourcePDBHeader:
		return l.data[:pdbHeaderSize], nil
	case ResourceRecordTable:
		return l.data[pdbHeaderSize : pdbHeaderSize+len(l.pdb.Records)*recordEntrySize], nil
	case ResourceMOBIHeader:
		return l.Record(0)
	}
	if rest, ok := strings.CutPrefix(name, recordPrefix); ok {
		n, err := strconv.Atoi(rest)
		if err == nil {
			return l.Record(n)
		}
	}
	return nil, fmt.Errorf("mobi: %s: %w", name, book.ErrResourceNotFound)
}

// LoadBytes returns a copy of the named resource.
func (l *Loader) LoadBytes(name string) ([]byte, error) {
	data, err := l.resource(name)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// LoadText returns the named resource as text without decoding.
func (l *Loader) LoadText(name string) (string, error) {
	data, err := l.resource(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Size returns the length of the named resource.
func (l *Loader) Size(name string) (int64, error) {
	data, err := l.resource(name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Close is a no-op; the loader holds no file handle.
func (l *Loader) Close() error { return nil }
