package mobi

import (
	"encoding/binary"
	"testing"

	"github.com/yuanying/bookcore/internal/book"
)

func TestParseEXTH(t *testing.T) {
	data := exthBytes([]EXTHRecord{
		stringRecord(exthTitle, "Title"),
		uint32Record(exthCoverOffset, 2),
		stringRecord(exthCreator, "A"),
	})
	records, err := ParseEXTH(data)
	if err != nil {
		t.Fatalf("ParseEXTH() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[0].String() != "Title" {
		t.Errorf("records[0] = %q", records[0].String())
	}
	if v, ok := records[1].Uint32(); !ok || v != 2 {
		t.Errorf("records[1].Uint32() = %d, %v, want 2", v, ok)
	}
}

func TestParseEXTH_MalformedKeepsEarlierRecords(t *testing.T) {
	data := exthBytes([]EXTHRecord{stringRecord(exthTitle, "Title"), stringRecord(exthCreator, "A")})
	// second record claims to run past the block
	binary.BigEndian.PutUint32(data[12+8+5+4:], 200)

	records, err := ParseEXTH(data)
	if err == nil {
		t.Fatal("ParseEXTH() error = nil, want malformed record error")
	}
	if len(records) != 1 || records[0].String() != "Title" {
		t.Fatalf("ParseEXTH() = %+v, want the first record", records)
	}
}

func TestParseEXTH_BadMagic(t *testing.T) {
	if _, err := ParseEXTH([]byte("NOPE\x00\x00\x00\x0c\x00\x00\x00\x00")); err == nil {
		t.Fatal("ParseEXTH() accepted a block without the EXTH identifier")
	}
}

func TestApplyEXTH(t *testing.T) {
	var md book.Metadata
	info := applyEXTH(&md, []EXTHRecord{
		stringRecord(exthTitle, "The Title"),
		stringRecord(exthCreator, "First Author"),
		stringRecord(exthCreator, "Second Author"),
		stringRecord(exthPublisher, "Pub"),
		stringRecord(exthDescription, "About"),
		stringRecord(exthISBN, "978-0-306-40615-7"),
		stringRecord(exthSubject, "Fiction"),
		stringRecord(exthPublished, "2020-05-01"),
		stringRecord(exthContributor, "Helper"),
		stringRecord(exthRights, "CC0"),
		stringRecord(exthASIN, "B000000000"),
		stringRecord(exthLanguage, "fr"),
		stringRecord(exthFixedLayout, "true"),
		stringRecord(exthPPD, "rtl"),
		uint32Record(exthCoverOffset, 1),
		uint32Record(exthThumbOffset, 2),
		stringRecord(501, "EBOK"),
		uint32Record(125, 42),
		{Type: 999, Data: []byte{0xFF, 0xFE}},
	})

	checks := []struct {
		field string
		got   book.Value
		want  string
	}{
		{"Title", md.Title, "The Title"},
		{"Publisher", md.Publisher, "Pub"},
		{"Description", md.Description, "About"},
		{"Subject", md.Subject, "Fiction"},
		{"Published", md.Published, "2020-05-01"},
		{"Contributor", md.Contributor, "Helper"},
		{"Rights", md.Rights, "CC0"},
		{"Language", md.Language, "fr"},
	}
	for _, c := range checks {
		if got := c.got.First(); got != c.want {
			t.Errorf("%s = %q, want %q", c.field, got, c.want)
		}
	}
	if got := md.Creator.All(); len(got) != 2 {
		t.Errorf("Creator = %v, want 2 authors", got)
	}
	if got := md.Identifier.All(); len(got) != 2 {
		t.Errorf("Identifier = %v, want ISBN and ASIN", got)
	}
	if e, ok := md.LookupMeta("isbn"); !ok || e.Value != "978-0-306-40615-7" {
		t.Errorf("isbn meta = %v, %v", e, ok)
	}
	if e, ok := md.LookupMeta("exth:501"); !ok || e.Value != "EBOK" {
		t.Errorf("exth:501 = %v, %v", e, ok)
	}
	if e, ok := md.LookupMeta("exth:125"); !ok || e.Value != "42" {
		t.Errorf("exth:125 = %v, %v", e, ok)
	}
	if _, ok := md.LookupMeta("exth:999"); ok {
		t.Error("binary record 999 should not become a meta entry")
	}
	if !info.fixedLayout || !info.rtl {
		t.Errorf("info = %+v, want fixed layout and rtl", info)
	}
	if !info.hasCover || info.coverOffset != 1 || !info.hasThumb || info.thumbOffset != 2 {
		t.Errorf("cover info = %+v", info)
	}
}

func TestApplyEXTH_RegistryCodes(t *testing.T) {
	var md book.Metadata
	applyEXTH(&md, []EXTHRecord{
		stringRecord(100, "T100"),
		stringRecord(101, "A101"),
		stringRecord(102, "S102"),
		stringRecord(105, "S105"),
		stringRecord(503, "T503"),
	})

	checks := []struct {
		field string
		got   book.Value
		want  string
	}{
		{"Creator", md.Creator, "T100"},
		{"Publisher", md.Publisher, "A101"},
		{"Subject", md.Subject, "S105"},
		{"Title", md.Title, "T503"},
	}
	for _, c := range checks {
		if got := c.got.First(); got != c.want {
			t.Errorf("%s = %q, want %q", c.field, got, c.want)
		}
	}
	if e, ok := md.LookupMeta("exth:102"); !ok || e.Value != "S102" {
		t.Errorf("exth:102 = %v, %v, want a meta entry", e, ok)
	}
}
