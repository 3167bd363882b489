package pdf

import (
	"strings"
	"time"
)

// dateLayouts map digit counts of a PDF date (D:YYYYMMDDHHmmSS) to layouts.
var dateLayouts = map[int]string{
	4:  "2006",
	6:  "200601",
	8:  "20060102",
	10: "2006010215",
	12: "200601021504",
	14: "20060102150405",
}

// normalizeDate converts a PDF date string to RFC 3339. Strings that do not
// parse are returned unchanged.
func normalizeDate(s string) string {
	raw := strings.TrimSpace(s)
	d := strings.TrimPrefix(raw, "D:")

	n := 0
	for n < len(d) && n < 14 && d[n] >= '0' && d[n] <= '9' {
		n++
	}
	layout, ok := dateLayouts[n]
	if !ok {
		return raw
	}
	t, err := time.Parse(layout, d[:n])
	if err != nil {
		return raw
	}

	if loc, ok := parseZone(d[n:]); ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	return t.Format(time.RFC3339)
}

// parseZone reads the Z, +HH'mm' or -HH'mm' suffix.
func parseZone(z string) (*time.Location, bool) {
	z = strings.ReplaceAll(z, "'", "")
	if z == "" || z[0] == 'Z' {
		return time.UTC, true
	}
	if len(z) < 3 || (z[0] != '+' && z[0] != '-') {
		return nil, false
	}
	t, err := time.Parse("-0700", z[:1]+padZone(z[1:]))
	if err != nil {
		return nil, false
	}
	return t.Location(), true
}

func padZone(s string) string {
	switch len(s) {
	case 2:
		return s + "00"
	case 4:
		return s
	}
	if len(s) > 4 {
		return s[:4]
	}
	return s
}
