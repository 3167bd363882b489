package mobi

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// multibyteFlag marks the trailing multibyte-overlap entry.
const multibyteFlag = 0x1

// reverseDecodeInt decodes the backward-encoded integer that ends b. It
// returns the value and the number of bytes it occupies.
func reverseDecodeInt(b []byte) (value, size int, err error) {
	shift := 0
	for i := len(b) - 1; i >= 0 && size < 4; i-- {
		c := b[i]
		value |= int(c&0x7F) << shift
		shift += 7
		size++
		if c&0x80 != 0 {
			return value, size, nil
		}
	}
	return 0, 0, fmt.Errorf("mobi: trailing entry size has no terminator")
}

// stripTrailingEntries removes the trailing data entries announced by the
// extra record data flags from a text record.
func stripTrailingEntries(rec []byte, flags uint16) ([]byte, error) {
	for bit := 1; bit < 16; bit++ {
		if flags&(1<<bit) == 0 {
			continue
		}
		n, _, err := reverseDecodeInt(rec)
		if err != nil {
			return nil, err
		}
		if n > len(rec) {
			return nil, fmt.Errorf("mobi: trailing entry of %d bytes exceeds record", n)
		}
		rec = rec[:len(rec)-n]
	}
	if flags&multibyteFlag != 0 && len(rec) > 0 {
		n := int(rec[len(rec)-1]&0x3) + 1
		if n > len(rec) {
			return nil, fmt.Errorf("mobi: multibyte overlap of %d bytes exceeds record", n)
		}
		rec = rec[:len(rec)-n]
	}
	return rec, nil
}

// decodeText converts record text to a Go string.
func decodeText(data []byte, encoding uint32) (string, error) {
	switch encoding {
	case EncodingUTF8:
		return strings.ToValidUTF8(string(data), "\uFFFD"), nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("mobi: failed to decode cp1252 text: %w", err)
		}
		return string(out), nil
	}
}

func encodingName(encoding uint32) string {
	switch encoding {
	case EncodingUTF8:
		return "utf-8"
	case EncodingCP1252:
		return "cp1252"
	}
	return fmt.Sprintf("unknown(%d)", encoding)
}
