package mobi

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader          = errors.New("mobi: invalid record 0 header")
	ErrDRMProtected           = errors.New("mobi: content is DRM protected")
	ErrHuffCDICNotImplemented = errors.New("mobi: HUFF/CDIC compression is not implemented")
	ErrUnsupportedCompression = errors.New("mobi: unsupported compression")
)

// decompressFunc expands one text record.
type decompressFunc func([]byte) ([]byte, error)

// decompressor selects the record decoder for a PalmDOC compression code.
func decompressor(compression uint16) (decompressFunc, error) {
	switch compression {
	case CompressionNone:
		return func(b []byte) ([]byte, error) { return b, nil }, nil
	case CompressionPalmDoc:
		return PalmDocDecompress, nil
	case CompressionHuffCDIC:
		return nil, ErrHuffCDICNotImplemented
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, compression)
}

func compressionName(compression uint16) string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionPalmDoc:
		return "palmdoc"
	case CompressionHuffCDIC:
		return "huffcdic"
	}
	return fmt.Sprintf("unknown(%d)", compression)
}

// PalmDocDecompress decompresses PalmDoc-compressed data.
func PalmDocDecompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(data)*2)
	i := 0

	for i < len(data) {
		b := data[i]
		i++

		switch {
		case b == 0x00:
			// Literal NULL byte
			out = append(out, 0x00)

		case b >= 0x01 && b <= 0x08:
			// Uncompressed block: next N bytes are literal
			count := int(b)
			if i+count > len(data) {
				return nil, fmt.Errorf("palmDoc decompress: uncompressed block overflows at offset %d", i-1)
			}
			out = append(out, data[i:i+count]...)
			i += count

		case b >= 0x09 && b <= 0x7F:
			// Literal byte
			out = append(out, b)

		case b >= 0x80 && b <= 0xBF:
			// Back reference (2 bytes): 11-bit distance, 3-bit length - 3
			if i >= len(data) {
				return nil, fmt.Errorf("palmDoc decompress: back reference missing second byte at offset %d", i-1)
			}
			low := data[i]
			i++

			distance := (int(b&0x3F) << 5) | int(low>>3)
			length := int(low&0x07) + 3

			if distance == 0 || distance > len(out) {
				return nil, fmt.Errorf("palmDoc decompress: invalid back reference distance %d at output offset %d", distance, len(out))
			}

			// The source may overlap the bytes being written.
			start := len(out) - distance
			for j := range length {
				out = append(out, out[start+j])
			}

		default:
			// Space + literal char
			out = append(out, 0x20, b^0x80)
		}
	}

	return out, nil
}
