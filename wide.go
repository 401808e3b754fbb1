package npipe

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
)

var errOddWideLength = errors.New("wide-character payload has odd length")

// wideEncoding is the UTF-16LE encoding used by wide-character Win32 payloads.
var wideEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeWide encodes s as UTF-16LE without a byte order mark.
func EncodeWide(s string) ([]byte, error) {
	return wideEncoding.NewEncoder().Bytes([]byte(s))
}

// DecodeWide decodes a UTF-16LE payload. A trailing odd byte is an error.
func DecodeWide(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errOddWideLength
	}
	s, err := wideEncoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// WideLen converts a raw byte count to a UTF-16 element count.
func WideLen(n int) int {
	return n / 2
}
