// Package hexcodec decodes the hexadecimal payload text carried by frame records.
package hexcodec

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when the payload text is not valid hexadecimal
var ErrInvalidEncoding = errors.New("invalid hex encoding")

// Decode converts even-length hexadecimal text (case-insensitive) into raw bytes.
// Empty input yields an empty, non-nil slice.
func Decode(text string) ([]byte, error) {
	if len(text)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidEncoding, len(text))
	}

	out := make([]byte, len(text)/2)
	if _, err := hex.Decode(out, []byte(text)); err != nil {
		var invalid hex.InvalidByteError
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("%w: invalid byte %#02x at offset %d", ErrInvalidEncoding, byte(invalid), offsetOf(text, byte(invalid)))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}

	return out, nil
}

// Encode returns the lowercase hexadecimal form of p
func Encode(p []byte) string {
	return hex.EncodeToString(p)
}

func offsetOf(text string, b byte) int {
	for i := 0; i < len(text); i++ {
		if text[i] == b {
			return i
		}
	}
	return -1
}
