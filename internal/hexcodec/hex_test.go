package hexcodec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"empty", "", []byte{}},
		{"lowercase", "48656c6c6f", []byte("Hello")},
		{"uppercase", "48656C6C6F", []byte("Hello")},
		{"mixed case", "aBcD", []byte{0xab, 0xcd}},
		{"single byte", "ab", []byte{0xab}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.input)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"odd length", "48656c6"},
		{"non hex character", "48z6"},
		{"whitespace inside", "48 6"},
		{"single nibble", "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.input)
			assert.ErrorIs(t, err, ErrInvalidEncoding)
			assert.Nil(t, got)
		})
	}
}

func TestDecode_ReportsOffset(t *testing.T) {
	_, err := Decode("48z6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid byte 0x7a at offset 2")
}

func TestDecode_ReportsMultibyteAsByte(t *testing.T) {
	_, err := Decode("ab\u00e9")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "invalid byte 0xc3 at offset 2")
	assert.NotContains(t, err.Error(), "U+")
}

func TestDecode_RoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for n := 0; n < 64; n++ {
		p := make([]byte, n)
		rnd.Read(p)

		got, err := Decode(Encode(p))
		require.NoError(t, err)
		assert.Equal(t, p, got, "length %d", n)
	}
}
