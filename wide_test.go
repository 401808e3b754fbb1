package npipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWide(t *testing.T) {
	b, err := EncodeWide("hé")
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 0, 0xe9, 0}, b)
	assert.Equal(t, 2, WideLen(len(b)))

	s, err := DecodeWide(b)
	require.NoError(t, err)
	assert.Equal(t, "hé", s)
}

func TestDecodeWideSurrogatePair(t *testing.T) {
	b, err := EncodeWide("𝄞")
	require.NoError(t, err)
	assert.Len(t, b, 4)
	assert.Equal(t, 2, WideLen(len(b)))

	s, err := DecodeWide(b)
	require.NoError(t, err)
	assert.Equal(t, "𝄞", s)
}

func TestDecodeWideOddLength(t *testing.T) {
	_, err := DecodeWide([]byte{'h', 0, 'i'})
	assert.ErrorIs(t, err, errOddWideLength)
}

func TestDecodeWideEmpty(t *testing.T) {
	s, err := DecodeWide(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}
