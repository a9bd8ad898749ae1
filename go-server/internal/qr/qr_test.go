package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	testCases := []struct {
		raw      string
		expected int
		valid    bool
	}{
		{"", DefaultSize, true},
		{"64", 64, true},
		{"512", 512, true},
		{"1024", 1024, true},
		{"63", 0, false},
		{"1025", 0, false},
		{"-1", 0, false},
		{"big", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			size, err := ParseSize(tc.raw)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, size)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSize)
			}
		})
	}
}

func TestPNG(t *testing.T) {
	data, err := PNG("http://localhost:8080/Ab12Cd34", 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestPNG_Empty(t *testing.T) {
	_, err := PNG("", DefaultSize)
	assert.Error(t, err)
}
