package assets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	info, err := DecodeImage(pngBytes(t, 3, 2), 0)
	require.NoError(t, err)
	require.Equal(t, ImageInfo{Format: "png", ContentType: "image/png", Width: 3, Height: 2}, info)

	info, err = DecodeImage(jpegBytes(t, 8, 8), 0)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", info.ContentType)
}

func TestDecodeImageRejects(t *testing.T) {
	t.Parallel()

	valid := pngBytes(t, 4, 4)
	cases := []struct {
		name     string
		data     []byte
		max      int64
		tooLarge bool
	}{
		{name: "empty", data: nil},
		{name: "not an image", data: []byte("definitely not a png")},
		{name: "gif", data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")},
		{name: "truncated", data: valid[:len(valid)-12]},
		{name: "over limit", data: valid, max: int64(len(valid) - 1), tooLarge: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeImage(tc.data, tc.max)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidImage))
			require.Equal(t, tc.tooLarge, errors.Is(err, ErrImageTooLarge))
		})
	}
}
