package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniffKind(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   string
	}{
		{"tiff_little_endian", []byte{0x49, 0x49, 0x2A, 0x00, 0, 0, 0, 0}, "tiff"},
		{"tiff_big_endian", []byte{0x4D, 0x4D, 0x00, 0x2A, 0, 0, 0, 0}, "tiff"},
		{"bigtiff_little_endian", []byte{0x49, 0x49, 0x2B, 0x00, 0, 0, 0, 0}, "bigtiff"},
		{"bigtiff_big_endian", []byte{0x4D, 0x4D, 0x00, 0x2B, 0, 0, 0, 0}, "bigtiff"},
		{"zip_local_file_header", []byte{0x50, 0x4B, 0x03, 0x04}, "zip"},
		{"zip_empty_archive", []byte{0x50, 0x4B, 0x05, 0x06}, "zip"},
		{"unrecognized", []byte{0x00, 0x01, 0x02, 0x03}, ""},
		{"too_short", []byte{0x49}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SniffKind(tc.header))
		})
	}
}

func TestMatchesExtension(t *testing.T) {
	require.True(t, MatchesExtension("tiff", ".tif"))
	require.True(t, MatchesExtension("tiff", ".tiff"))
	require.True(t, MatchesExtension("bigtiff", ".tif"))
	require.True(t, MatchesExtension("zip", ".zip"))

	require.False(t, MatchesExtension("zip", ".tif"))
	require.False(t, MatchesExtension("tiff", ".zip"))
	require.False(t, MatchesExtension("", ".tif"))
	require.False(t, MatchesExtension("tiff", ".png"))
}
