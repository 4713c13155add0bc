package raster

import "bytes"

// tiffLittleEndian and tiffBigEndian are the classic TIFF 6.0 byte-order
// magic headers. BigTIFF variants (II+\0 / MM\0+) are sniffed too so a
// rejected BigTIFF upload gets a clear validation error instead of falling
// through to "unrecognized file".
var (
	tiffLittleEndian    = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffBigEndian       = []byte{0x4D, 0x4D, 0x00, 0x2A}
	bigTIFFLittleEndian = []byte{0x49, 0x49, 0x2B, 0x00}
	bigTIFFBigEndian    = []byte{0x4D, 0x4D, 0x00, 0x2B}
	zipLocalFileHeader  = []byte{0x50, 0x4B, 0x03, 0x04}
	zipEmptyArchive     = []byte{0x50, 0x4B, 0x05, 0x06}
)

// SniffKind detects a file's actual type from its leading bytes rather than
// trusting the claimed extension, the same defense the upload path of the
// system this pipeline replaces applied to image magic bytes. Returns
// "tiff", "bigtiff", "zip", or "" if nothing recognized matched.
func SniffKind(header []byte) string {
	switch {
	case bytes.HasPrefix(header, tiffLittleEndian), bytes.HasPrefix(header, tiffBigEndian):
		return "tiff"
	case bytes.HasPrefix(header, bigTIFFLittleEndian), bytes.HasPrefix(header, bigTIFFBigEndian):
		return "bigtiff"
	case bytes.HasPrefix(header, zipLocalFileHeader), bytes.HasPrefix(header, zipEmptyArchive):
		return "zip"
	default:
		return ""
	}
}

// MatchesExtension reports whether a sniffed kind is consistent with the
// extension the client claimed, so a .tif upload that is actually a zip (or
// garbage) is rejected before it reaches the worker pool.
func MatchesExtension(kind, ext string) bool {
	switch ext {
	case ".tif", ".tiff":
		return kind == "tiff" || kind == "bigtiff"
	case ".zip":
		return kind == "zip"
	default:
		return false
	}
}
