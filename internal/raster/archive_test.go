package raster

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, members map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestExtractLargestTIFFPicksBiggestMember(t *testing.T) {
	archivePath := writeTestZip(t, map[string][]byte{
		"readme.txt":            []byte("not a raster"),
		"small.tif":             make([]byte, 128),
		"nested/dir/large.tiff": make([]byte, 4096),
		"nested/medium.tif":     make([]byte, 1024),
	})
	destDir := t.TempDir()

	extractedPath, originalName, err := ExtractLargestTIFF(archivePath, destDir)
	require.NoError(t, err)
	require.Equal(t, "large.tiff", originalName)

	info, err := os.Stat(extractedPath)
	require.NoError(t, err)
	require.Equal(t, int64(4096), info.Size())
}

func TestExtractLargestTIFFRejectsNoRasterMember(t *testing.T) {
	archivePath := writeTestZip(t, map[string][]byte{
		"readme.txt": []byte("no rasters here"),
		"data.csv":   []byte("a,b,c"),
	})
	destDir := t.TempDir()

	_, _, err := ExtractLargestTIFF(archivePath, destDir)
	require.Error(t, err)
}
