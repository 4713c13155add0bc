package raster

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

func TestWriteWorldFilePixelCenterOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.pgw")

	transform := tiff.GeoTransform{10.0, 0.1, 0, 50.0, 0, -0.1}
	require.NoError(t, WriteWorldFile(path, transform))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)

	vals := make([]float64, 6)
	for i, l := range lines {
		v, err := strconv.ParseFloat(l, 64)
		require.NoError(t, err)
		vals[i] = v
	}

	// a, d, b, e order: pixel width, col rotation, row rotation, pixel height
	require.InDelta(t, 0.1, vals[0], 1e-9)
	require.InDelta(t, 0, vals[1], 1e-9)
	require.InDelta(t, 0, vals[2], 1e-9)
	require.InDelta(t, -0.1, vals[3], 1e-9)

	// c, f: origin offset by half a pixel from the corner-addressed transform
	require.InDelta(t, 10.05, vals[4], 1e-9)
	require.InDelta(t, 49.95, vals[5], 1e-9)
}

func TestWriteWorldFileKeepsRotationTermsOnTheirOwnAxis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.pgw")

	// t[2] (row rotation, affects x) and t[4] (column rotation, affects y)
	// must land on world-file lines B and D respectively, not swapped.
	transform := tiff.GeoTransform{10.0, 0.1, 0.02, 50.0, 0.03, -0.1}
	require.NoError(t, WriteWorldFile(path, transform))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)

	vals := make([]float64, 6)
	for i, l := range lines {
		v, err := strconv.ParseFloat(l, 64)
		require.NoError(t, err)
		vals[i] = v
	}

	require.InDelta(t, 0.1, vals[0], 1e-9, "A: pixel width")
	require.InDelta(t, 0.03, vals[1], 1e-9, "D: column rotation, from t[4]")
	require.InDelta(t, 0.02, vals[2], 1e-9, "B: row rotation, from t[2]")
	require.InDelta(t, -0.1, vals[3], 1e-9, "E: pixel height")
}

func TestWriteProjWKTKnownCRS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.prj")
	require.NoError(t, WriteProjWKT(path, "EPSG:4326"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "WGS 84")
}

func TestWriteProjWKTUnknownCRS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.prj")
	require.Error(t, WriteProjWKT(path, "EPSG:32638"))
}
