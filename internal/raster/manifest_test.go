package raster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

func TestBoundsOfNormalizesCornerOrder(t *testing.T) {
	// North-up transform: Y decreases with row, so the naive corner order
	// would otherwise report south > north for a west-to-east,
	// north-to-south pixel scan.
	img := &tiff.Image{
		Width: 10, Height: 5,
		HasTransform: true,
		Transform:    tiff.GeoTransform{44.0, 0.1, 0, 15.5, 0, -0.1},
	}
	b := BoundsOf(img)
	require.Less(t, b.West(), b.East())
	require.Less(t, b.South(), b.North())
	require.InDelta(t, 44.0, b.West(), 1e-9)
	require.InDelta(t, 15.5, b.North(), 1e-9)
}

func TestValidateBoundsRejectsDegenerate(t *testing.T) {
	err := validateBounds(rasterjob.Bounds{44.0, 15.5, 44.0, 15.5})
	require.Error(t, err)
}

func TestValidateBoundsRejectsOutOfRange(t *testing.T) {
	err := validateBounds(rasterjob.Bounds{-200, 15.0, -190, 16.0})
	require.Error(t, err)
}

func TestValidateBoundsAcceptsValidExtent(t *testing.T) {
	err := validateBounds(rasterjob.Bounds{44.0, 15.0, 45.0, 16.0})
	require.NoError(t, err)
}

func TestBuildManifestRejectsDegenerateImage(t *testing.T) {
	img := &tiff.Image{
		Width: 1, Height: 1,
		HasTransform: true,
		Transform:    tiff.GeoTransform{44.0, 0, 0, 15.5, 0, 0},
	}
	_, err := BuildManifest("job-1", "layer-1", "x.tif", "p.png", "c.tif", "m.json", img, time.Unix(0, 0))
	require.Error(t, err)
}

func TestBuildManifestSuccess(t *testing.T) {
	img := &tiff.Image{
		Width: 10, Height: 5,
		HasTransform: true,
		Transform:    tiff.GeoTransform{44.0, 0.1, 0, 15.5, 0, -0.1},
		CRS:          "EPSG:4326",
	}
	processedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err := BuildManifest("job-1", "layer-1", "x.tif", "p.png", "c.tif", "m.json", img, processedAt)
	require.NoError(t, err)
	require.True(t, m.Success)
	require.Equal(t, "layer-1", m.LayerID)
	require.Equal(t, "job-1", m.JobID)
	require.Equal(t, 10, m.Width)
	require.Equal(t, 5, m.Height)
	require.Equal(t, "2026-01-02T03:04:05Z", m.ProcessedAt)
	require.Equal(t, [2][2]float64{{m.Bbox[1], m.Bbox[0]}, {m.Bbox[3], m.Bbox[2]}}, m.LeafletBounds)
}
