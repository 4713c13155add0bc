package tiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticImage(w, h int) *Image {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = float64(i % 256)
	}
	return &Image{
		Width:         w,
		Height:        h,
		SampleFormat:  SampleFormatUint,
		BitsPerSample: 8,
		Bands:         []Band{{Data: data}},
		HasTransform:  true,
		Transform:     GeoTransform{44.0, 0.01, 0, 15.5, 0, -0.01},
		CRS:           "EPSG:4326",
		HasNoData:     true,
		NoData:        255,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := syntheticImage(4, 4)

	opts := WriteOptions{
		TileSize:              256,
		Compression:           CompressionDeflate,
		OverviewFactors:       []int{2},
		EPSG:                  4326,
		Geographic:            true,
		Transform:             img.Transform,
		HasNoData:             true,
		NoData:                255,
		BigTIFFThresholdBytes: DefaultWriteOptions().BigTIFFThresholdBytes,
	}

	encoded, err := EncodeCOG(img, opts)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	got, err := Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, img.Width, got.Width)
	require.Equal(t, img.Height, got.Height)
	require.Equal(t, "EPSG:4326", got.CRS)
	require.True(t, got.HasNoData)
	require.InDelta(t, 255, got.NoData, 1e-9)

	for row := 0; row < img.Height; row++ {
		for col := 0; col < img.Width; col++ {
			require.InDelta(t, img.At(0, col, row), got.At(0, col, row), 1e-9, "pixel (%d,%d)", col, row)
		}
	}

	wantX, wantY := img.Transform.ToXY(0, 0)
	gotX, gotY := got.Transform.ToXY(0, 0)
	require.InDelta(t, wantX, gotX, 1e-9)
	require.InDelta(t, wantY, gotY, 1e-9)
}

func TestEncodeCOGRejectsZeroTileSize(t *testing.T) {
	img := syntheticImage(2, 2)
	_, err := EncodeCOG(img, WriteOptions{TileSize: 0})
	require.Error(t, err)
}

func TestGeoTransformInverseRoundTrip(t *testing.T) {
	tr := GeoTransform{44.0, 0.01, 0, 15.5, 0, -0.01}
	for _, pt := range [][2]float64{{0, 0}, {3.5, 7.2}, {100, 200}} {
		x, y := tr.ToXY(pt[0], pt[1])
		col, row := tr.Inverse(x, y)
		require.True(t, math.Abs(col-pt[0]) < 1e-9)
		require.True(t, math.Abs(row-pt[1]) < 1e-9)
	}
}
