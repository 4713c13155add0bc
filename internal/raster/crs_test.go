package raster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

func TestParseCRSKnownIdentifiers(t *testing.T) {
	geo, err := parseCRS("EPSG:4326")
	require.NoError(t, err)
	require.True(t, geo.geographic)

	north, err := parseCRS("epsg:32638")
	require.NoError(t, err)
	require.False(t, north.geographic)
	require.Equal(t, 38, north.utmZone)
	require.False(t, north.utmSouth)

	south, err := parseCRS("EPSG:32738")
	require.NoError(t, err)
	require.Equal(t, 38, south.utmZone)
	require.True(t, south.utmSouth)
}

func TestParseCRSRejectsUnsupported(t *testing.T) {
	_, err := parseCRS("")
	require.Error(t, err)

	_, err = parseCRS("NAD27")
	require.Error(t, err)

	_, err = parseCRS("EPSG:3857") // web mercator, not a supported source CRS
	require.Error(t, err)
}

func TestNeedsReprojection(t *testing.T) {
	geographic := &tiff.Image{CRS: "EPSG:4326"}
	need, err := NeedsReprojection(geographic)
	require.NoError(t, err)
	require.False(t, need)

	utm := &tiff.Image{CRS: "EPSG:32638"}
	need, err = NeedsReprojection(utm)
	require.NoError(t, err)
	require.True(t, need)
}

func TestReprojectToWGS84PassesThroughGeographic(t *testing.T) {
	img := &tiff.Image{CRS: "EPSG:4326", Width: 2, Height: 2}
	out, err := ReprojectToWGS84(img)
	require.NoError(t, err)
	require.Same(t, img, out)
}

func TestReprojectToWGS84RequiresTransform(t *testing.T) {
	img := &tiff.Image{CRS: "EPSG:32638", Width: 2, Height: 2}
	_, err := ReprojectToWGS84(img)
	require.Error(t, err)
}

func TestReprojectToWGS84ProducesGeographicOutput(t *testing.T) {
	// A small UTM-zone-38N source raster with a synthetic transform; the
	// reprojected output must land in EPSG:4326 with the same dimensions
	// and a transform, and must need no further reprojection.
	zone, south := 38, false
	originLat, originLon := 15.5, 44.2
	originE, originN := LatLonToUTM(originLat, originLon, zone, south)

	img := &tiff.Image{
		Width: 4, Height: 4,
		SampleFormat: tiff.SampleFormatUint, BitsPerSample: 8,
		CRS:          "EPSG:32638",
		HasTransform: true,
		Transform:    tiff.GeoTransform{originE, 100, 0, originN, 0, -100},
		HasNoData:    true,
		NoData:       -9999,
		Bands:        []tiff.Band{{Data: make([]float64, 16)}},
	}
	for i := range img.Bands[0].Data {
		img.Bands[0].Data[i] = float64(i)
	}

	out, err := ReprojectToWGS84(img)
	require.NoError(t, err)
	require.Equal(t, "EPSG:4326", out.CRS)
	require.Equal(t, img.Width, out.Width)
	require.Equal(t, img.Height, out.Height)
	require.True(t, out.HasTransform)

	ok, err := NeedsReprojection(out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBilinearSampleInterpolatesBetweenFourCorners(t *testing.T) {
	// A 2x2 raster with values 0,10 on the top row and 20,30 on the bottom;
	// sampling the exact center must average all four corners evenly.
	img := &tiff.Image{
		Width: 2, Height: 2,
		Bands: []tiff.Band{{Data: []float64{0, 10, 20, 30}}},
	}
	v, ok := bilinearSample(img, 0, 0.5, 0.5)
	require.True(t, ok)
	require.InDelta(t, 15, v, 1e-9)

	v, ok = bilinearSample(img, 0, 0, 0)
	require.True(t, ok)
	require.InDelta(t, 0, v, 1e-9)
}

func TestBilinearSampleRejectsOutOfBoundsAndNoData(t *testing.T) {
	img := &tiff.Image{
		Width: 2, Height: 2,
		HasNoData: true,
		NoData:    -9999,
		Bands:     []tiff.Band{{Data: []float64{0, 10, -9999, 30}}},
	}
	_, ok := bilinearSample(img, 0, 1.5, 1.5) // needs a 4th corner outside the 2x2 grid
	require.False(t, ok)

	_, ok = bilinearSample(img, 0, 0.5, 0.5) // bottom-left corner is nodata
	require.False(t, ok)
}
