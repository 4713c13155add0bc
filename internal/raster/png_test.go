package raster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

func TestPercentileRangeIgnoresOutliers(t *testing.T) {
	valid := make([]float64, 0, 100)
	for i := 1; i <= 98; i++ {
		valid = append(valid, float64(i))
	}
	valid = append(valid, -1000, 1000) // outliers beyond the 2nd/98th percentile

	lo, hi := percentileRange(valid, 2, 98)
	require.Greater(t, lo, -1000.0)
	require.Less(t, hi, 1000.0)
}

func TestPercentileRangeDegenerateInput(t *testing.T) {
	lo, hi := percentileRange(nil, 2, 98)
	require.Equal(t, 0.0, lo)
	require.Equal(t, 1.0, hi)

	lo, hi = percentileRange([]float64{5, 5, 5}, 2, 98)
	require.Equal(t, 5.0, lo)
	require.Equal(t, 6.0, hi) // hi nudged past lo to avoid a zero span
}

// TestStretchBandExcludesNoDataFromStatistics is the regression test for
// the original zip-processor.py bug, where a "> 0" filter stood in for an
// explicit nodata check and dropped legitimate 0 readings from the
// percentile computation, skewing every stretch that had a real 0 reading.
func TestStretchBandExcludesNoDataFromStatistics(t *testing.T) {
	raw := &tiff.Image{
		Width:     4,
		Height:    1,
		HasNoData: true,
		NoData:    -9999,
		Bands: []tiff.Band{{
			Data: []float64{0, 10, 20, -9999},
		}},
	}

	out := stretchBand(raw, 0)
	require.Equal(t, uint8(0), out[3], "nodata pixel must render as 0 regardless of its stretched value")
	require.Equal(t, uint8(127), out[1], "with the 0 reading kept and nodata left out, 10 sits mid-stretch")
}
