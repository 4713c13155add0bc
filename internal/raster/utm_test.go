package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUTMRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		lat   float64
		lon   float64
		zone  int
		south bool
	}{
		{"sanaa_zone38N", 15.3694, 44.1910, 38, false},
		{"equator_zone31N", 0.01, 3.05, 31, false},
		{"southern_hemisphere_zone33S", -23.5, 15.2, 33, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, n := LatLonToUTM(tc.lat, tc.lon, tc.zone, tc.south)
			gotLat, gotLon := UTMToLatLon(e, n, tc.zone, tc.south)

			require.InDelta(t, tc.lat, gotLat, 1e-6)
			require.InDelta(t, tc.lon, gotLon, 1e-6)
		})
	}
}

func TestLatLonToUTMFalseEasting(t *testing.T) {
	// A point exactly on the zone's central meridian should land at the
	// 500,000 m false easting, by construction of the UTM projection.
	e, _ := LatLonToUTM(20, 45, 38, false) // zone 38 central meridian is 45E
	require.InDelta(t, 500000, e, 1.0)
}
