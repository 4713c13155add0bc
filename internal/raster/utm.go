package raster

import "math"

// UTM forward/inverse projection on the WGS84 ellipsoid, after Snyder's
// "Map Projections: A Working Manual" transverse Mercator series. Closed
// form is used rather than an iterative solver since the pipeline only
// ever reprojects between EPSG:4326 and a UTM zone, never a general
// CRS-to-CRS transform.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	utmK0   = 0.9996
	utmFalseEasting = 500000.0
)

func utmFalseNorthing(southHemisphere bool) float64 {
	if southHemisphere {
		return 10000000.0
	}
	return 0.0
}

// LatLonToUTM projects a WGS84 geographic coordinate into the given UTM
// zone/hemisphere, returning (easting, northing) in meters.
func LatLonToUTM(lat, lon float64, zone int, south bool) (easting, northing float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)

	lon0 := float64(zone)*6 - 183
	latR := lat * math.Pi / 180
	dLon := (lon - lon0) * math.Pi / 180

	n := wgs84A / math.Sqrt(1-e2*math.Sin(latR)*math.Sin(latR))
	t := math.Tan(latR) * math.Tan(latR)
	c := ep2 * math.Cos(latR) * math.Cos(latR)
	a := math.Cos(latR) * dLon

	m := wgs84A * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*latR -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*latR) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*latR) -
		(35*e2*e2*e2/3072)*math.Sin(6*latR))

	easting = utmK0*n*(a+(1-t+c)*a*a*a/6+(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120) + utmFalseEasting
	northing = utmK0 * (m + n*math.Tan(latR)*(a*a/2+(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))
	if south {
		northing += utmFalseNorthing(true)
	}
	return easting, northing
}

// UTMToLatLon inverts LatLonToUTM.
func UTMToLatLon(easting, northing float64, zone int, south bool) (lat, lon float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	x := easting - utmFalseEasting
	y := northing
	if south {
		y -= utmFalseNorthing(true)
	}

	m := y / utmK0
	mu := m / (wgs84A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	phi1 := mu + (3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu)

	n1 := wgs84A / math.Sqrt(1-e2*math.Sin(phi1)*math.Sin(phi1))
	t1 := math.Tan(phi1) * math.Tan(phi1)
	c1 := ep2 * math.Cos(phi1) * math.Cos(phi1)
	r1 := wgs84A * (1 - e2) / math.Pow(1-e2*math.Sin(phi1)*math.Sin(phi1), 1.5)
	d := x / (n1 * utmK0)

	latR := phi1 - (n1*math.Tan(phi1)/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)

	lonR := (d - (1+2*t1+c1)*d*d*d/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120) / math.Cos(phi1)

	lon0 := float64(zone)*6 - 183
	lat = latR * 180 / math.Pi
	lon = lon0 + lonR*180/math.Pi
	return lat, lon
}
