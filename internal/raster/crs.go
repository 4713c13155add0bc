package raster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

// TargetCRS is the uniform reprojection target for every ingested layer.
const TargetCRS = "EPSG:4326"

// crsInfo describes what a source EPSG code means for the reprojector.
type crsInfo struct {
	geographic bool
	utmZone    int
	utmSouth   bool
}

func parseCRS(epsg string) (crsInfo, error) {
	epsg = strings.TrimSpace(strings.ToUpper(epsg))
	if epsg == "" {
		return crsInfo{}, fmt.Errorf("missing CRS")
	}
	codeStr, ok := strings.CutPrefix(epsg, "EPSG:")
	if !ok {
		return crsInfo{}, fmt.Errorf("unrecognized CRS identifier %q", epsg)
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return crsInfo{}, fmt.Errorf("unrecognized CRS identifier %q", epsg)
	}
	switch {
	case code == 4326:
		return crsInfo{geographic: true}, nil
	case code >= 32601 && code <= 32660:
		return crsInfo{utmZone: code - 32600}, nil
	case code >= 32701 && code <= 32760:
		return crsInfo{utmZone: code - 32700, utmSouth: true}, nil
	default:
		return crsInfo{}, fmt.Errorf("unsupported source CRS %q: only EPSG:4326 and UTM zones are supported", epsg)
	}
}

// NeedsReprojection reports whether img's CRS differs from TargetCRS.
func NeedsReprojection(img *tiff.Image) (bool, error) {
	info, err := parseCRS(img.CRS)
	if err != nil {
		return false, err
	}
	return !info.geographic, nil
}

// ReprojectToWGS84 resamples img (in its source UTM zone) onto a regular
// EPSG:4326 grid of the same pixel dimensions, covering the bounding box of
// img's four corners. Each output pixel's center is forward-projected back
// into the source CRS and bilinearly interpolated from its four surrounding
// source pixels. This keeps the engine's memory and CPU cost linear in
// output size without needing a general warp/resample library, which
// nothing in the example pack provides.
func ReprojectToWGS84(img *tiff.Image) (*tiff.Image, error) {
	info, err := parseCRS(img.CRS)
	if err != nil {
		return nil, err
	}
	if info.geographic {
		return img, nil
	}
	if !img.HasTransform {
		return nil, fmt.Errorf("cannot reproject: source raster has no georeferencing transform")
	}

	corners := [4][2]float64{}
	xs := []float64{0, float64(img.Width)}
	ys := []float64{0, float64(img.Height)}
	i := 0
	for _, px := range xs {
		for _, py := range ys {
			x, y := img.Transform.ToXY(px, py)
			corners[i] = [2]float64{x, y}
			i++
		}
	}

	minLat, maxLat := 90.0, -90.0
	minLon, maxLon := 180.0, -180.0
	for _, c := range corners {
		lat, lon := inverseUTM(c[0], c[1], info)
		if lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
		if lon < minLon {
			minLon = lon
		}
		if lon > maxLon {
			maxLon = lon
		}
	}

	outW, outH := img.Width, img.Height
	pixelW := (maxLon - minLon) / float64(outW)
	pixelH := (maxLat - minLat) / float64(outH)

	out := &tiff.Image{
		Width: outW, Height: outH,
		SampleFormat:  img.SampleFormat,
		BitsPerSample: img.BitsPerSample,
		CRS:           TargetCRS,
		HasNoData:     img.HasNoData,
		NoData:        img.NoData,
		HasTransform:  true,
		Transform:     tiff.GeoTransform{minLon, pixelW, 0, maxLat, 0, -pixelH},
		Bands:         make([]tiff.Band, len(img.Bands)),
	}
	for b := range img.Bands {
		out.Bands[b] = tiff.Band{Data: make([]float64, outW*outH)}
	}

	for oy := 0; oy < outH; oy++ {
		lat := maxLat - (float64(oy)+0.5)*pixelH
		for ox := 0; ox < outW; ox++ {
			lon := minLon + (float64(ox)+0.5)*pixelW
			sx, sy := forwardUTM(lat, lon, info)
			col, row := img.Transform.Inverse(sx, sy)
			for b := range img.Bands {
				var v float64
				if val, ok := bilinearSample(img, b, col, row); ok {
					v = val
				} else if img.HasNoData {
					v = img.NoData
				}
				out.Bands[b].Data[oy*outW+ox] = v
			}
		}
	}
	return out, nil
}

// bilinearSample interpolates band b of img at fractional source coordinate
// (col, row) from its four surrounding pixels. It reports ok=false when any
// of the four corners falls outside the source raster, or (when img carries
// a nodata value) when any corner is nodata — blending a nodata sentinel
// into real samples would fabricate a value that never existed in the
// source.
func bilinearSample(img *tiff.Image, b int, col, row float64) (v float64, ok bool) {
	x0 := math.Floor(col)
	y0 := math.Floor(row)
	ix0, iy0 := int(x0), int(y0)
	ix1, iy1 := ix0+1, iy0+1

	inBounds := func(c, r int) bool {
		return c >= 0 && c < img.Width && r >= 0 && r < img.Height
	}
	if !inBounds(ix0, iy0) || !inBounds(ix1, iy0) || !inBounds(ix0, iy1) || !inBounds(ix1, iy1) {
		return 0, false
	}

	v00 := img.At(b, ix0, iy0)
	v10 := img.At(b, ix1, iy0)
	v01 := img.At(b, ix0, iy1)
	v11 := img.At(b, ix1, iy1)
	if img.HasNoData {
		if v00 == img.NoData || v10 == img.NoData || v01 == img.NoData || v11 == img.NoData {
			return 0, false
		}
	}

	fx := col - x0
	fy := row - y0
	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy, true
}

func forwardUTM(lat, lon float64, info crsInfo) (x, y float64) {
	return LatLonToUTM(lat, lon, info.utmZone, info.utmSouth)
}

func inverseUTM(x, y float64, info crsInfo) (lat, lon float64) {
	return UTMToLatLon(x, y, info.utmZone, info.utmSouth)
}
