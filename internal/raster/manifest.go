package raster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// BoundsOf computes the WGS84 bounding box of a reprojected image's raster
// extent, ordered [west, south, east, north] per invariant I3.
func BoundsOf(img *tiff.Image) rasterjob.Bounds {
	x0, y0 := img.Transform.ToXY(0, float64(img.Height))
	x1, y1 := img.Transform.ToXY(float64(img.Width), 0)
	west, east := x0, x1
	if west > east {
		west, east = east, west
	}
	south, north := y0, y1
	if south > north {
		south, north = north, south
	}
	return rasterjob.Bounds{west, south, east, north}
}

// toOrbBound expresses a Bounds as an orb.Bound so it can be checked with
// orb's own geometry helpers instead of reimplementing them.
func toOrbBound(b rasterjob.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West(), b.South()},
		Max: orb.Point{b.East(), b.North()},
	}
}

// validateBounds rejects a degenerate or out-of-range bounding box before it
// is allowed into a manifest: an empty extent means the reprojection or the
// source transform was broken, and the pipeline should fail the job rather
// than publish a layer no viewer can place on a map.
func validateBounds(b rasterjob.Bounds) error {
	ob := toOrbBound(b)
	if ob.IsEmpty() || ob.IsZero() || ob.Min[0] == ob.Max[0] || ob.Min[1] == ob.Max[1] {
		return fmt.Errorf("degenerate_bounds: reprojected extent has zero area")
	}
	if ob.Min[0] < -180 || ob.Max[0] > 180 || ob.Min[1] < -90 || ob.Max[1] > 90 {
		return fmt.Errorf("degenerate_bounds: extent %v falls outside WGS84 range", ob)
	}
	return nil
}

// BuildManifest assembles the canonical per-layer manifest. It returns an
// error if the image's bounds are degenerate.
func BuildManifest(jobID, layerID, originalFilename, pngURL, cogURL, metadataURL string, img *tiff.Image, processedAt time.Time) (rasterjob.Manifest, error) {
	bounds := BoundsOf(img)
	if err := validateBounds(bounds); err != nil {
		return rasterjob.Manifest{}, err
	}
	return rasterjob.Manifest{
		Success:          true,
		LayerID:          layerID,
		OriginalFilename: originalFilename,
		ImageFile:        pngURL,
		PNGURL:           pngURL,
		COGURL:           cogURL,
		MetadataURL:      metadataURL,
		Bbox:             [4]float64(bounds),
		LeafletBounds:    bounds.Leaflet(),
		Width:            img.Width,
		Height:           img.Height,
		CRS:              img.CRS,
		ProcessedAt:      processedAt.UTC().Format(time.RFC3339),
		JobID:            jobID,
	}, nil
}
