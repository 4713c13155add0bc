package raster

import (
	"fmt"
	"os"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

// WriteWorldFile writes a 6-line ESRI world file (.pgw/.tfw/.wld convention)
// describing img's affine transform. Per the pixel-center convention, the
// origin terms (c, f) are the coordinate of the *center* of the upper-left
// pixel, not its corner, so the transform's corner-addressed origin is
// offset by half a pixel before being written. Lines are written in the
// order GDAL and QGIS both expect: a, d, b, e, c, f — i.e. pixel width,
// column rotation (t[4]), row rotation (t[2]), pixel height, x-origin,
// y-origin.
func WriteWorldFile(path string, t tiff.GeoTransform) error {
	a := t.PixelWidth()
	d := t[4]
	b := t[2]
	e := t.PixelHeight()
	c := t.OriginX() + a/2 + b/2
	f := t.OriginY() + d/2 + e/2

	content := fmt.Sprintf("%.12f\n%.12f\n%.12f\n%.12f\n%.12f\n%.12f\n", a, d, b, e, c, f)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("raster: write world file %s: %w", path, err)
	}
	return nil
}

// WriteProjWKT writes a .prj sidecar containing the WKT for a known target
// CRS. Only the CRS codes this pipeline actually emits (WGS84 always, since
// every output is uniformly reprojected) are supported.
func WriteProjWKT(path, epsg string) error {
	wkt, ok := wellKnownWKT[epsg]
	if !ok {
		return fmt.Errorf("raster: no WKT available for %q", epsg)
	}
	if err := os.WriteFile(path, []byte(wkt), 0o644); err != nil {
		return fmt.Errorf("raster: write prj file %s: %w", path, err)
	}
	return nil
}

var wellKnownWKT = map[string]string{
	"EPSG:4326": `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`,
}
