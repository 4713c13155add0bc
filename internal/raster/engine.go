package raster

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// Artifacts is the set of local files the engine produces for one layer,
// before they are uploaded to object storage.
type Artifacts struct {
	COGPath      string
	PNGPath      string
	WorldFilePath string
	PRJPath      string
	Manifest     rasterjob.Manifest
}

// ProgressFunc lets the caller (the worker runtime) report coarse progress
// as the engine moves through its stages.
type ProgressFunc func(stage string, percent int)

// ProcessGeoTIFF runs the full single-file pipeline: open, validate,
// reproject to EPSG:4326 if needed, write a COG, render a PNG preview, write
// .pgw/.prj sidecars, and assemble the manifest. outDir must already exist;
// callers are expected to name it after the layer ID.
func ProcessGeoTIFF(jobID, layerID, srcPath, originalFilename, outDir string, report ProgressFunc) (*Artifacts, error) {
	if report == nil {
		report = func(string, int) {}
	}

	report("opening", 5)
	img, err := tiff.Open(srcPath)
	if err != nil {
		return nil, rasterjob.NewValidationError("unreadable_geotiff: %v", err)
	}
	if img.Width == 0 || img.Height == 0 {
		return nil, rasterjob.NewValidationError("empty_raster: image has zero-length dimension")
	}
	if img.CRS == "" {
		return nil, rasterjob.NewValidationError("missing_crs: raster carries no GeoKey directory; CRS must be explicit")
	}

	report("validating", 10)
	needsReproj, err := NeedsReprojection(img)
	if err != nil {
		return nil, rasterjob.NewValidationError("%v", err)
	}

	working := img
	if needsReproj {
		report("reprojecting", 30)
		working, err = ReprojectToWGS84(img)
		if err != nil {
			return nil, rasterjob.NewIOFatalError(fmt.Errorf("reprojection failed: %w", err))
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, rasterjob.NewIOFatalError(err)
	}

	report("writing_cog", 55)
	cogPath := filepath.Join(outDir, "layer.tif")
	opts := tiff.DefaultWriteOptions()
	opts.EPSG = 4326
	opts.Geographic = true
	opts.Transform = working.Transform
	opts.HasNoData = working.HasNoData
	opts.NoData = working.NoData
	if err := tiff.WriteCOG(cogPath, working, opts); err != nil {
		return nil, rasterjob.NewIOFatalError(fmt.Errorf("cog write failed: %w", err))
	}

	report("rendering_preview", 75)
	preview, err := BuildPreviewPNG(working)
	if err != nil {
		return nil, rasterjob.NewValidationError("%v", err)
	}
	preview = FitForPreview(preview)

	pngPath := filepath.Join(outDir, "preview.png")
	pf, err := os.Create(pngPath)
	if err != nil {
		return nil, rasterjob.NewIOFatalError(err)
	}
	encErr := png.Encode(pf, preview)
	closeErr := pf.Close()
	if encErr != nil {
		return nil, rasterjob.NewIOFatalError(fmt.Errorf("png encode failed: %w", encErr))
	}
	if closeErr != nil {
		return nil, rasterjob.NewIOFatalError(closeErr)
	}

	report("writing_sidecars", 85)
	worldPath := filepath.Join(outDir, "layer.pgw")
	if err := WriteWorldFile(worldPath, working.Transform); err != nil {
		return nil, rasterjob.NewIOFatalError(err)
	}
	prjPath := filepath.Join(outDir, "layer.prj")
	if err := WriteProjWKT(prjPath, working.CRS); err != nil {
		return nil, rasterjob.NewIOFatalError(err)
	}

	report("finalizing", 95)
	manifest, err := BuildManifest(jobID, layerID, originalFilename, "", "", "", working, time.Now())
	if err != nil {
		return nil, rasterjob.NewValidationError("%v", err)
	}

	return &Artifacts{
		COGPath:       cogPath,
		PNGPath:       pngPath,
		WorldFilePath: worldPath,
		PRJPath:       prjPath,
		Manifest:      manifest,
	}, nil
}
