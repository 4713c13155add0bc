package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/binaa-yemen/raster-pipeline/internal/raster"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// runIngest drives one upload through the raster engine: for an archive
// task it first picks the largest TIFF member, then for both task kinds it
// runs the GeoTIFF pipeline, uploads the resulting artifacts, and updates
// the job/layer rows.
func (r *Runtime) runIngest(ctx context.Context, t *Task) error {
	srcPath := t.SrcPath
	original := t.Original

	if t.Kind == TaskProcessArchive {
		r.reportProgress(ctx, t.JobID, rasterjob.StatusProcessing, 5, "selecting_raster")
		extracted, name, err := raster.ExtractLargestTIFF(srcPath, filepath.Dir(srcPath))
		if err != nil {
			return err
		}
		srcPath = extracted
		original = name
	}

	outDir := filepath.Join(filepath.Dir(srcPath), "out-"+t.LayerID)
	defer os.RemoveAll(outDir)

	artifacts, err := raster.ProcessGeoTIFF(t.JobID, t.LayerID, srcPath, original, outDir, func(stage string, pct int) {
		r.reportProgress(ctx, t.JobID, rasterjob.StatusProcessing, pct, stage)
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return rasterjob.NewTimeoutError()
	default:
	}

	cogURL, err := r.objs.Put(ctx, artifacts.COGPath, t.LayerID, "layer.tif", "image/tiff")
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	pngURL, err := r.objs.Put(ctx, artifacts.PNGPath, t.LayerID, "preview.png", "image/png")
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	if _, err := r.objs.Put(ctx, artifacts.WorldFilePath, t.LayerID, "layer.pgw", "text/plain"); err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	if _, err := r.objs.Put(ctx, artifacts.PRJPath, t.LayerID, "layer.prj", "text/plain"); err != nil {
		return rasterjob.NewIOTransientError(err)
	}

	artifacts.Manifest.COGURL = cogURL
	artifacts.Manifest.PNGURL = pngURL
	artifacts.Manifest.ImageFile = pngURL

	manifestJSON, err := json.Marshal(artifacts.Manifest)
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(outDir, "metadata.json")
	if err := os.WriteFile(manifestPath, manifestJSON, 0o644); err != nil {
		return rasterjob.NewIOFatalError(err)
	}
	metadataURL, err := r.objs.Put(ctx, manifestPath, t.LayerID, "metadata.json", "application/json")
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	artifacts.Manifest.MetadataURL = metadataURL

	bounds := rasterjob.Bounds(artifacts.Manifest.Bbox)
	if err := r.store.UpdateLayer(ctx, &rasterjob.Layer{
		ID:          t.LayerID,
		Status:      rasterjob.LayerProcessed,
		ImageURL:    &pngURL,
		COGURL:      &cogURL,
		BoundsWGS84: &bounds,
		Width:       &artifacts.Manifest.Width,
		Height:      &artifacts.Manifest.Height,
		CRS:         &artifacts.Manifest.CRS,
		Metadata:    rasterjob.Metadata{},
	}); err != nil {
		return rasterjob.NewIOTransientError(err)
	}

	ok, err := r.store.FinishJob(ctx, t.JobID, rasterjob.StatusCompleted, rasterjob.Metadata{
		"manifest": artifacts.Manifest,
	})
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	if !ok {
		// Job was already cancelled or otherwise finalized by another
		// writer; the terminal-state guard means this is not an error,
		// just a lost race this worker should not fight.
		return nil
	}
	return nil
}

func (r *Runtime) reportProgress(ctx context.Context, jobID string, status rasterjob.Status, pct int, stage string) {
	ok, err := r.store.UpdateProgress(ctx, jobID, status, pct, rasterjob.Metadata{"stage": stage})
	if err != nil || !ok {
		return
	}
}

func (r *Runtime) runCleanup(ctx context.Context) error {
	n, err := r.store.DeleteOldJobs(ctx, r.cfg.JobRetentionDays)
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	if n > 0 {
		slog.Info("cleanup_old_jobs removed jobs", "count", n, "retention_days", r.cfg.JobRetentionDays)
	}
	return nil
}

func (r *Runtime) runStats(ctx context.Context) error {
	_, err := r.store.ProcessingStatsLast24h(ctx)
	if err != nil {
		return rasterjob.NewIOTransientError(err)
	}
	return nil
}
