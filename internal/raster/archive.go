package raster

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// ExtractLargestTIFF opens a zip archive and extracts the largest (by
// uncompressed size) *.tif/*.tiff member found anywhere in it, including
// nested directories, into destDir. It returns the extracted file's path
// and the member's original base name.
func ExtractLargestTIFF(archivePath, destDir string) (extractedPath, originalName string, err error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", "", fmt.Errorf("raster: open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	var best *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		lower := strings.ToLower(f.Name)
		if !strings.HasSuffix(lower, ".tif") && !strings.HasSuffix(lower, ".tiff") {
			continue
		}
		if best == nil || f.UncompressedSize64 > best.UncompressedSize64 {
			best = f
		}
	}
	if best == nil {
		return "", "", rasterjob.NewValidationError("no_raster_in_archive: archive contains no .tif/.tiff member")
	}

	rc, err := best.Open()
	if err != nil {
		return "", "", fmt.Errorf("raster: open archive member %s: %w", best.Name, err)
	}
	defer rc.Close()

	name := filepath.Base(best.Name)
	outPath := filepath.Join(destDir, name)
	out, err := os.Create(outPath)
	if err != nil {
		return "", "", fmt.Errorf("raster: create %s: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", "", fmt.Errorf("raster: extract %s: %w", best.Name, err)
	}
	return outPath, name, nil
}
