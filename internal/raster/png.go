package raster

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/binaa-yemen/raster-pipeline/internal/raster/tiff"
)

const previewMaxDimension = 2048

// BuildPreviewPNG renders a browsable 8-bit PNG preview from img: a 2nd-98th
// percentile stretch per band, computed over valid (non-nodata) pixels only.
// The result keeps img's dimensions; FitForPreview does the downscale to
// previewMaxDimension.
func BuildPreviewPNG(img *tiff.Image) (image.Image, error) {
	n := len(img.Bands)
	switch {
	case n == 1:
		gray := stretchBand(img, 0)
		return toRGBAFromGray(gray, img.Width, img.Height), nil
	case n >= 3:
		r := stretchBand(img, 0)
		g := stretchBand(img, 1)
		b := stretchBand(img, 2)
		return toRGBAFromBands(r, g, b, img.Width, img.Height), nil
	default:
		return nil, fmt.Errorf("unsupported_band_configuration: raster has %d bands, expected 1 or >= 3", n)
	}
}

// stretchBand returns band b rescaled to [0,255] using its 2nd-98th
// percentile as the input range. Nodata pixels are excluded from both the
// percentile computation and are written as 0 (opaque black) in the
// output, never folded into the valid-data statistics via a "> 0" proxy.
func stretchBand(img *tiff.Image, b int) []uint8 {
	data := img.Bands[b].Data
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		if img.HasNoData && v == img.NoData {
			continue
		}
		valid = append(valid, v)
	}
	lo, hi := percentileRange(valid, 2, 98)
	out := make([]uint8, len(data))
	span := hi - lo
	for i, v := range data {
		if img.HasNoData && v == img.NoData {
			out[i] = 0
			continue
		}
		if span <= 0 {
			out[i] = 128
			continue
		}
		scaled := (v - lo) / span * 255
		switch {
		case scaled < 0:
			out[i] = 0
		case scaled > 255:
			out[i] = 255
		default:
			out[i] = uint8(scaled)
		}
	}
	return out
}

func percentileRange(valid []float64, lowPct, highPct float64) (lo, hi float64) {
	if len(valid) == 0 {
		return 0, 1
	}
	sorted := append([]float64(nil), valid...)
	sort.Float64s(sorted)
	lo = percentileOf(sorted, lowPct)
	hi = percentileOf(sorted, highPct)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func percentileOf(sorted []float64, pct float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := pct / 100 * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func toRGBAFromGray(gray []uint8, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range gray {
		img.SetRGBA(i%w, i/w, color.RGBA{v, v, v, 255})
	}
	return img
}

func toRGBAFromBands(r, g, b []uint8, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range r {
		img.SetRGBA(i%w, i/w, color.RGBA{r[i], g[i], b[i], 255})
	}
	return img
}

// FitForPreview downscales img, if needed, so neither dimension exceeds
// previewMaxDimension, using Lanczos resampling.
func FitForPreview(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= previewMaxDimension && h <= previewMaxDimension {
		return img
	}
	if w >= h {
		return imaging.Resize(img, previewMaxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, previewMaxDimension, imaging.Lanczos)
}
