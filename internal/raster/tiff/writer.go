package tiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// WriteOptions configures COG production.
type WriteOptions struct {
	TileSize       int
	Compression    Compression
	OverviewFactors []int // e.g. [2, 4, 8, 16]; one overview per entry, each half the previous level (the values are not read)
	EPSG           uint16
	Geographic     bool
	Transform      GeoTransform
	HasNoData      bool
	NoData         float64

	// BigTIFFThresholdBytes forces BigTIFF (64-bit offsets) once the
	// estimated uncompressed payload would exceed this many bytes. GDAL's
	// own default threshold is 4GiB; a smaller margin is kept here because
	// tile padding and header overhead add up before the true encoded size
	// is known.
	BigTIFFThresholdBytes int64
}

// DefaultWriteOptions returns the tiling/compression defaults mandated for
// ingested layers: 512x512 tiles, DEFLATE, overviews at 2/4/8/16.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		TileSize:              512,
		Compression:            CompressionDeflate,
		OverviewFactors:        []int{2, 4, 8, 16},
		BigTIFFThresholdBytes:  int64(3.5 * 1024 * 1024 * 1024),
	}
}

// WriteCOG encodes img as a tiled, internally-overviewed GeoTIFF at path.
func WriteCOG(path string, img *Image, opts WriteOptions) error {
	data, err := EncodeCOG(img, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tiff: write %s: %w", path, err)
	}
	return nil
}

// EncodeCOG builds the COG byte stream in memory.
func EncodeCOG(img *Image, opts WriteOptions) ([]byte, error) {
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("tiff: tile size must be positive")
	}

	levels := []*Image{img}
	cur := img
	for range opts.OverviewFactors {
		cur = downsampleAreaAverage(cur)
		levels = append(levels, cur)
	}

	estBytes := int64(0)
	samplesPerPixel := len(img.Bands)
	pixelBytes := img.BitsPerSample / 8
	for _, lvl := range levels {
		estBytes += int64(lvl.Width) * int64(lvl.Height) * int64(samplesPerPixel) * int64(pixelBytes)
	}
	bigTIFF := estBytes > opts.BigTIFFThresholdBytes

	order := binary.LittleEndian
	buf := new(bytes.Buffer)

	if bigTIFF {
		buf.Write([]byte("II"))
		writeU16(buf, order, 43)
		writeU16(buf, order, 8)
		writeU16(buf, order, 0)
		writeU64(buf, order, 0) // first IFD offset, patched below
	} else {
		buf.Write([]byte("II"))
		writeU16(buf, order, 42)
		writeU32(buf, order, 0) // first IFD offset, patched below
	}

	type levelTiles struct {
		tileOffsets    []uint64
		tileByteCounts []uint64
		tilesAcross    int
		tilesDown      int
	}
	tileInfo := make([]levelTiles, len(levels))

	for li, lvl := range levels {
		tilesAcross := (lvl.Width + opts.TileSize - 1) / opts.TileSize
		tilesDown := (lvl.Height + opts.TileSize - 1) / opts.TileSize
		ti := levelTiles{tilesAcross: tilesAcross, tilesDown: tilesDown}
		for ty := 0; ty < tilesDown; ty++ {
			for tx := 0; tx < tilesAcross; tx++ {
				raw := extractTile(lvl, tx*opts.TileSize, ty*opts.TileSize, opts.TileSize, samplesPerPixel, pixelBytes, img.SampleFormat, order)
				enc, err := compressChunk(raw, opts.Compression)
				if err != nil {
					return nil, err
				}
				ti.tileOffsets = append(ti.tileOffsets, uint64(buf.Len()))
				ti.tileByteCounts = append(ti.tileByteCounts, uint64(len(enc)))
				buf.Write(enc)
			}
		}
		tileInfo[li] = ti
	}

	var firstIFDOffset uint64
	for li, lvl := range levels {
		ti := tileInfo[li]
		entries := []rawEntry{
			u32Entry(254, boolToUint32(li > 0)), // NewSubfileType: 0 full-res, 1 reduced
			u32Entry(tagImageWidth, uint32(lvl.Width)),
			u32Entry(tagImageLength, uint32(lvl.Height)),
			shortArrayEntry(tagBitsPerSample, order, repeatU16(uint16(img.BitsPerSample), samplesPerPixel)),
			u16Entry(tagCompression, uint16(opts.Compression)),
			u16Entry(tagPhotometricInterpretation, photometricFor(samplesPerPixel)),
			u16Entry(tagSamplesPerPixel, uint16(samplesPerPixel)),
			u16Entry(tagPlanarConfiguration, 1),
			u32Entry(tagTileWidth, uint32(opts.TileSize)),
			u32Entry(tagTileLength, uint32(opts.TileSize)),
			longArrayEntry(tagTileOffsets, order, ti.tileOffsets, bigTIFF),
			longArrayEntry(tagTileByteCounts, order, ti.tileByteCounts, bigTIFF),
			shortArrayEntry(tagSampleFormat, order, repeatU16(uint16(img.SampleFormat), samplesPerPixel)),
		}

		if li == 0 {
			if img.HasTransform || opts.Transform != (GeoTransform{}) {
				t := img.Transform
				if opts.Transform != (GeoTransform{}) {
					t = opts.Transform
				}
				scale := []float64{t.PixelWidth(), -t.PixelHeight(), 0}
				tie := []float64{0, 0, 0, t.OriginX(), t.OriginY(), 0}
				entries = append(entries,
					doubleArrayEntry(tagModelPixelScale, order, scale),
					doubleArrayEntry(tagModelTiepoint, order, tie),
				)
			}
			if opts.EPSG != 0 {
				gk := buildGeoKeyDirectory(opts.EPSG, opts.Geographic)
				entries = append(entries, shortArrayEntry(tagGeoKeyDirectory, order, gk))
			}
			if opts.HasNoData {
				nd := []byte(formatNoData(opts.NoData))
				entries = append(entries, asciiEntry(tagGDALNoData, nd))
			}
		}

		offset, err := writeIFD(buf, order, bigTIFF, entries, li < len(levels)-1)
		if err != nil {
			return nil, err
		}
		if li == 0 {
			firstIFDOffset = offset
		}
	}

	out := buf.Bytes()
	if bigTIFF {
		binary.LittleEndian.PutUint64(out[8:16], firstIFDOffset)
	} else {
		binary.LittleEndian.PutUint32(out[4:8], uint32(firstIFDOffset))
	}
	return out, nil
}

func formatNoData(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func photometricFor(samplesPerPixel int) uint16 {
	if samplesPerPixel >= 3 {
		return uint16(PhotometricRGB)
	}
	return uint16(PhotometricMinIsBlack)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func repeatU16(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// extractTile packs one tile's samples into file byte order, zero-padding
// any portion that falls outside the source raster.
func extractTile(img *Image, x0, y0, tileSize, samplesPerPixel, pixelBytes int, format SampleFormat, order binary.ByteOrder) []byte {
	rowBytes := tileSize * samplesPerPixel * pixelBytes
	out := make([]byte, rowBytes*tileSize)
	for ty := 0; ty < tileSize; ty++ {
		y := y0 + ty
		if y >= img.Height {
			continue
		}
		for tx := 0; tx < tileSize; tx++ {
			x := x0 + tx
			if x >= img.Width {
				continue
			}
			base := ty*rowBytes + tx*samplesPerPixel*pixelBytes
			for b := 0; b < samplesPerPixel; b++ {
				encodeSample(out[base+b*pixelBytes:base+(b+1)*pixelBytes], order, format, img.At(b, x, y))
			}
		}
	}
	return out
}

func encodeSample(dst []byte, order binary.ByteOrder, format SampleFormat, v float64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(int64(v))
	case 2:
		if format == SampleFormatInt {
			order.PutUint16(dst, uint16(int16(v)))
		} else {
			order.PutUint16(dst, uint16(v))
		}
	case 4:
		if format == SampleFormatFloat {
			order.PutUint32(dst, math.Float32bits(float32(v)))
		} else if format == SampleFormatInt {
			order.PutUint32(dst, uint32(int32(v)))
		} else {
			order.PutUint32(dst, uint32(v))
		}
	case 8:
		if format == SampleFormatFloat {
			order.PutUint64(dst, math.Float64bits(v))
		} else if format == SampleFormatInt {
			order.PutUint64(dst, uint64(int64(v)))
		} else {
			order.PutUint64(dst, uint64(v))
		}
	}
}

func compressChunk(raw []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return raw, nil
	case CompressionDeflate, CompressionOldDefl:
		var b bytes.Buffer
		zw := zlib.NewWriter(&b)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("tiff: unsupported output compression %d", compression)
	}
}

// downsampleAreaAverage halves width and height, averaging each 2x2 block
// (edge blocks use whatever samples exist). Pixels equal to the source's
// nodata value are excluded from the average; a block that is entirely
// nodata stays nodata in the output.
func downsampleAreaAverage(img *Image) *Image {
	w, h := (img.Width+1)/2, (img.Height+1)/2
	out := &Image{
		Width: w, Height: h,
		SampleFormat:  img.SampleFormat,
		BitsPerSample: img.BitsPerSample,
		HasTransform:  img.HasTransform,
		CRS:           img.CRS,
		HasNoData:     img.HasNoData,
		NoData:        img.NoData,
		Bands:         make([]Band, len(img.Bands)),
	}
	if img.HasTransform {
		t := img.Transform
		out.Transform = GeoTransform{t[0], t[1] * 2, t[2] * 2, t[3], t[4] * 2, t[5] * 2}
	}

	for b := range img.Bands {
		dst := make([]float64, w*h)
		for oy := 0; oy < h; oy++ {
			for ox := 0; ox < w; ox++ {
				sum, n := 0.0, 0
				for dy := 0; dy < 2; dy++ {
					sy := oy*2 + dy
					if sy >= img.Height {
						continue
					}
					for dx := 0; dx < 2; dx++ {
						sx := ox*2 + dx
						if sx >= img.Width {
							continue
						}
						v := img.At(b, sx, sy)
						if img.HasNoData && v == img.NoData {
							continue
						}
						sum += v
						n++
					}
				}
				if n == 0 {
					if img.HasNoData {
						dst[oy*w+ox] = img.NoData
					}
					continue
				}
				dst[oy*w+ox] = sum / float64(n)
			}
		}
		out.Bands[b] = Band{Data: dst}
	}
	return out
}
