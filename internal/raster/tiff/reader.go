package tiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	valueOff [4]byte
}

func (e ifdEntry) size() int64 {
	sz, ok := typeSize[e.typ]
	if !ok {
		return 0
	}
	return int64(sz) * int64(e.count)
}

// Open reads path as a TIFF/GeoTIFF and decodes its first image into memory.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tiff: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("tiff: read %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode parses an in-memory TIFF/GeoTIFF byte stream.
func Decode(raw []byte) (*Image, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("tiff: file too small to be a TIFF")
	}

	var order binary.ByteOrder
	switch string(raw[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("tiff: not a TIFF file (bad byte order marker)")
	}

	magic := order.Uint16(raw[2:4])
	var ifdOffset uint32
	var bigTIFF bool
	switch magic {
	case 42:
		ifdOffset = order.Uint32(raw[4:8])
	case 43:
		bigTIFF = true
		if len(raw) < 16 {
			return nil, fmt.Errorf("tiff: truncated BigTIFF header")
		}
		ifdOffset = uint32(order.Uint64(raw[8:16]))
	default:
		return nil, fmt.Errorf("tiff: unrecognized magic number %d", magic)
	}
	if bigTIFF {
		return nil, fmt.Errorf("tiff: reading BigTIFF input is not supported")
	}

	entries, nextIFD, err := readIFD(raw, order, ifdOffset)
	if err != nil {
		return nil, err
	}
	_ = nextIFD // only the first image is ingested; multi-page TIFFs are out of scope

	tags := make(map[uint16]ifdEntry, len(entries))
	for _, e := range entries {
		tags[e.tag] = e
	}

	img := &Image{}

	width, err := requireUint(raw, order, tags, tagImageWidth)
	if err != nil {
		return nil, err
	}
	height, err := requireUint(raw, order, tags, tagImageLength)
	if err != nil {
		return nil, err
	}
	img.Width, img.Height = int(width), int(height)

	samplesPerPixel := 1
	if e, ok := tags[tagSamplesPerPixel]; ok {
		v, err := readUintScalar(raw, order, e)
		if err != nil {
			return nil, err
		}
		samplesPerPixel = int(v)
	}

	bitsPerSample := 8
	if e, ok := tags[tagBitsPerSample]; ok {
		vals, err := readUintArray(raw, order, e)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			bitsPerSample = int(vals[0])
		}
	}
	img.BitsPerSample = bitsPerSample

	img.SampleFormat = SampleFormatUint
	if e, ok := tags[tagSampleFormat]; ok {
		vals, err := readUintArray(raw, order, e)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			img.SampleFormat = SampleFormat(vals[0])
		}
	}

	compression := CompressionNone
	if e, ok := tags[tagCompression]; ok {
		v, err := readUintScalar(raw, order, e)
		if err != nil {
			return nil, err
		}
		compression = Compression(v)
	}

	planarConfig := uint64(1)
	if e, ok := tags[tagPlanarConfiguration]; ok {
		v, err := readUintScalar(raw, order, e)
		if err != nil {
			return nil, err
		}
		planarConfig = v
	}
	if planarConfig != 1 {
		return nil, fmt.Errorf("tiff: planar (non-chunky) sample layout is not supported")
	}

	pixelBytes := bitsPerSample / 8
	if pixelBytes*8 != bitsPerSample {
		return nil, fmt.Errorf("tiff: unsupported bits-per-sample %d", bitsPerSample)
	}

	raster, err := decodeSamples(raw, order, tags, img.Width, img.Height, samplesPerPixel, pixelBytes, compression)
	if err != nil {
		return nil, err
	}

	img.Bands = make([]Band, samplesPerPixel)
	for b := 0; b < samplesPerPixel; b++ {
		img.Bands[b] = Band{Data: make([]float64, img.Width*img.Height)}
	}
	n := img.Width * img.Height
	for b := 0; b < samplesPerPixel; b++ {
		dst := img.Bands[b].Data
		for i := 0; i < n; i++ {
			off := (i*samplesPerPixel + b) * pixelBytes
			dst[i] = decodeSample(raster[off:off+pixelBytes], order, img.SampleFormat, pixelBytes)
		}
	}

	if e, ok := tags[tagModelPixelScale]; ok {
		scale, err := readDoubleArray(raw, order, e)
		if err == nil && len(scale) >= 2 {
			if tp, ok := tags[tagModelTiepoint]; ok {
				tie, err := readDoubleArray(raw, order, tp)
				if err == nil && len(tie) >= 6 {
					originX := tie[3] - tie[0]*scale[0]
					originY := tie[4] + tie[1]*scale[1]
					img.Transform = GeoTransform{originX, scale[0], 0, originY, 0, -scale[1]}
					img.HasTransform = true
				}
			}
		}
	} else if e, ok := tags[tagModelTransformation]; ok {
		m, err := readDoubleArray(raw, order, e)
		if err == nil && len(m) >= 16 {
			img.Transform = GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
			img.HasTransform = true
		}
	}

	if e, ok := tags[tagGDALNoData]; ok {
		s, err := readASCII(raw, order, e)
		if err == nil {
			var v float64
			if _, serr := fmt.Sscanf(s, "%g", &v); serr == nil {
				img.HasNoData = true
				img.NoData = v
			}
		}
	}

	crs, err := detectCRS(raw, order, tags)
	if err == nil && crs != "" {
		img.CRS = crs
	}

	return img, nil
}

func readIFD(raw []byte, order binary.ByteOrder, offset uint32) ([]ifdEntry, uint32, error) {
	if int(offset)+2 > len(raw) {
		return nil, 0, fmt.Errorf("tiff: IFD offset out of range")
	}
	count := order.Uint16(raw[offset : offset+2])
	entries := make([]ifdEntry, 0, count)
	pos := int(offset) + 2
	for i := 0; i < int(count); i++ {
		if pos+12 > len(raw) {
			return nil, 0, fmt.Errorf("tiff: truncated IFD entry")
		}
		var e ifdEntry
		e.tag = order.Uint16(raw[pos : pos+2])
		e.typ = order.Uint16(raw[pos+2 : pos+4])
		e.count = order.Uint32(raw[pos+4 : pos+8])
		copy(e.valueOff[:], raw[pos+8:pos+12])
		entries = append(entries, e)
		pos += 12
	}
	var next uint32
	if pos+4 <= len(raw) {
		next = order.Uint32(raw[pos : pos+4])
	}
	return entries, next, nil
}

func entryData(raw []byte, order binary.ByteOrder, e ifdEntry) ([]byte, error) {
	total := e.size()
	if total <= 4 {
		return e.valueOff[:total], nil
	}
	off := order.Uint32(e.valueOff[:])
	if int64(off)+total > int64(len(raw)) {
		return nil, fmt.Errorf("tiff: tag %d value out of range", e.tag)
	}
	return raw[off : int64(off)+total], nil
}

func readUintArray(raw []byte, order binary.ByteOrder, e ifdEntry) ([]uint64, error) {
	data, err := entryData(raw, order, e)
	if err != nil {
		return nil, err
	}
	sz := typeSize[e.typ]
	out := make([]uint64, e.count)
	for i := 0; i < int(e.count); i++ {
		chunk := data[i*sz : i*sz+sz]
		switch e.typ {
		case dtByte, dtSByte, dtUndefined:
			out[i] = uint64(chunk[0])
		case dtShort, dtSShort:
			out[i] = uint64(order.Uint16(chunk))
		case dtLong, dtSLong:
			out[i] = uint64(order.Uint32(chunk))
		default:
			return nil, fmt.Errorf("tiff: tag %d has non-integer type %d", e.tag, e.typ)
		}
	}
	return out, nil
}

func readUintScalar(raw []byte, order binary.ByteOrder, e ifdEntry) (uint64, error) {
	vals, err := readUintArray(raw, order, e)
	if err != nil || len(vals) == 0 {
		return 0, err
	}
	return vals[0], nil
}

func requireUint(raw []byte, order binary.ByteOrder, tags map[uint16]ifdEntry, tag uint16) (uint64, error) {
	e, ok := tags[tag]
	if !ok {
		return 0, fmt.Errorf("tiff: missing required tag %d", tag)
	}
	return readUintScalar(raw, order, e)
}

func readDoubleArray(raw []byte, order binary.ByteOrder, e ifdEntry) ([]float64, error) {
	data, err := entryData(raw, order, e)
	if err != nil {
		return nil, err
	}
	out := make([]float64, e.count)
	for i := 0; i < int(e.count); i++ {
		bits := order.Uint64(data[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

func readASCII(raw []byte, order binary.ByteOrder, e ifdEntry) (string, error) {
	data, err := entryData(raw, order, e)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(data, "\x00")), nil
}

func decodeSample(b []byte, order binary.ByteOrder, format SampleFormat, width int) float64 {
	switch width {
	case 1:
		if format == SampleFormatInt {
			return float64(int8(b[0]))
		}
		return float64(b[0])
	case 2:
		u := order.Uint16(b)
		if format == SampleFormatInt {
			return float64(int16(u))
		}
		return float64(u)
	case 4:
		if format == SampleFormatFloat {
			return float64(math.Float32frombits(order.Uint32(b)))
		}
		u := order.Uint32(b)
		if format == SampleFormatInt {
			return float64(int32(u))
		}
		return float64(u)
	case 8:
		if format == SampleFormatFloat {
			return math.Float64frombits(order.Uint64(b))
		}
		u := order.Uint64(b)
		if format == SampleFormatInt {
			return float64(int64(u))
		}
		return float64(u)
	default:
		return 0
	}
}

// decodeSamples returns the decompressed, chunky-interleaved raster as raw
// bytes, reassembled strip-by-strip or tile-by-tile into a single buffer.
func decodeSamples(raw []byte, order binary.ByteOrder, tags map[uint16]ifdEntry, width, height, samplesPerPixel, pixelBytes int, compression Compression) ([]byte, error) {
	rowBytes := width * samplesPerPixel * pixelBytes
	out := make([]byte, rowBytes*height)

	if twE, ok := tags[tagTileWidth]; ok {
		tlE, ok2 := tags[tagTileLength]
		if !ok2 {
			return nil, fmt.Errorf("tiff: tiled image missing TileLength")
		}
		tw, err := readUintScalar(raw, order, twE)
		if err != nil {
			return nil, err
		}
		th, err := readUintScalar(raw, order, tlE)
		if err != nil {
			return nil, err
		}
		offE, ok := tags[tagTileOffsets]
		if !ok {
			return nil, fmt.Errorf("tiff: tiled image missing TileOffsets")
		}
		cntE, ok := tags[tagTileByteCounts]
		if !ok {
			return nil, fmt.Errorf("tiff: tiled image missing TileByteCounts")
		}
		offsets, err := readUintArray(raw, order, offE)
		if err != nil {
			return nil, err
		}
		counts, err := readUintArray(raw, order, cntE)
		if err != nil {
			return nil, err
		}

		tileW, tileH := int(tw), int(th)
		tileRowBytes := tileW * samplesPerPixel * pixelBytes
		tilesAcross := (width + tileW - 1) / tileW
		tilesDown := (height + tileH - 1) / tileH

		idx := 0
		for ty := 0; ty < tilesDown; ty++ {
			for tx := 0; tx < tilesAcross; tx++ {
				if idx >= len(offsets) {
					return nil, fmt.Errorf("tiff: tile index out of range")
				}
				chunk, err := decompressChunk(raw, offsets[idx], counts[idx], compression)
				if err != nil {
					return nil, err
				}
				x0 := tx * tileW
				y0 := ty * tileH
				rows := tileH
				if y0+rows > height {
					rows = height - y0
				}
				cols := tileW
				if x0+cols > width {
					cols = width - x0
				}
				for r := 0; r < rows; r++ {
					srcOff := r * tileRowBytes
					dstOff := (y0+r)*rowBytes + x0*samplesPerPixel*pixelBytes
					n := cols * samplesPerPixel * pixelBytes
					if srcOff+n > len(chunk) {
						n = len(chunk) - srcOff
					}
					if n > 0 {
						copy(out[dstOff:dstOff+n], chunk[srcOff:srcOff+n])
					}
				}
				idx++
			}
		}
		return out, nil
	}

	offE, ok := tags[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("tiff: image has neither tile nor strip layout")
	}
	cntE, ok := tags[tagStripByteCounts]
	if !ok {
		return nil, fmt.Errorf("tiff: strip image missing StripByteCounts")
	}
	rowsPerStrip := height
	if rE, ok := tags[tagRowsPerStrip]; ok {
		v, err := readUintScalar(raw, order, rE)
		if err == nil && v > 0 {
			rowsPerStrip = int(v)
		}
	}
	offsets, err := readUintArray(raw, order, offE)
	if err != nil {
		return nil, err
	}
	counts, err := readUintArray(raw, order, cntE)
	if err != nil {
		return nil, err
	}

	row := 0
	for i := 0; i < len(offsets) && row < height; i++ {
		chunk, err := decompressChunk(raw, offsets[i], counts[i], compression)
		if err != nil {
			return nil, err
		}
		rows := rowsPerStrip
		if row+rows > height {
			rows = height - row
		}
		n := rows * rowBytes
		if n > len(chunk) {
			n = len(chunk)
		}
		copy(out[row*rowBytes:row*rowBytes+n], chunk[:n])
		row += rows
	}
	return out, nil
}

func decompressChunk(raw []byte, offset, count uint64, compression Compression) ([]byte, error) {
	if int64(offset)+int64(count) > int64(len(raw)) {
		return nil, fmt.Errorf("tiff: chunk out of range")
	}
	chunk := raw[offset : offset+count]
	switch compression {
	case CompressionNone:
		return chunk, nil
	case CompressionDeflate, CompressionOldDefl:
		zr, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, fmt.Errorf("tiff: deflate chunk: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionPackbits:
		return unpackBits(chunk), nil
	default:
		return nil, fmt.Errorf("tiff: unsupported compression scheme %d", compression)
	}
}

func unpackBits(src []byte) []byte {
	var out bytes.Buffer
	i := 0
	for i < len(src) {
		n := int8(src[i])
		i++
		switch {
		case n >= 0:
			count := int(n) + 1
			if i+count > len(src) {
				count = len(src) - i
			}
			out.Write(src[i : i+count])
			i += count
		case n != -128:
			count := int(-n) + 1
			if i < len(src) {
				b := src[i]
				for j := 0; j < count; j++ {
					out.WriteByte(b)
				}
				i++
			}
		}
	}
	return out.Bytes()
}
