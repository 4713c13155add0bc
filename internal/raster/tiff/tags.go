package tiff

// Baseline TIFF 6.0 tags used by the reader and writer.
const (
	tagImageWidth                uint16 = 256
	tagImageLength               uint16 = 257
	tagBitsPerSample             uint16 = 258
	tagCompression               uint16 = 259
	tagPhotometricInterpretation uint16 = 262
	tagStripOffsets              uint16 = 273
	tagSamplesPerPixel           uint16 = 277
	tagRowsPerStrip              uint16 = 278
	tagStripByteCounts           uint16 = 279
	tagPlanarConfiguration       uint16 = 284
	tagPredictor                 uint16 = 317
	tagTileWidth                 uint16 = 322
	tagTileLength                uint16 = 323
	tagTileOffsets               uint16 = 324
	tagTileByteCounts            uint16 = 325
	tagSampleFormat              uint16 = 339
)

// GeoTIFF tags.
const (
	tagModelPixelScale    uint16 = 33550
	tagModelTiepoint      uint16 = 33922
	tagModelTransformation uint16 = 34264
	tagGeoKeyDirectory    uint16 = 34735
	tagGeoDoubleParams    uint16 = 34736
	tagGeoASCIIParams     uint16 = 34737
	tagGDALNoData         uint16 = 42113
)

// IFD field type codes.
const (
	dtByte      uint16 = 1
	dtASCII     uint16 = 2
	dtShort     uint16 = 3
	dtLong      uint16 = 4
	dtRational  uint16 = 5
	dtSByte     uint16 = 6
	dtUndefined uint16 = 7
	dtSShort    uint16 = 8
	dtSLong     uint16 = 9
	dtSRational uint16 = 10
	dtFloat     uint16 = 11
	dtDouble    uint16 = 12
	dtLong8     uint16 = 16 // BigTIFF 64-bit unsigned integer
)

var typeSize = map[uint16]int{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8, dtLong8: 8,
}

// GeoKey IDs relevant to CRS detection (GeoTIFF 1.0 spec section 6.3).
const (
	geoKeyGTModelType          uint16 = 1024
	geoKeyGeographicType       uint16 = 2048
	geoKeyProjectedCSType      uint16 = 3072
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
)
