package tiff

import (
	"encoding/binary"
	"fmt"
)

// detectCRS reads the GeoKeyDirectory (tag 34735) and reports the image's
// CRS as an "EPSG:<code>" string, covering both the GTModelTypeGeoKey
// geographic and projected cases. It does not attempt full WKT synthesis;
// that is handled separately when a .prj sidecar is written, since the
// pipeline only needs to round-trip EPSG codes it already knows about.
func detectCRS(raw []byte, order binary.ByteOrder, tags map[uint16]ifdEntry) (string, error) {
	e, ok := tags[tagGeoKeyDirectory]
	if !ok {
		return "", nil
	}
	dir, err := readUintArray(raw, order, e)
	if err != nil {
		return "", err
	}
	if len(dir) < 4 {
		return "", fmt.Errorf("tiff: truncated GeoKeyDirectory")
	}
	numKeys := int(dir[3])
	keys := make(map[uint16]uint64, numKeys)
	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+4 > len(dir) {
			break
		}
		keyID := uint16(dir[base])
		tiffTagLoc := dir[base+1]
		valueOrCount := dir[base+3]
		if tiffTagLoc == 0 {
			keys[keyID] = valueOrCount
		}
		// Keys stored in GeoDoubleParams/GeoASCIIParams (tiffTagLoc != 0)
		// are not needed for CRS detection: both modelType and the
		// geographic/projected CS codes are always stored inline.
	}

	modelType, hasModel := keys[geoKeyGTModelType]
	if !hasModel {
		return "", nil
	}
	switch modelType {
	case modelTypeProjected:
		if code, ok := keys[geoKeyProjectedCSType]; ok && code != 0 && code != 32767 {
			return fmt.Sprintf("EPSG:%d", code), nil
		}
	case modelTypeGeographic:
		if code, ok := keys[geoKeyGeographicType]; ok && code != 0 && code != 32767 {
			return fmt.Sprintf("EPSG:%d", code), nil
		}
	}
	return "", nil
}

// buildGeoKeyDirectory encodes a minimal GeoKeyDirectory carrying only the
// model type and the EPSG code for epsg, suitable for writing back a
// reprojected (always-geographic, WGS84) output raster.
func buildGeoKeyDirectory(epsg uint16, geographic bool) []uint16 {
	modelType := uint16(modelTypeProjected)
	csKey := geoKeyProjectedCSType
	if geographic {
		modelType = modelTypeGeographic
		csKey = geoKeyGeographicType
	}
	// Header: {KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys}
	return []uint16{
		1, 1, 0, 2,
		geoKeyGTModelType, 0, 1, modelType,
		csKey, 0, 1, epsg,
	}
}
