package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// rawEntry is a not-yet-placed IFD entry: its value bytes are already
// serialized in file byte order; writeIFD decides whether they fit inline
// or need to be spilled to an out-of-line location.
type rawEntry struct {
	tag   uint16
	typ   uint16
	count uint64
	data  []byte
}

func u16Entry(tag uint16, v uint16) rawEntry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return rawEntry{tag: tag, typ: dtShort, count: 1, data: b}
}

func u32Entry(tag uint16, v uint32) rawEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return rawEntry{tag: tag, typ: dtLong, count: 1, data: b}
}

func shortArrayEntry(tag uint16, order binary.ByteOrder, vals []uint16) rawEntry {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(b[i*2:], v)
	}
	return rawEntry{tag: tag, typ: dtShort, count: uint64(len(vals)), data: b}
}

func longArrayEntry(tag uint16, order binary.ByteOrder, vals []uint64, bigTIFF bool) rawEntry {
	if bigTIFF {
		b := make([]byte, 8*len(vals))
		for i, v := range vals {
			order.PutUint64(b[i*8:], v)
		}
		return rawEntry{tag: tag, typ: dtLong8, count: uint64(len(vals)), data: b}
	}
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(b[i*4:], uint32(v))
	}
	return rawEntry{tag: tag, typ: dtLong, count: uint64(len(vals)), data: b}
}

func doubleArrayEntry(tag uint16, order binary.ByteOrder, vals []float64) rawEntry {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return rawEntry{tag: tag, typ: dtDouble, count: uint64(len(vals)), data: b}
}

func asciiEntry(tag uint16, s []byte) rawEntry {
	b := append(append([]byte{}, s...), 0)
	return rawEntry{tag: tag, typ: dtASCII, count: uint64(len(b)), data: b}
}

// writeIFD appends one IFD (plus any out-of-line tag values it needs) to
// buf and returns the absolute offset the IFD itself starts at. hasNext
// tells it whether to chain to the IFD that will be written immediately
// afterward, whose start offset is always buf.Len() right after this call.
func writeIFD(buf *bytes.Buffer, order binary.ByteOrder, bigTIFF bool, entries []rawEntry, hasNext bool) (uint64, error) {
	inlineLimit := 4
	countFieldSize := 2
	entrySize := 12
	nextFieldSize := 4
	if bigTIFF {
		inlineLimit = 8
		countFieldSize = 8
		entrySize = 20
		nextFieldSize = 8
	}

	type placed struct {
		entry  rawEntry
		offset uint64
		inline bool
	}
	placedEntries := make([]placed, len(entries))

	for i, e := range entries {
		if len(e.data) <= inlineLimit {
			placedEntries[i] = placed{entry: e, inline: true}
			continue
		}
		if buf.Len()%2 != 0 {
			buf.WriteByte(0)
		}
		off := uint64(buf.Len())
		buf.Write(e.data)
		placedEntries[i] = placed{entry: e, offset: off}
	}

	ifdStart := uint64(buf.Len())
	ifdByteLen := uint64(countFieldSize + len(entries)*entrySize + nextFieldSize)
	nextOffset := uint64(0)
	if hasNext {
		nextOffset = ifdStart + ifdByteLen
	}

	if bigTIFF {
		writeU64(buf, order, uint64(len(entries)))
	} else {
		writeU16(buf, order, uint16(len(entries)))
	}

	for _, p := range placedEntries {
		writeU16(buf, order, p.entry.tag)
		writeU16(buf, order, p.entry.typ)
		if bigTIFF {
			writeU64(buf, order, p.entry.count)
		} else {
			if p.entry.count > math.MaxUint32 {
				return 0, fmt.Errorf("tiff: entry count overflow for tag %d", p.entry.tag)
			}
			writeU32(buf, order, uint32(p.entry.count))
		}
		valueField := make([]byte, inlineLimit)
		if p.inline {
			copy(valueField, p.entry.data)
		} else {
			if bigTIFF {
				order.PutUint64(valueField, p.offset)
			} else {
				order.PutUint32(valueField, uint32(p.offset))
			}
		}
		buf.Write(valueField)
	}

	if bigTIFF {
		writeU64(buf, order, nextOffset)
	} else {
		writeU32(buf, order, uint32(nextOffset))
	}

	return ifdStart, nil
}

func writeU16(buf *bytes.Buffer, order binary.ByteOrder, v uint16) {
	b := make([]byte, 2)
	order.PutUint16(b, v)
	buf.Write(b)
}

func writeU32(buf *bytes.Buffer, order binary.ByteOrder, v uint32) {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	buf.Write(b)
}

func writeU64(buf *bytes.Buffer, order binary.ByteOrder, v uint64) {
	b := make([]byte, 8)
	order.PutUint64(b, v)
	buf.Write(b)
}
