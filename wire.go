package hsess

import "encoding/binary"

// Primitive wire encodings (§6): unsigned integers are little-endian,
// strings are null-terminated, byte arrays are verbatim. These helpers are
// shared by the connect-request and object-ack encoders.

func appendNullString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// decodeNullString reads a NUL-terminated string starting at buf[0]. If no
// terminator is present, the remainder of buf is taken as the string.
func decodeNullString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// encodeObjAckBatch packs a batch of (id, frame) pairs into an OBJACK
// payload: each entry is a 32-bit unsigned id followed by a 32-bit signed
// frame number, both little-endian.
func encodeObjAckBatch(batch []uint64encodedPair) []byte {
	out := make([]byte, 0, len(batch)*objAckEntryWire)
	for _, p := range batch {
		var b [8]byte
		binary.LittleEndian.PutUint32(b[0:4], p.id)
		binary.LittleEndian.PutUint32(b[4:8], uint32(p.frame))
		out = append(out, b[:]...)
	}
	return out
}
