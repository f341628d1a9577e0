package hsess

import (
	"bytes"
	"testing"
)

func TestAppendAndDecodeNullString(t *testing.T) {
	buf := appendNullString(nil, "hello")
	buf = append(buf, 0xFF) // trailing garbage after the terminator
	if got := decodeNullString(buf); got != "hello" {
		t.Fatalf("decodeNullString = %q, want %q", got, "hello")
	}
}

func TestDecodeNullStringWithoutTerminator(t *testing.T) {
	if got := decodeNullString([]byte("abc")); got != "abc" {
		t.Fatalf("decodeNullString = %q, want %q", got, "abc")
	}
}

func TestAppendUint16(t *testing.T) {
	buf := appendUint16(nil, 0x0102)
	if !bytes.Equal(buf, []byte{0x02, 0x01}) {
		t.Fatalf("appendUint16 = %x, want little-endian 0201", buf)
	}
}

func TestEncodeObjAckBatch(t *testing.T) {
	batch := []uint64encodedPair{{id: 1, frame: -1}, {id: 2, frame: 7}}
	out := encodeObjAckBatch(batch)
	if len(out) != 2*objAckEntryWire {
		t.Fatalf("len(out) = %d, want %d", len(out), 2*objAckEntryWire)
	}
}
