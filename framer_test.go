package hsess

import (
	"bytes"
	"testing"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		typ     PacketType
		payload []byte
	}{
		{"empty payload", PacketBeat, nil},
		{"sess payload", PacketSess, []byte{2, 'H', 'a', 'f', 'e', 'n', 0}},
		{"short ack", PacketAck, []byte{1, 0}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, maxPacketSize)
			n, err := encodePacket(buf, tc.typ, tc.payload)
			if err != nil {
				t.Fatalf("encodePacket: %v", err)
			}
			typ, payload, err := decodePacket(buf[:n])
			if err != nil {
				t.Fatalf("decodePacket: %v", err)
			}
			if typ != tc.typ {
				t.Fatalf("type = %v, want %v", typ, tc.typ)
			}
			if !bytes.Equal(payload, tc.payload) {
				t.Fatalf("payload = %x, want %x", payload, tc.payload)
			}
		})
	}
}

func TestDecodePacketEmpty(t *testing.T) {
	_, _, err := decodePacket(nil)
	if err != errNoPacket {
		t.Fatalf("err = %v, want errNoPacket", err)
	}
}

func TestEncodePacketBufferTooSmall(t *testing.T) {
	buf := make([]byte, 4)
	_, err := encodePacket(buf, PacketRel, make([]byte, 100))
	if err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestPacketTypeString(t *testing.T) {
	if got := PacketRel.String(); got != "REL" {
		t.Fatalf("String() = %q, want REL", got)
	}
	if got := PacketType(99).String(); got == "" {
		t.Fatalf("String() for unknown type returned empty string")
	}
}
