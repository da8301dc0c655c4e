package wire

import (
	"bytes"
	"testing"
)

func TestPacketRoundTripPlainPayload(t *testing.T) {
	p := &Packet{
		Version:   1,
		Type:      4,
		TTL:       5,
		Timestamp: 1_700_000_000,
		SenderID:  [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Payload:   []byte("ping"),
	}
	encoded, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != 256 {
		t.Fatalf("encoded length = %d, want 256", len(encoded))
	}

	decoded, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != p.Version || decoded.Type != p.Type || decoded.TTL != p.TTL || decoded.Timestamp != p.Timestamp {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
	if decoded.SenderID != p.SenderID {
		t.Fatalf("decoded senderID mismatch: %v", decoded.SenderID)
	}
	if decoded.HasRecipient || decoded.HasSignature {
		t.Fatalf("unexpected optional flags set: %+v", decoded)
	}
	if string(decoded.Payload) != "ping" {
		t.Fatalf("decoded payload = %q, want %q", decoded.Payload, "ping")
	}
}

func TestPacketCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x41}, 512)
	p := &Packet{
		Version:   1,
		Type:      1,
		TTL:       3,
		Timestamp: 42,
		SenderID:  [8]byte{9, 9, 9, 9, 9, 9, 9, 9},
		Payload:   payload,
	}
	encoded, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	unpaddedHeader := Unpad(encoded)
	flags := unpaddedHeader[11]
	if flags&flagIsCompressed == 0 {
		t.Fatalf("expected isCompressed flag set, flags=%08b", flags)
	}

	decoded, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Payload) != 512 {
		t.Fatalf("decoded payload length = %d, want 512", len(decoded.Payload))
	}
	for i, b := range decoded.Payload {
		if b != 0x41 {
			t.Fatalf("decoded payload[%d] = %x, want 0x41", i, b)
		}
	}
}

func TestPacketRoundTripWithRecipientAndSignature(t *testing.T) {
	p := &Packet{
		Version:      1,
		Type:         2,
		TTL:          7,
		Timestamp:    123456,
		SenderID:     [8]byte{1, 1, 1, 1, 1, 1, 1, 1},
		RecipientID:  [8]byte{2, 2, 2, 2, 2, 2, 2, 2},
		HasRecipient: true,
		Payload:      []byte("hello there"),
		Signature:    [64]byte{0xAA},
		HasSignature: true,
	}
	encoded, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.HasRecipient || decoded.RecipientID != p.RecipientID {
		t.Fatalf("recipientID not round-tripped: %+v", decoded)
	}
	if !decoded.HasSignature || decoded.Signature != p.Signature {
		t.Fatalf("signature not round-tripped: %+v", decoded)
	}
	if string(decoded.Payload) != "hello there" {
		t.Fatalf("payload mismatch: %q", decoded.Payload)
	}
}

func TestDecodePacketRejectsUnsupportedVersion(t *testing.T) {
	p := &Packet{Version: 1, Type: 1, Timestamp: 1, SenderID: [8]byte{1}, Payload: []byte("x")}
	encoded, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	unpadded := Unpad(encoded)
	unpadded[0] = 9
	if _, err := DecodePacket(unpadded); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestDecodePacketRejectsOversizedBuffer(t *testing.T) {
	huge := make([]byte, maxTotalSize+1)
	if _, err := DecodePacket(huge); err == nil {
		t.Fatal("expected oversized packet to be rejected")
	}
}

func TestDecodePacketRejectsTruncatedBuffer(t *testing.T) {
	if _, err := DecodePacket([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected truncated buffer to be rejected")
	}
}
