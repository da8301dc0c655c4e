package wire

import (
	"encoding/binary"
)

const (
	CurrentVersion = 1

	flagHasRecipient = 0x01
	flagHasSignature = 0x02
	flagIsCompressed = 0x04

	maxTotalSize   = 128 * 1024
	maxPayloadLen  = 32768
	senderIDLen    = 8
	recipientIDLen = 8
	signatureLen   = 64
	headerLen      = 1 + 1 + 1 + 8 + 1 + 2 // version,type,ttl,timestamp,flags,payloadLen
)

// Packet is the outer BitchatPacket wire record, per §3/§4.L.
type Packet struct {
	Version   uint8
	Type      uint8
	TTL       uint8
	Timestamp uint64
	SenderID  [senderIDLen]byte

	RecipientID  [recipientIDLen]byte
	HasRecipient bool
	Payload      []byte
	Signature    [signatureLen]byte
	HasSignature bool
}

// EncodePacket serialises p, compressing and padding per §4.L. Returns
// nil, error rather than panicking on malformed input (oversized
// payload).
func EncodePacket(p *Packet) ([]byte, error) {
	if len(p.Payload) > maxPayloadLen {
		return nil, &Error{Kind: KindPayloadTooLarge, Msg: "payload exceeds 32768 bytes"}
	}

	payload := p.Payload
	compressed := false
	var originalSize uint16
	if ShouldCompress(payload) {
		ct, err := Compress(payload)
		if err == nil && len(ct) < len(payload) {
			originalSize = uint16(len(payload))
			payload = ct
			compressed = true
		}
	}

	flags := uint8(0)
	if p.HasRecipient {
		flags |= flagHasRecipient
	}
	if p.HasSignature {
		flags |= flagHasSignature
	}
	if compressed {
		flags |= flagIsCompressed
	}

	payloadLen := len(payload)
	if compressed {
		payloadLen += 2
	}
	if payloadLen > maxPayloadLen {
		return nil, &Error{Kind: KindPayloadTooLarge, Msg: "encoded payload exceeds 32768 bytes"}
	}

	buf := make([]byte, 0, headerLen+senderIDLen+recipientIDLen+payloadLen+signatureLen)
	buf = append(buf, p.Version, p.Type, p.TTL)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], p.Timestamp)
	buf = append(buf, ts[:]...)
	buf = append(buf, flags)
	var pl [2]byte
	binary.BigEndian.PutUint16(pl[:], uint16(payloadLen))
	buf = append(buf, pl[:]...)
	buf = append(buf, p.SenderID[:]...)
	if p.HasRecipient {
		buf = append(buf, p.RecipientID[:]...)
	}
	if compressed {
		var osz [2]byte
		binary.BigEndian.PutUint16(osz[:], originalSize)
		buf = append(buf, osz[:]...)
	}
	buf = append(buf, payload...)
	if p.HasSignature {
		buf = append(buf, p.Signature[:]...)
	}

	return Pad(buf), nil
}

// DecodePacket parses buf, reversing the padding heuristic, compression,
// and optional fields of EncodePacket. Returns (nil, error) on any
// malformed input; no partial packet is ever returned.
func DecodePacket(buf []byte) (*Packet, error) {
	if len(buf) > maxTotalSize {
		return nil, &Error{Kind: KindInvalidPacket, Msg: "packet exceeds 128KiB"}
	}
	buf = Unpad(buf)

	if len(buf) < headerLen+senderIDLen {
		return nil, &Error{Kind: KindTruncated, Msg: "buffer shorter than fixed header"}
	}

	p := &Packet{}
	off := 0
	p.Version = buf[off]
	off++
	if p.Version != CurrentVersion {
		return nil, &Error{Kind: KindUnsupportedVersion, Msg: "unsupported packet version"}
	}
	p.Type = buf[off]
	off++
	p.TTL = buf[off]
	off++
	p.Timestamp = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	flags := buf[off]
	off++
	payloadLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if payloadLen > maxPayloadLen {
		return nil, &Error{Kind: KindPayloadTooLarge, Msg: "payloadLen exceeds 32768"}
	}

	copy(p.SenderID[:], buf[off:off+senderIDLen])
	off += senderIDLen

	p.HasRecipient = flags&flagHasRecipient != 0
	if p.HasRecipient {
		if len(buf) < off+recipientIDLen {
			return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for recipientID"}
		}
		copy(p.RecipientID[:], buf[off:off+recipientIDLen])
		off += recipientIDLen
	}

	isCompressed := flags&flagIsCompressed != 0
	var originalSize int
	if isCompressed {
		if len(buf) < off+2 {
			return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for original size"}
		}
		originalSize = int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		payloadLen -= 2
	}
	if payloadLen < 0 {
		return nil, &Error{Kind: KindInvalidPacket, Msg: "negative payload length after compression header"}
	}

	p.HasSignature = flags&flagHasSignature != 0
	sigLen := 0
	if p.HasSignature {
		sigLen = signatureLen
	}
	if len(buf) < off+payloadLen+sigLen {
		return nil, &Error{Kind: KindTruncated, Msg: "buffer too short for payload/signature"}
	}

	rawPayload := buf[off : off+payloadLen]
	off += payloadLen
	if isCompressed {
		decompressed, err := Decompress(rawPayload, originalSize)
		if err != nil {
			return nil, &Error{Kind: KindInvalidPacket, Msg: "decompress payload", Err: err}
		}
		p.Payload = decompressed
	} else {
		p.Payload = append([]byte(nil), rawPayload...)
	}

	if p.HasSignature {
		copy(p.Signature[:], buf[off:off+signatureLen])
		off += signatureLen
	}

	return p, nil
}
