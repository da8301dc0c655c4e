// Package wire implements the outer BitchatPacket and inner BitchatMessage
// binary codecs, PKCS#7-style block padding, and LZ4-class compression,
// per §4.L/§4.M/§4.N. Grounded on the teacher's packet/packet.go for the
// overall "encode returns bytes, decode returns (packet, ok)" shape,
// rewritten entirely for this repository's byte-exact layout.
package wire

// BlockSizes are the fixed padding targets from §4.L, smallest first.
var BlockSizes = []int{256, 512, 1024, 2048}

const maxPaddableSize = 2048

// Pad applies PKCS#7-style padding to data, targeting the smallest block
// size in BlockSizes that is larger than data and reachable with at most
// 255 pad bytes. A length with no such block size (0, 256, 512-768 and
// 1024-1792 bytes) is returned unpadded, as is a length of 2048 bytes or
// more, per §4.L/§9 (the source skips padding above 2048; decoders apply
// a heuristic to detect it).
func Pad(data []byte) []byte {
	if len(data) >= maxPaddableSize {
		return data
	}
	target := 0
	for _, b := range BlockSizes {
		// A PKCS#7 pad byte must itself fit in a byte (1-255); skip any
		// block size that would need a longer pad than that.
		if b > len(data) && b-len(data) <= 255 {
			target = b
			break
		}
	}
	if target == 0 {
		return data
	}
	padLen := target - len(data)
	out := make([]byte, target)
	copy(out, data)
	for i := len(data); i < target; i++ {
		out[i] = byte(padLen)
	}
	return out
}

// Unpad reverses Pad using the §4.L decode heuristic: buffers of 512
// bytes or less are always treated as padded; larger buffers are only
// unpadded if the trailing byte b satisfies 1<=b<size and the final b-1
// bytes all equal b.
func Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	if len(data) <= 512 {
		return stripPKCS7(data)
	}
	b := int(data[len(data)-1])
	if b < 1 || b >= len(data) {
		return data
	}
	for i := len(data) - b; i < len(data); i++ {
		if int(data[i]) != b {
			return data
		}
	}
	return data[:len(data)-b]
}

func stripPKCS7(data []byte) []byte {
	b := int(data[len(data)-1])
	if b < 1 || b > len(data) {
		return data
	}
	for i := len(data) - b; i < len(data); i++ {
		if int(data[i]) != b {
			return data
		}
	}
	return data[:len(data)-b]
}
