package wire

import (
	lz4 "github.com/id01/go-lz4"
)

const compressionThreshold = 100

// ShouldCompress reports whether data is worth compressing: past a small
// size threshold, and only if compression actually shrinks it, per
// §4.N's "estimated or actual ratio saves bytes".
func ShouldCompress(data []byte) bool {
	if len(data) <= compressionThreshold {
		return false
	}
	compressed, err := Compress(data)
	if err != nil {
		return false
	}
	return len(compressed) < len(data)
}

// Compress applies LZ4-class compression to data.
func Compress(data []byte) ([]byte, error) {
	return lz4.Encode(nil, data)
}

// Decompress inflates compressed back to exactly originalSize bytes, per
// §4.N's requirement that the decompressor is handed the exact original
// length for bounded output.
func Decompress(compressed []byte, originalSize int) ([]byte, error) {
	dst := make([]byte, 0, originalSize)
	out, err := lz4.Decode(dst, compressed)
	if err != nil {
		return nil, err
	}
	if len(out) != originalSize {
		return nil, &Error{Kind: KindInvalidPacket, Msg: "decompressed size mismatch"}
	}
	return out, nil
}
