package extent

import (
	"bytes"
	"encoding/hex"

	"github.com/pierrec/lz4/v3"
	"go.uber.org/atomic"
)

var tieCounter atomic.Uint64

// tieBreak returns a short monotonically-increasing hex suffix so two
// writes of byte-identical content never collide on the same extent id.
func tieBreak() string {
	n := tieCounter.Add(1)
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return hex.EncodeToString(b)
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

// lz4Magic prefixes a compressed extent payload so ReadRange can tell
// compressed extents from raw ones without a side-table.
var lz4Magic = []byte("\x04\x22\x4d\x18blobemu-lz4")

func lz4Compress(data []byte) ([]byte, error) {
	ht := make([]int, 1<<16)
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, ht)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errNotCompressible
	}
	out := make([]byte, 0, len(lz4Magic)+8+n)
	out = append(out, lz4Magic...)
	out = append(out, encodeUint64(uint64(len(data)))...)
	out = append(out, dst[:n]...)
	return out, nil
}

func lz4Decompress(stored []byte) ([]byte, error) {
	body := stored[len(lz4Magic):]
	origLen := decodeUint64(body[:8])
	dst := make([]byte, origLen)
	_, err := lz4.UncompressBlock(body[8:], dst)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func isLZ4Compressed(raw []byte) bool {
	return len(raw) >= len(lz4Magic) && bytes.Equal(raw[:len(lz4Magic)], lz4Magic)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

var errNotCompressible = errCompress("data did not compress")

type errCompress string

func (e errCompress) Error() string { return string(e) }
