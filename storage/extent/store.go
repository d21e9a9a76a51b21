// Package extent implements the opaque byte-chunk storage engine (spec
// §4.1): a shard-partitioned in-memory store plus the Chunk reference type
// blobs use to address stored bytes.
package extent

import (
	"context"

	"github.com/blobemu/blobemu/cmn"
)

// Chunk is an ExtentChunk (spec §3): a reference to an interval of bytes in
// the extent store. A blob's content is the concatenation of its chunk
// list.
type Chunk struct {
	ExtentID string `xml:"-" json:"extent_id"`
	Offset   uint64 `xml:"-" json:"offset"`
	Count    uint64 `xml:"-" json:"count"`
}

// Store is the capability set a blob/block handler needs from the
// extent-storage backend (spec §9 "polymorphic stores" — the in-memory and
// filesystem backends are both implementations, chosen at server
// construction time).
type Store interface {
	Write(ctx context.Context, data []byte) (Chunk, error)
	Read(ctx context.Context, c Chunk) ([]byte, error)
	ReadRange(ctx context.Context, c Chunk, off, n uint64) ([]byte, error)
	Delete(ctx context.Context, extentID string) error
	TotalSize() uint64
}

// ErrTooLarge is returned by Write when storing data would exceed the
// configured size limit (spec §4.1, maps to cmn.ErrRequestBodyTooLarge at
// the handler layer).
func ErrTooLarge() *cmn.BlobError { return cmn.NewErr(cmn.ErrRequestBodyTooLarge) }
