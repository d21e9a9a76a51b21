package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

// PutAppendBlob implements Put Blob for AppendBlob (spec §4.8): an empty
// blob with committed_block_count=0, is_sealed=false.
func (h *Handlers) PutAppendBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	if err := h.checkLeaseForBlobWrite(ctx); err != nil {
		return err
	}
	md := cos.NewStrKVs()
	for k, v := range ctx.Metadata() {
		md.Set(k, v)
	}
	b, err := h.Store.PutBlob(ctx.Account, ctx.Container, ctx.Blob, metadata.NewBlobParams{
		Type:            apc.AppendBlob,
		ContentType:     ctx.Request.Header.Get(cmn.HdrContentType),
		ContentEncoding: ctx.Request.Header.Get(cmn.HdrContentEncoding),
		ContentLanguage: ctx.Request.Header.Get(cmn.HdrContentLanguage),
		ContentDisp:     ctx.Request.Header.Get(cmn.HdrContentDisp),
		CacheControl:    ctx.Request.Header.Get(cmn.HdrCacheControl),
		Metadata:        md,
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, b.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(b.LastMod))
	w.Header().Set(cmn.HdrMSServerEncrypted, "true")
	w.WriteHeader(http.StatusCreated)
	return nil
}

// AppendBlock implements Append Block (spec §4.8): up to 100MiB per call,
// under the 50000-block limit, honoring the optional append-position and
// max-size conditions.
func (h *Handlers) AppendBlock(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, "")
	if err != nil {
		return err
	}
	if b.Type != apc.AppendBlob {
		return cmn.NewErr(cmn.ErrInvalidBlobType)
	}
	if b.IsSealed {
		return cmn.NewErr(cmn.ErrInvalidOperation)
	}
	if err := metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation); err != nil {
		return err
	}
	if b.CommittedBlockCount >= apc.MaxAppendBlockCount {
		return cmn.NewErr(cmn.ErrBlockCountExceedsLimit)
	}
	if v := ctx.Request.Header.Get(cmn.HdrMSBlobConditionAppendPos); v != "" {
		want, err := strconv.ParseInt(v, 10, 64)
		if err != nil || b.ContentLength != want {
			return cmn.NewErr(cmn.ErrAppendPositionConditionNotMet)
		}
	}
	data, err := io.ReadAll(io.LimitReader(ctx.Request.Body, apc.MaxAppendBlockSize+1))
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidBlobOrBlock).Wrap(err)
	}
	if len(data) > apc.MaxAppendBlockSize {
		return cmn.NewErr(cmn.ErrRequestBodyTooLarge)
	}
	if v := ctx.Request.Header.Get(cmn.HdrMSBlobConditionMaxSize); v != "" {
		max, err := strconv.ParseInt(v, 10, 64)
		if err != nil || b.ContentLength+int64(len(data)) > max {
			return cmn.NewErr(cmn.ErrMaxBlobSizeConditionNotMet)
		}
	}
	if err := verifyContentMD5(ctx, data); err != nil {
		return err
	}
	offset := b.ContentLength
	chunk, err := h.Extents.Write(ctx.Request.Context(), data)
	if err != nil {
		return mapStoreErr(err)
	}
	updated, err := h.Store.AppendChunks(ctx.Account, ctx.Container, ctx.Blob, []extent.Chunk{chunk}, int64(len(data)))
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastMod))
	w.Header().Set(cmn.HdrMSBlobAppendOffset, strconv.FormatInt(offset, 10))
	w.Header().Set(cmn.HdrMSBlobCommittedBlockCount, strconv.Itoa(updated.CommittedBlockCount))
	w.WriteHeader(http.StatusCreated)
	return nil
}

// SealAppendBlob implements Seal Append Blob (spec §4.8): after sealing,
// further appends fail InvalidOperation.
func (h *Handlers) SealAppendBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, "")
	if err != nil {
		return err
	}
	if b.Type != apc.AppendBlob {
		return cmn.NewErr(cmn.ErrInvalidBlobType)
	}
	if err := metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation); err != nil {
		return err
	}
	updated, err := h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(b *metadata.Blob) {
		b.IsSealed = true
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastMod))
	w.Header().Set(cmn.HdrMSBlobSealed, "true")
	w.WriteHeader(http.StatusOK)
	return nil
}
