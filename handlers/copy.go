package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

// CopyBlob implements Copy Blob (spec §4.8): parses x-ms-copy-source,
// duplicates the source's chunk references (no bytes are re-read/rewritten
// — extents are content-addressed and immutable), and completes
// synchronously since there is no cross-region latency to simulate.
func (h *Handlers) CopyBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	srcAccount, srcContainer, srcName, srcSnapshot, err := parseCopySource(ctx.Request.Header.Get(cmn.HdrMSCopySource))
	if err != nil {
		return err
	}
	src, err := h.Store.GetBlob(srcAccount, srcContainer, srcName, srcSnapshot)
	if err != nil {
		return err
	}
	if err := h.checkLeaseForBlobWrite(ctx); err != nil {
		return err
	}
	md := src.Metadata.Clone()
	if reqMD := ctx.Metadata(); len(reqMD) > 0 {
		md = cos.NewStrKVs()
		for k, v := range reqMD {
			md.Set(k, v)
		}
	}
	copyID := cmn.NewRequestID()
	now := time.Now()
	b, err := h.Store.PutBlob(ctx.Account, ctx.Container, ctx.Blob, metadata.NewBlobParams{
		Type:            src.Type,
		ContentType:     src.ContentType,
		ContentEncoding: src.ContentEncoding,
		ContentLanguage: src.ContentLanguage,
		ContentDisp:     src.ContentDisp,
		CacheControl:    src.CacheControl,
		ContentMD5:      src.ContentMD5,
		AccessTier:      src.AccessTier,
		Metadata:        md,
		Tags:            src.Tags.Clone(),
		Chunks:          append([]extent.Chunk(nil), src.Chunks...),
		ContentLength:   src.ContentLength,
	})
	if err != nil {
		return err
	}
	_, err = h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(dst *metadata.Blob) {
		dst.Copy = metadata.CopyProperties{
			ID:             copyID,
			Source:         ctx.Request.Header.Get(cmn.HdrMSCopySource),
			Status:         apc.CopySuccess,
			Progress:       strconv.FormatInt(src.ContentLength, 10) + "/" + strconv.FormatInt(src.ContentLength, 10),
			CompletionTime: now,
		}
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, b.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(b.LastMod))
	w.Header().Set(cmn.HdrMSCopyID, copyID)
	w.Header().Set(cmn.HdrMSCopyStatus, string(apc.CopySuccess))
	w.WriteHeader(http.StatusAccepted)
	return nil
}

// AbortCopyBlob implements Abort Copy Blob — every copy in this emulator
// already completed synchronously by the time this could be called, so
// there is never a pending operation to abort (spec §4.8).
func (h *Handlers) AbortCopyBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	if _, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ""); err != nil {
		return err
	}
	return cmn.NewErr(cmn.ErrNoPendingCopyOperation)
}

// parseCopySource splits an x-ms-copy-source URL into (account, container,
// blob, snapshot) per spec §6's path-style URL shapes.
func parseCopySource(raw string) (account, container, blob, snapshot string, err error) {
	u, perr := url.Parse(raw)
	if perr != nil {
		return "", "", "", "", cmn.NewErrMsg(cmn.ErrInvalidHeaderValue, "invalid x-ms-copy-source: %v", perr)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 3)
	if len(parts) < 3 {
		return "", "", "", "", cmn.NewErr(cmn.ErrInvalidHeaderValue)
	}
	account, container, blob = parts[0], parts[1], parts[2]
	snapshot = u.Query().Get(cmn.QpSnapshot)
	return account, container, blob, snapshot, nil
}
