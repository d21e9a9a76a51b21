package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
	"github.com/blobemu/blobemu/xmlcodec"
)

// GetBlob implements Get/Head Blob (spec §4.8): conditional evaluation,
// optional Range partial reads across the blob's chunk list, full property
// and lease headers on every response, no body on HEAD.
func (h *Handlers) GetBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ctx.Snapshot())
	if err != nil {
		return err
	}
	if err := checkConditionals(ctx.Request, conditionalTarget{Exists: true, ETag: b.ETag, ModTime: b.LastMod}); err != nil {
		if err == errNotModified {
			writeStandardHeaders(w, ctx)
			w.Header().Set(cmn.HdrETag, b.ETag)
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
		return err
	}

	writeBlobHeaders(w, b)
	writeStandardHeaders(w, ctx)

	if ctx.Request.Method == http.MethodHead {
		w.Header().Set(cmn.HdrContentLength, strconv.FormatInt(b.ContentLength, 10))
		w.WriteHeader(http.StatusOK)
		return nil
	}

	start, end, hasRange, err := parseDownloadRange(ctx.Request.Header.Get(cmn.HdrRange), b.ContentLength)
	if err != nil {
		return err
	}
	data, err := h.readChunks(ctx.Request.Context(), b.Chunks, start, end-start+1)
	if err != nil {
		return mapStoreErr(err)
	}
	w.Header().Set(cmn.HdrContentLength, strconv.FormatInt(int64(len(data)), 10))
	if hasRange {
		w.Header().Set(cmn.HdrContentRange, "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(b.ContentLength, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(data)
	return nil
}

func writeBlobHeaders(w http.ResponseWriter, b *metadata.Blob) {
	hd := w.Header()
	hd.Set(cmn.HdrETag, b.ETag)
	hd.Set(cmn.HdrLastModified, cmn.FormatHTTPTime(b.LastMod))
	hd.Set(cmn.HdrContentType, b.ContentType)
	hd.Set(cmn.HdrContentEncoding, b.ContentEncoding)
	hd.Set(cmn.HdrContentLanguage, b.ContentLanguage)
	hd.Set(cmn.HdrContentDisp, b.ContentDisp)
	hd.Set(cmn.HdrCacheControl, b.CacheControl)
	if len(b.ContentMD5) > 0 {
		hd.Set(cmn.HdrContentMD5, base64.StdEncoding.EncodeToString(b.ContentMD5))
	}
	hd.Set(cmn.HdrAcceptRanges, "bytes")
	hd.Set("x-ms-blob-type", string(b.Type))
	hd.Set(cmn.HdrMSServerEncrypted, "true")
	if b.AccessTier != "" {
		hd.Set(cmn.HdrMSAccessTier, string(b.AccessTier))
	}
	if b.Snapshot != "" {
		hd.Set(cmn.HdrMSSnapshot, b.Snapshot)
	}
	if b.Type == apc.PageBlob {
		hd.Set(cmn.HdrMSBlobSequenceNumber, strconv.FormatInt(b.SequenceNumber, 10))
	}
	if b.Type == apc.AppendBlob {
		hd.Set(cmn.HdrMSBlobCommittedBlockCount, strconv.Itoa(b.CommittedBlockCount))
		if b.IsSealed {
			hd.Set(cmn.HdrMSBlobSealed, "true")
		}
	}
	if b.Copy.ID != "" {
		hd.Set(cmn.HdrMSCopyID, b.Copy.ID)
		hd.Set(cmn.HdrMSCopyStatus, string(b.Copy.Status))
		hd.Set(cmn.HdrMSCopyProgress, b.Copy.Progress)
		hd.Set(cmn.HdrMSCopySource, b.Copy.Source)
		if !b.Copy.CompletionTime.IsZero() {
			hd.Set(cmn.HdrMSCopyCompletionTime, cmn.FormatHTTPTime(b.Copy.CompletionTime))
		}
	}
	st := b.Lease.State(time.Now())
	writeLeaseHeaders(w, st.Status(), st)
	writeMetadataHeaders(w, b.Metadata)
	if len(b.Tags) > 0 {
		hd.Set(cmn.HdrMSTagCount, strconv.Itoa(len(b.Tags)))
	}
}

func (h *Handlers) readChunks(ctx context.Context, chunks []extent.Chunk, start, n int64) ([]byte, error) {
	out := make([]byte, 0, n)
	var pos int64
	for _, c := range chunks {
		clen := int64(c.Count)
		if pos+clen <= start {
			pos += clen
			continue
		}
		if int64(len(out)) >= n {
			break
		}
		segStart := int64(0)
		if start > pos {
			segStart = start - pos
		}
		segLen := clen - segStart
		remaining := n - int64(len(out))
		if segLen > remaining {
			segLen = remaining
		}
		data, err := h.Extents.ReadRange(ctx, c, c.Offset+uint64(segStart), uint64(segLen))
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		pos += clen
	}
	return out, nil
}

func parseDownloadRange(rangeHdr string, size int64) (start, end int64, hasRange bool, err error) {
	if rangeHdr == "" {
		return 0, size - 1, false, nil
	}
	rangeHdr = strings.TrimPrefix(rangeHdr, "bytes=")
	parts := strings.SplitN(rangeHdr, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false, cmn.NewErr(cmn.ErrInvalidRange)
	}
	s, errS := strconv.ParseInt(parts[0], 10, 64)
	if errS != nil || s >= size {
		return 0, 0, false, cmn.NewErr(cmn.ErrInvalidRange)
	}
	e := size - 1
	if parts[1] != "" {
		if v, errE := strconv.ParseInt(parts[1], 10, 64); errE == nil {
			e = v
		}
	}
	if e >= size {
		e = size - 1
	}
	if e < s {
		return 0, 0, false, cmn.NewErr(cmn.ErrInvalidRange)
	}
	return s, e, true, nil
}

// DeleteBlob implements Delete Blob (spec §4.8): 202, scheduling extent
// cleanup via the store's gc hook.
func (h *Handlers) DeleteBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ctx.Snapshot())
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation); err != nil {
		return err
	}
	if ctx.Snapshot() != "" {
		if err := h.Store.DeleteSnapshot(ctx.Account, ctx.Container, ctx.Blob, ctx.Snapshot()); err != nil {
			return err
		}
	} else {
		deleteSnaps := ctx.Query["deletesnapshots"] != ""
		if err := h.Store.DeleteBlob(ctx.Account, ctx.Container, ctx.Blob, deleteSnaps); err != nil {
			return err
		}
	}
	writeStatus(w, ctx, http.StatusAccepted)
	return nil
}

// UndeleteBlob implements Undelete Blob — soft delete is excluded by the
// spec's Non-goals, so a blob reaching this handler was never soft-deleted
// in the first place; report success unconditionally the way a SDK probing
// for the operation's existence expects (real Azure requires blob
// soft-delete to be enabled account-wide for this to ever be meaningful).
func (h *Handlers) UndeleteBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	if _, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ""); err != nil {
		return err
	}
	writeStatus(w, ctx, http.StatusOK)
	return nil
}

// SetBlobProperties implements Set Blob Properties (spec §4.8).
func (h *Handlers) SetBlobProperties(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, "")
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation); err != nil {
		return err
	}
	hd := ctx.Request.Header
	updated, err := h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(b *metadata.Blob) {
		if v := hd.Get(cmn.HdrContentType); v != "" {
			b.ContentType = v
		}
		if v := hd.Get(cmn.HdrContentEncoding); v != "" {
			b.ContentEncoding = v
		}
		if v := hd.Get(cmn.HdrContentLanguage); v != "" {
			b.ContentLanguage = v
		}
		if v := hd.Get(cmn.HdrContentDisp); v != "" {
			b.ContentDisp = v
		}
		if v := hd.Get(cmn.HdrCacheControl); v != "" {
			b.CacheControl = v
		}
		if v := hd.Get(cmn.HdrContentMD5); v != "" {
			if raw, err := base64.StdEncoding.DecodeString(v); err == nil {
				b.ContentMD5 = raw
			}
		}
		if action := hd.Get(cmn.HdrMSSequenceNumberAction); action != "" {
			applySequenceNumberAction(b, action, hd.Get(cmn.HdrMSBlobSequenceNumber))
		}
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastMod))
	w.WriteHeader(http.StatusOK)
	return nil
}

func applySequenceNumberAction(b *metadata.Blob, action, raw string) {
	switch action {
	case "increment":
		b.SequenceNumber++
	case "max":
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > b.SequenceNumber {
			b.SequenceNumber = v
		}
	case "update":
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			b.SequenceNumber = v
		}
	}
}

// SetBlobMetadata implements Set Blob Metadata (spec §4.8).
func (h *Handlers) SetBlobMetadata(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, "")
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation); err != nil {
		return err
	}
	md := ctx.Metadata()
	updated, err := h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(b *metadata.Blob) {
		kv := cos.NewStrKVs()
		for k, v := range md {
			kv.Set(k, v)
		}
		b.Metadata = kv
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastMod))
	w.WriteHeader(http.StatusOK)
	return nil
}

// SetBlobTier implements Set Blob Tier (spec §4.8).
func (h *Handlers) SetBlobTier(w http.ResponseWriter, ctx *reqctx.Context) error {
	tier := apc.AccessTier(ctx.Request.Header.Get(cmn.HdrMSAccessTier))
	if tier == "" {
		return cmn.NewErr(cmn.ErrMissingRequiredHeader)
	}
	_, err := h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(b *metadata.Blob) {
		b.AccessTier = tier
	})
	if err != nil {
		return err
	}
	writeStatus(w, ctx, http.StatusOK)
	return nil
}

// GetBlobTags implements Get Blob Tags (spec §4.8).
func (h *Handlers) GetBlobTags(w http.ResponseWriter, ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ctx.Snapshot())
	if err != nil {
		return err
	}
	body := xmlcodec.EncodeTags(b.Tags)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// SetBlobTags implements Set Blob Tags (spec §4.8).
func (h *Handlers) SetBlobTags(w http.ResponseWriter, ctx *reqctx.Context) error {
	raw, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	tags, err := xmlcodec.DecodeTags(raw)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	_, err = h.Store.UpdateBlob(ctx.Account, ctx.Container, ctx.Blob, func(b *metadata.Blob) {
		kv := cos.NewStrKVs()
		for k, v := range tags {
			kv.Set(k, v)
		}
		b.Tags = kv
	})
	if err != nil {
		return err
	}
	writeStatus(w, ctx, http.StatusNoContent)
	return nil
}

// SnapshotBlob implements Snapshot Blob (spec §4.8): a deep copy sharing
// extent chunks, stamped with a fresh snapshot timestamp; request metadata
// overrides the base blob's metadata when supplied.
func (h *Handlers) SnapshotBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	var md cos.StrKVs
	if len(ctx.Metadata()) > 0 {
		md = cos.NewStrKVs()
		for k, v := range ctx.Metadata() {
			md.Set(k, v)
		}
	}
	snap, err := h.Store.Snapshot(ctx.Account, ctx.Container, ctx.Blob, md)
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, snap.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(snap.LastMod))
	w.Header().Set(cmn.HdrMSSnapshot, snap.Snapshot)
	w.WriteHeader(http.StatusCreated)
	return nil
}

// BlobLease implements the x-ms-lease-action family against a blob (spec
// §4.7).
func (h *Handlers) BlobLease(w http.ResponseWriter, ctx *reqctx.Context) error {
	action := apc.LeaseAction(ctx.Request.Header.Get(cmn.HdrMSLeaseAction))
	leaseID := ctx.LeaseID()
	switch action {
	case apc.LeaseActionAcquire:
		dur, err := parseLeaseDuration(ctx.Request.Header.Get(cmn.HdrMSLeaseDuration))
		if err != nil {
			return err
		}
		res, err := h.Store.AcquireBlobLease(ctx.Account, ctx.Container, ctx.Blob, ctx.ProposedLeaseID(), dur)
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusCreated)
	case apc.LeaseActionRenew:
		res, err := h.Store.RenewBlobLease(ctx.Account, ctx.Container, ctx.Blob, leaseID)
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusOK)
	case apc.LeaseActionChange:
		res, err := h.Store.ChangeBlobLease(ctx.Account, ctx.Container, ctx.Blob, leaseID, ctx.ProposedLeaseID())
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusOK)
	case apc.LeaseActionRelease:
		if err := h.Store.ReleaseBlobLease(ctx.Account, ctx.Container, ctx.Blob, leaseID); err != nil {
			return err
		}
		writeStatus(w, ctx, http.StatusOK)
	case apc.LeaseActionBreak:
		period := -1
		if v := ctx.Request.Header.Get(cmn.HdrMSLeaseBreakPeriod); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				period = n
			}
		}
		res, err := h.Store.BreakBlobLease(ctx.Account, ctx.Container, ctx.Blob, period)
		if err != nil {
			return err
		}
		w.Header().Set(cmn.HdrMSLeaseTime, strconv.Itoa(res.BreakWaitS))
		writeStatus(w, ctx, http.StatusAccepted)
	default:
		return cmn.NewErrMsg(cmn.ErrInvalidHeaderValue, "unknown lease action %q", action)
	}
	return nil
}
