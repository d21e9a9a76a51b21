package handlers

import (
	"crypto/md5"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
	"github.com/blobemu/blobemu/xmlcodec"
)

// PutBlockBlob implements Put Blob for BlockBlob (spec §4.8): reads the
// whole body as one blob, verifying Content-MD5 when supplied.
func (h *Handlers) PutBlockBlob(w http.ResponseWriter, ctx *reqctx.Context) error {
	if err := h.checkLeaseForBlobWrite(ctx); err != nil {
		return err
	}
	data, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidBlobOrBlock).Wrap(err)
	}
	if err := verifyContentMD5(ctx, data); err != nil {
		return err
	}
	chunk, err := h.Extents.Write(ctx.Request.Context(), data)
	if err != nil {
		return mapStoreErr(err)
	}
	md := cos.NewStrKVs()
	for k, v := range ctx.Metadata() {
		md.Set(k, v)
	}
	b, err := h.Store.PutBlob(ctx.Account, ctx.Container, ctx.Blob, metadata.NewBlobParams{
		Type:            apc.BlockBlob,
		ContentType:     ctx.Request.Header.Get(cmn.HdrContentType),
		ContentEncoding: ctx.Request.Header.Get(cmn.HdrContentEncoding),
		ContentLanguage: ctx.Request.Header.Get(cmn.HdrContentLanguage),
		ContentDisp:     ctx.Request.Header.Get(cmn.HdrContentDisp),
		CacheControl:    ctx.Request.Header.Get(cmn.HdrCacheControl),
		ContentMD5:      md5Sum(data),
		AccessTier:      apc.AccessTier(ctx.Request.Header.Get(cmn.HdrMSAccessTier)),
		Metadata:        md,
		Chunks:          []extent.Chunk{chunk},
		ContentLength:   int64(len(data)),
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, b.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(b.LastMod))
	w.Header().Set(cmn.HdrContentMD5, base64.StdEncoding.EncodeToString(b.ContentMD5))
	w.Header().Set(cmn.HdrMSServerEncrypted, "true")
	w.WriteHeader(http.StatusCreated)
	return nil
}

// PutBlock implements Put Block (spec §4.8): stages bytes under a base64
// block id for a later Commit Block List.
func (h *Handlers) PutBlock(w http.ResponseWriter, ctx *reqctx.Context) error {
	rawID, err := decodeBlockID(ctx.Query[cmn.QpBlockID])
	if err != nil {
		return err
	}
	if err := h.checkLeaseForBlobWrite(ctx); err != nil {
		return err
	}
	data, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidBlobOrBlock).Wrap(err)
	}
	if err := verifyContentMD5(ctx, data); err != nil {
		return err
	}
	chunk, err := h.Extents.Write(ctx.Request.Context(), data)
	if err != nil {
		return mapStoreErr(err)
	}
	h.Store.StageBlock(ctx.Account, ctx.Container, ctx.Blob, rawID, chunk, int64(len(data)))
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentMD5, base64.StdEncoding.EncodeToString(md5Sum(data)))
	w.WriteHeader(http.StatusCreated)
	return nil
}

func decodeBlockID(b64ID string) (string, error) {
	if b64ID == "" {
		return "", cmn.NewErr(cmn.ErrMissingRequiredQueryParameter)
	}
	decoded, err := base64.StdEncoding.DecodeString(b64ID)
	if err != nil || len(decoded) > apc.MaxBlockIDDecodedLen {
		return "", cmn.NewErr(cmn.ErrInvalidBlockID)
	}
	return string(decoded), nil
}

// PutBlockList implements Put Block List (spec §4.8): every listed id,
// whether it sits in the Latest, Committed or Uncommitted bucket, is looked
// up among the blob's staged blocks only, and the blob is committed in the
// requested order. Blocks of the currently committed blob are not looked
// up, so an id that is not staged again fails with InvalidBlockList.
func (h *Handlers) PutBlockList(w http.ResponseWriter, ctx *reqctx.Context) error {
	if err := h.checkLeaseForBlobWrite(ctx); err != nil {
		return err
	}
	raw, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	refs, err := xmlcodec.DecodeCommitBlockList(raw)
	if err != nil {
		return err
	}
	staged, _, _ := h.Store.BlockList(ctx.Account, ctx.Container, ctx.Blob)
	stagedSet := make(map[string]bool, len(staged))
	for _, blk := range staged {
		stagedSet[blk.ID] = true
	}

	// Committed-bucket entries are resolved against the same staged set:
	// committed chunks carry no block id at this layer, so a block already
	// part of the blob must be restaged (Put Block) before a commit can
	// reference it via the Committed bucket.
	order := make([]string, 0, len(refs))
	for _, ref := range refs {
		switch ref.Bucket {
		case apc.BlockLatest:
			if stagedSet[ref.ID] {
				order = append(order, ref.ID)
				continue
			}
			return cmn.NewErrMsg(cmn.ErrInvalidBlockList, "block %q not found", ref.ID)
		case apc.BlockUncommitted:
			if !stagedSet[ref.ID] {
				return cmn.NewErrMsg(cmn.ErrInvalidBlockList, "uncommitted block %q not found", ref.ID)
			}
			order = append(order, ref.ID)
		case apc.BlockCommitted:
			if !stagedSet[ref.ID] {
				return cmn.NewErrMsg(cmn.ErrInvalidBlockList, "committed block %q not found", ref.ID)
			}
			order = append(order, ref.ID)
		}
	}
	md := cos.NewStrKVs()
	for k, v := range ctx.Metadata() {
		md.Set(k, v)
	}
	b, err := h.Store.PromoteStagedBlocks(ctx.Account, ctx.Container, ctx.Blob, order, metadata.NewBlobParams{
		ContentType:     ctx.Request.Header.Get(cmn.HdrContentType),
		ContentEncoding: ctx.Request.Header.Get(cmn.HdrContentEncoding),
		ContentLanguage: ctx.Request.Header.Get(cmn.HdrContentLanguage),
		ContentDisp:     ctx.Request.Header.Get(cmn.HdrContentDisp),
		CacheControl:    ctx.Request.Header.Get(cmn.HdrCacheControl),
		AccessTier:      apc.AccessTier(ctx.Request.Header.Get(cmn.HdrMSAccessTier)),
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

// GetBlockList implements Get Block List (spec §4.8).
func (h *Handlers) GetBlockList(w http.ResponseWriter, ctx *reqctx.Context) error {
	if _, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, ""); err != nil {
		return err
	}
	listType := apc.BlockListType(ctx.Query[cmn.QpBlockListType])
	if listType == "" {
		listType = apc.BlockListCommitted
	}
	staged, committedChunks, committedSize := h.Store.BlockList(ctx.Account, ctx.Container, ctx.Blob)
	var uncommitted []xmlcodec.BlockInfo
	for _, blk := range staged {
		uncommitted = append(uncommitted, xmlcodec.BlockInfo{ID: blk.ID, Size: blk.Size})
	}
	var committed []xmlcodec.BlockInfo
	if len(committedChunks) > 0 {
		committed = append(committed, xmlcodec.BlockInfo{ID: "committed", Size: committedSize})
	}
	body := xmlcodec.EncodeBlockList(listType, committed, uncommitted)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.Header().Set(cmn.HdrMSBlobContentLength, strconv.FormatInt(committedSize, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func verifyContentMD5(ctx *reqctx.Context, data []byte) error {
	hdr := ctx.Request.Header.Get(cmn.HdrContentMD5)
	if hdr == "" {
		return nil
	}
	want, err := base64.StdEncoding.DecodeString(hdr)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidHeaderValue)
	}
	got := md5Sum(data)
	if string(want) != string(got) {
		return cmn.NewErr(cmn.ErrMD5Mismatch)
	}
	return nil
}

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}
