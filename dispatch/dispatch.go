// Package dispatch routes a parsed request to the handler responsible for
// it (spec §4.5): match on (method, path-depth, restype, comp, headers).
// The routing table itself lives here; the handler implementations are
// wired in by cmd/blobemu at startup, so dispatch has no dependency on the
// storage engine or auth.
package dispatch

import (
	"net/http"
	"strings"

	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/reqctx"
)

// HandlerFunc writes a complete response (headers, status, body) for one
// request; a returned error is serialized to the wire Error XML by the
// caller (server.go) instead of being written here, so every handler
// shares one error path.
type HandlerFunc func(w http.ResponseWriter, ctx *reqctx.Context) error

// Table holds one function per operation family (spec §4.8 "one file per
// operation family"); cmd/blobemu's buildDispatchTable populates it from the
// handlers package.
type Table struct {
	// Service
	ListContainers      HandlerFunc
	GetServiceProperties HandlerFunc
	SetServiceProperties HandlerFunc
	GetServiceStats      HandlerFunc
	UserDelegationKey    HandlerFunc
	Batch                HandlerFunc

	// Container
	CreateContainer        HandlerFunc
	DeleteContainer        HandlerFunc
	GetContainerProperties HandlerFunc
	SetContainerMetadata   HandlerFunc
	GetContainerACL        HandlerFunc
	SetContainerACL        HandlerFunc
	ContainerLease         HandlerFunc
	ListBlobs              HandlerFunc

	// Blob
	GetBlob              HandlerFunc
	DeleteBlob           HandlerFunc
	UndeleteBlob         HandlerFunc
	CopyBlob             HandlerFunc
	AbortCopyBlob        HandlerFunc
	PutBlockBlob         HandlerFunc
	PutPageBlob          HandlerFunc
	PutAppendBlob        HandlerFunc
	PutBlock             HandlerFunc
	PutBlockList         HandlerFunc
	GetBlockList         HandlerFunc
	PutPage              HandlerFunc
	GetPageRanges        HandlerFunc
	AppendBlock          HandlerFunc
	SealAppendBlob       HandlerFunc
	SetBlobProperties    HandlerFunc
	SetBlobMetadata      HandlerFunc
	BlobLease            HandlerFunc
	SnapshotBlob         HandlerFunc
	SetBlobTier          HandlerFunc
	GetBlobTags          HandlerFunc
	SetBlobTags          HandlerFunc
}

// Dispatch implements spec §4.5's representative rule set. Unknown
// (method, depth, restype, comp) combinations fail UnsupportedHttpVerb.
func (t *Table) Dispatch(w http.ResponseWriter, ctx *reqctx.Context) error {
	r := ctx.Request
	switch ctx.Depth {
	case reqctx.DepthService:
		return t.dispatchService(w, ctx, r)
	case reqctx.DepthContainer:
		return t.dispatchContainer(w, ctx, r)
	default:
		return t.dispatchBlob(w, ctx, r)
	}
}

func (t *Table) dispatchService(w http.ResponseWriter, ctx *reqctx.Context, r *http.Request) error {
	comp := ctx.Comp()
	switch {
	case r.Method == http.MethodGet && comp == cmn.CompList:
		return call(t.ListContainers, w, ctx)
	case r.Method == http.MethodGet && ctx.RestType() == cmn.RestypeService && comp == cmn.CompProperties:
		return call(t.GetServiceProperties, w, ctx)
	case r.Method == http.MethodPut && ctx.RestType() == cmn.RestypeService && comp == cmn.CompProperties:
		return call(t.SetServiceProperties, w, ctx)
	case r.Method == http.MethodGet && ctx.RestType() == cmn.RestypeService && comp == cmn.CompStats:
		return call(t.GetServiceStats, w, ctx)
	case r.Method == http.MethodPost && ctx.RestType() == cmn.RestypeService && comp == cmn.CompUserDelegationKey:
		return call(t.UserDelegationKey, w, ctx)
	case r.Method == http.MethodPost && comp == cmn.CompBatch:
		return call(t.Batch, w, ctx)
	}
	return cmn.NewErr(cmn.ErrUnsupportedHTTPVerb)
}

func (t *Table) dispatchContainer(w http.ResponseWriter, ctx *reqctx.Context, r *http.Request) error {
	comp := ctx.Comp()
	isContainerReq := ctx.RestType() == cmn.RestypeContainer
	switch {
	case r.Method == http.MethodPut && isContainerReq && comp == "":
		return call(t.CreateContainer, w, ctx)
	case r.Method == http.MethodDelete && isContainerReq && comp == "":
		return call(t.DeleteContainer, w, ctx)
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && isContainerReq && comp == "":
		return call(t.GetContainerProperties, w, ctx)
	case r.Method == http.MethodPut && isContainerReq && comp == cmn.CompMetadata:
		return call(t.SetContainerMetadata, w, ctx)
	case r.Method == http.MethodGet && isContainerReq && comp == cmn.CompACL:
		return call(t.GetContainerACL, w, ctx)
	case r.Method == http.MethodPut && isContainerReq && comp == cmn.CompACL:
		return call(t.SetContainerACL, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompLease:
		return call(t.ContainerLease, w, ctx)
	case r.Method == http.MethodGet && isContainerReq && comp == cmn.CompList:
		return call(t.ListBlobs, w, ctx)
	}
	return cmn.NewErr(cmn.ErrUnsupportedHTTPVerb)
}

func (t *Table) dispatchBlob(w http.ResponseWriter, ctx *reqctx.Context, r *http.Request) error {
	comp := ctx.Comp()
	switch {
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && comp == "":
		return call(t.GetBlob, w, ctx)
	case r.Method == http.MethodDelete && comp == "":
		return call(t.DeleteBlob, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompUndelete:
		return call(t.UndeleteBlob, w, ctx)
	case r.Method == http.MethodPut && comp == "" && r.Header.Get(cmn.HdrMSCopySource) != "":
		return call(t.CopyBlob, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompCopy && r.Header.Get(cmn.HdrMSCopyID) != "":
		return call(t.AbortCopyBlob, w, ctx)
	case r.Method == http.MethodPut && comp == "":
		return t.dispatchPutBlob(w, ctx, r)
	case r.Method == http.MethodPut && comp == cmn.CompBlock:
		return call(t.PutBlock, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompBlockList:
		return call(t.PutBlockList, w, ctx)
	case r.Method == http.MethodGet && comp == cmn.CompBlockList:
		return call(t.GetBlockList, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompPage:
		return call(t.PutPage, w, ctx)
	case r.Method == http.MethodGet && comp == cmn.CompPageList:
		return call(t.GetPageRanges, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompAppendBlock:
		return call(t.AppendBlock, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompSeal:
		return call(t.SealAppendBlob, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompProperties:
		return call(t.SetBlobProperties, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompMetadata:
		return call(t.SetBlobMetadata, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompLease:
		return call(t.BlobLease, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompSnapshot:
		return call(t.SnapshotBlob, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompTier:
		return call(t.SetBlobTier, w, ctx)
	case r.Method == http.MethodGet && comp == cmn.CompTags:
		return call(t.GetBlobTags, w, ctx)
	case r.Method == http.MethodPut && comp == cmn.CompTags:
		return call(t.SetBlobTags, w, ctx)
	}
	return cmn.NewErr(cmn.ErrUnsupportedHTTPVerb)
}

// dispatchPutBlob implements spec §4.5's blob-type-sniffing PUT rule:
// `x-ms-blob-type` selects block/page/append creation.
func (t *Table) dispatchPutBlob(w http.ResponseWriter, ctx *reqctx.Context, r *http.Request) error {
	switch strings.ToLower(r.Header.Get(cmn.HdrMSBlobType)) {
	case "pageblob":
		return call(t.PutPageBlob, w, ctx)
	case "appendblob":
		return call(t.PutAppendBlob, w, ctx)
	default:
		return call(t.PutBlockBlob, w, ctx)
	}
}

func call(h HandlerFunc, w http.ResponseWriter, ctx *reqctx.Context) error {
	if h == nil {
		return cmn.NewErr(cmn.ErrUnsupportedHTTPVerb)
	}
	return h(w, ctx)
}
