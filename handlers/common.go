// Package handlers implements the per-operation request handlers (spec
// §4.8), one file per operation family, each sharing the standard-header
// and conditional-request plumbing in this file.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

// Handlers bundles the storage engine dependencies every handler method
// needs, mirroring the teacher's pattern of a single receiver type whose
// methods become the dispatch table's HandlerFunc values.
type Handlers struct {
	Store    *metadata.Store
	Extents  extent.Store
	GC       *metadata.GC
	Account  string // the one devstore-style account this instance serves
}

func writeStandardHeaders(w http.ResponseWriter, ctx *reqctx.Context) {
	h := w.Header()
	h.Set(cmn.HdrMSRequestID, ctx.RequestID)
	h.Set(cmn.HdrMSVersion, cmn.APIVersion)
	h.Set(cmn.HdrDate, cmn.FormatHTTPTime(time.Now()))
	h.Set(cmn.HdrServer, cmn.ServerBanner)
}

func writeStatus(w http.ResponseWriter, ctx *reqctx.Context, status int) {
	writeStandardHeaders(w, ctx)
	w.WriteHeader(status)
}

// mapStoreErr converts any error returned by a store into a *cmn.BlobError
// via cmn.AsBlobError.
func mapStoreErr(err error) error { return cmn.AsBlobError(err) }

// validateContainerName enforces spec §4.8's Create Container rule: 3-63
// chars, alnum start, lowercase letters/digits/hyphens only, no
// consecutive hyphens; $root/$logs/$web exempt.
func validateContainerName(name string) error {
	switch name {
	case "$root", "$logs", "$web":
		return nil
	}
	if len(name) < 3 || len(name) > 63 {
		return cmn.NewErr(cmn.ErrInvalidResourceName)
	}
	if !isAlnum(name[0]) {
		return cmn.NewErr(cmn.ErrInvalidResourceName)
	}
	prevHyphen := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return cmn.NewErr(cmn.ErrInvalidResourceName)
			}
			prevHyphen = true
		default:
			return cmn.NewErr(cmn.ErrInvalidResourceName)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}

// conditionalTarget is the minimal surface checkConditionals needs from a blob/container
// record (spec §4.9).
type conditionalTarget struct {
	Exists  bool
	ETag    string
	ModTime time.Time
}

// checkConditionals implements spec §4.9's evaluation, returning either nil
// (proceed), a *cmn.BlobError, or the sentinel errNotModified for a 304.
func checkConditionals(r *http.Request, t conditionalTarget) error {
	ifMatch := r.Header.Get(cmn.HdrIfMatch)
	ifNoneMatch := r.Header.Get(cmn.HdrIfNoneMatch)
	ifModSince := r.Header.Get(cmn.HdrIfModifiedSince)
	ifUnmodSince := r.Header.Get(cmn.HdrIfUnmodifiedSince)

	exclusive := 0
	for _, v := range []string{ifMatch, ifNoneMatch} {
		if v != "" {
			exclusive++
		}
	}
	if exclusive > 1 {
		return cmn.NewErr(cmn.ErrMultipleConditionHeadersNotSupported)
	}

	if ifMatch != "" {
		if !t.Exists {
			return cmn.NewErr(cmn.ErrConditionNotMet)
		}
		if ifMatch != "*" && ifMatch != t.ETag {
			return cmn.NewErr(cmn.ErrConditionNotMet)
		}
	}
	if ifNoneMatch != "" {
		if ifNoneMatch == "*" || ifNoneMatch == t.ETag {
			if t.Exists {
				return errNotModified
			}
		}
	}
	if ifModSince != "" {
		since, err := cmn.ParseHTTPTime(ifModSince)
		if err == nil && !t.ModTime.After(since) {
			return cmn.NewErr(cmn.ErrConditionNotMet)
		}
	}
	if ifUnmodSince != "" {
		since, err := cmn.ParseHTTPTime(ifUnmodSince)
		if err == nil && t.ModTime.After(since) {
			return cmn.NewErr(cmn.ErrConditionNotMet)
		}
	}
	return nil
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errNotModified sentinelErr = "not modified"

func writeLeaseHeaders(w http.ResponseWriter, status apc.LeaseStatus, state apc.LeaseState) {
	w.Header().Set(cmn.HdrMSLeaseStatus, string(status))
	w.Header().Set(cmn.HdrMSLeaseState, string(state))
}

func writeMetadataHeaders(w http.ResponseWriter, md map[string]string) {
	for k, v := range md {
		w.Header().Set(cmn.HdrMSMeta+k, v)
	}
}

func parseContentLength(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	if v := r.Header.Get(cmn.HdrContentLength); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// checkLeaseForBlobWrite validates x-ms-lease-id against an existing blob's
// lease state (spec §4.7). A blob that does not yet exist has no lease to
// check, so a fresh Put Blob/Put Block never fails this check.
func (h *Handlers) checkLeaseForBlobWrite(ctx *reqctx.Context) error {
	b, err := h.Store.GetBlob(ctx.Account, ctx.Container, ctx.Blob, "")
	if err != nil {
		return nil
	}
	return metadata.CheckLeaseForWrite(b, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithBlobOperation)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
