package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/metadata"
	"github.com/blobemu/blobemu/xmlcodec"
)

// CreateContainer implements Create Container (spec §4.8): name validation,
// optional public-access level and metadata, 201 on success.
func (h *Handlers) CreateContainer(w http.ResponseWriter, ctx *reqctx.Context) error {
	if err := validateContainerName(ctx.Container); err != nil {
		return err
	}
	public := apc.PublicAccess(ctx.Request.Header.Get(cmn.HdrMSBlobPublicAccess))
	md := cos.NewStrKVs()
	for k, v := range ctx.Metadata() {
		md.Set(k, v)
	}
	c, err := h.Store.CreateContainer(ctx.Account, ctx.Container, public, md)
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, c.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(c.LastModified))
	w.WriteHeader(http.StatusCreated)
	return nil
}

// DeleteContainer implements Delete Container (spec §4.8): 202, implicitly
// deleting every blob/snapshot/block beneath it.
func (h *Handlers) DeleteContainer(w http.ResponseWriter, ctx *reqctx.Context) error {
	c, err := h.Store.GetContainer(ctx.Account, ctx.Container)
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(c, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithContainerOperation); err != nil {
		return err
	}
	if err := h.Store.DeleteContainer(ctx.Account, ctx.Container); err != nil {
		return err
	}
	writeStatus(w, ctx, http.StatusAccepted)
	return nil
}

// GetContainerProperties implements Get/Head Container Properties (spec
// §4.8): ETag/Last-Modified/lease/public-access headers, no body.
func (h *Handlers) GetContainerProperties(w http.ResponseWriter, ctx *reqctx.Context) error {
	c, err := h.Store.GetContainer(ctx.Account, ctx.Container)
	if err != nil {
		return err
	}
	writeContainerHeaders(w, c)
	writeStandardHeaders(w, ctx)
	w.WriteHeader(http.StatusOK)
	return nil
}

func writeContainerHeaders(w http.ResponseWriter, c *metadata.Container) {
	st := c.Lease.State(time.Now())
	h := w.Header()
	h.Set(cmn.HdrETag, c.ETag)
	h.Set(cmn.HdrLastModified, cmn.FormatHTTPTime(c.LastModified))
	writeLeaseHeaders(w, st.Status(), st)
	if c.PublicAccess != apc.PublicAccessNone {
		h.Set(cmn.HdrMSBlobPublicAccess, string(c.PublicAccess))
	}
	h.Set(cmn.HdrMSHasImmutability, "false")
	h.Set(cmn.HdrMSHasLegalHold, "false")
	writeMetadataHeaders(w, c.Metadata)
}

// SetContainerMetadata implements Set Container Metadata (spec §4.8).
func (h *Handlers) SetContainerMetadata(w http.ResponseWriter, ctx *reqctx.Context) error {
	c, err := h.Store.GetContainer(ctx.Account, ctx.Container)
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(c, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithContainerOperation); err != nil {
		return err
	}
	md := ctx.Metadata()
	updated, err := h.Store.UpdateContainer(ctx.Account, ctx.Container, func(c *metadata.Container) {
		kv := cos.NewStrKVs()
		for k, v := range md {
			kv.Set(k, v)
		}
		c.Metadata = kv
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastModified))
	w.WriteHeader(http.StatusOK)
	return nil
}

// GetContainerACL implements Get Container ACL (spec §4.8).
func (h *Handlers) GetContainerACL(w http.ResponseWriter, ctx *reqctx.Context) error {
	c, err := h.Store.GetContainer(ctx.Account, ctx.Container)
	if err != nil {
		return err
	}
	params := make([]xmlcodec.IdentifierParams, 0, len(c.Policies))
	for _, p := range c.Policies {
		params = append(params, xmlcodec.IdentifierParams{ID: p.ID, Start: p.Start, Expiry: p.Expiry, Permission: p.Permission})
	}
	body := xmlcodec.EncodeSignedIdentifiers(params)
	writeContainerHeaders(w, c)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// SetContainerACL implements Set Container ACL (spec §4.8): public-access
// header plus an optional SignedIdentifiers body.
func (h *Handlers) SetContainerACL(w http.ResponseWriter, ctx *reqctx.Context) error {
	c, err := h.Store.GetContainer(ctx.Account, ctx.Container)
	if err != nil {
		return err
	}
	if err := metadata.CheckLeaseForWrite(c, ctx.LeaseID(), cmn.ErrLeaseIDMissing, cmn.ErrLeaseIDMismatchWithContainerOperation); err != nil {
		return err
	}
	raw, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	ids, err := xmlcodec.DecodeSignedIdentifiers(raw)
	if err != nil {
		return err
	}
	public := apc.PublicAccess(ctx.Request.Header.Get(cmn.HdrMSBlobPublicAccess))
	updated, err := h.Store.UpdateContainer(ctx.Account, ctx.Container, func(c *metadata.Container) {
		c.PublicAccess = public
		c.Policies = c.Policies[:0]
		for _, id := range ids {
			c.Policies = append(c.Policies, metadata.SignedIdentifier{
				ID: id.ID, Start: id.Start, Expiry: id.Expiry, Permission: id.Permission,
			})
		}
	})
	if err != nil {
		return err
	}
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrETag, updated.ETag)
	w.Header().Set(cmn.HdrLastModified, cmn.FormatHTTPTime(updated.LastModified))
	w.WriteHeader(http.StatusOK)
	return nil
}

// ContainerLease implements the x-ms-lease-action family against a
// container (spec §4.7).
func (h *Handlers) ContainerLease(w http.ResponseWriter, ctx *reqctx.Context) error {
	action := apc.LeaseAction(ctx.Request.Header.Get(cmn.HdrMSLeaseAction))
	leaseID := ctx.LeaseID()
	switch action {
	case apc.LeaseActionAcquire:
		dur, err := parseLeaseDuration(ctx.Request.Header.Get(cmn.HdrMSLeaseDuration))
		if err != nil {
			return err
		}
		res, err := h.Store.AcquireContainerLease(ctx.Account, ctx.Container, ctx.ProposedLeaseID(), dur)
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusCreated)
	case apc.LeaseActionRenew:
		res, err := h.Store.RenewContainerLease(ctx.Account, ctx.Container, leaseID)
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusOK)
	case apc.LeaseActionChange:
		res, err := h.Store.ChangeContainerLease(ctx.Account, ctx.Container, leaseID, ctx.ProposedLeaseID())
		if err != nil {
			return err
		}
		writeContainerLeaseResponse(w, ctx, res, http.StatusOK)
	case apc.LeaseActionRelease:
		if err := h.Store.ReleaseContainerLease(ctx.Account, ctx.Container, leaseID); err != nil {
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
		res, err := h.Store.BreakContainerLease(ctx.Account, ctx.Container, period)
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

func writeContainerLeaseResponse(w http.ResponseWriter, ctx *reqctx.Context, res *metadata.LeaseResult, status int) {
	w.Header().Set(cmn.HdrMSLeaseID, res.LeaseID)
	writeStatus(w, ctx, status)
}

// parseLeaseDuration validates x-ms-lease-duration (spec §4.7: -1 infinite,
// else 15-60 seconds).
func parseLeaseDuration(raw string) (int, error) {
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, cmn.NewErrMsg(cmn.ErrInvalidHeaderValue, "invalid x-ms-lease-duration %q", raw)
	}
	if n != -1 && (n < 15 || n > 60) {
		return 0, cmn.NewErrMsg(cmn.ErrInvalidHeaderValue, "x-ms-lease-duration must be -1 or 15..60")
	}
	return n, nil
}

// ListBlobs implements Get Container List Blobs (spec §4.6).
func (h *Handlers) ListBlobs(w http.ResponseWriter, ctx *reqctx.Context) error {
	if _, err := h.Store.GetContainer(ctx.Account, ctx.Container); err != nil {
		return err
	}
	include := ctx.Query["include"]
	opt := metadata.ListBlobsOptions{
		Prefix:       ctx.Prefix(),
		Delimiter:    ctx.Delimiter(),
		Marker:       ctx.Marker(),
		MaxResults:   ctx.MaxResults(),
		IncludeSnaps: containsInclude(include, "snapshots"),
		IncludeDeleted: containsInclude(include, "deleted"),
	}
	entries, nextMarker := h.Store.ListBlobs(ctx.Account, ctx.Container, opt)
	includeTags := containsInclude(include, "tags")
	includeMeta := containsInclude(include, "metadata")

	wireEntries := make([]interface{ isBlobEntry() }, 0, len(entries))
	for _, e := range entries {
		if e.IsPrefix {
			wireEntries = append(wireEntries, xmlcodec.BlobPrefixItem{Name: e.Name})
			continue
		}
		b := e.Blob
		st := b.Lease.State(time.Now())
		p := xmlcodec.BlobItemParams{
			Name: e.Name, Snapshot: b.Snapshot, Deleted: b.Deleted,
			LastMod: b.LastMod, ETag: b.ETag, ContentLength: b.ContentLength,
			ContentType: b.ContentType, ContentEncoding: b.ContentEncoding, ContentLanguage: b.ContentLanguage,
			CacheControl: b.CacheControl, Type: b.Type, AccessTier: b.AccessTier,
			LeaseStatus: st.Status(), LeaseState: st,
			CopyID: b.Copy.ID, CopySource: b.Copy.Source, CopyProgress: b.Copy.Progress, CopyStatus: b.Copy.Status,
		}
		if includeMeta {
			p.Metadata = b.Metadata
		}
		if includeTags {
			p.Tags = b.Tags
		}
		wireEntries = append(wireEntries, xmlcodec.BlobItemFrom(p))
	}
	body := xmlcodec.EncodeListBlobs(ctx.ServiceEndpoint(), ctx.Container, ctx.Prefix(), ctx.Marker(), ctx.Delimiter(), ctx.MaxResults(), wireEntries, nextMarker)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func containsInclude(csv, want string) bool {
	for _, v := range splitCSV(csv) {
		if v == want {
			return true
		}
	}
	return false
}
