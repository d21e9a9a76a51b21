// Package reqctx extracts the pieces of an inbound request every later
// stage (auth, dispatch, handlers) needs, once, up front (spec §4.5/§6):
// method, path parts, query map, and a handful of derived helpers.
package reqctx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/blobemu/blobemu/cmn"
)

// Depth classifies a URL by how many path segments it names (spec §4.5
// "path-depth ∈ {service, container, blob}").
type Depth int

const (
	DepthService Depth = iota
	DepthContainer
	DepthBlob
)

// Context is the parsed shape of one request (spec §6 "URL shapes
// (path-style): /{account}, /{account}/{container}, /{account}/{container}/{blob...}").
type Context struct {
	Request   *http.Request
	Account   string
	Container string
	Blob      string
	Depth     Depth
	Query     map[string]string
	RequestID string
}

// Parse builds a Context from an inbound request. It does not authenticate
// or dispatch — those are separate stages.
func Parse(r *http.Request) *Context {
	ctx := &Context{Request: r, Query: flattenQuery(r)}
	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 3)
	if len(parts) >= 1 && parts[0] != "" {
		ctx.Account = parts[0]
	}
	if len(parts) >= 2 && parts[1] != "" {
		ctx.Container = parts[1]
		ctx.Depth = DepthContainer
	}
	if len(parts) == 3 && parts[2] != "" {
		ctx.Blob = parts[2]
		ctx.Depth = DepthBlob
	}
	return ctx
}

func flattenQuery(r *http.Request) map[string]string {
	q := r.URL.Query()
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func (c *Context) RestType() string { return c.Query[cmn.QpRestype] }
func (c *Context) Comp() string     { return c.Query[cmn.QpComp] }
func (c *Context) Snapshot() string { return c.Query[cmn.QpSnapshot] }

// Prefix, Delimiter, Marker, MaxResults are the list-operation parameters
// (spec §4.6).
func (c *Context) Prefix() string    { return c.Query[cmn.QpPrefix] }
func (c *Context) Delimiter() string { return c.Query[cmn.QpDelimiter] }
func (c *Context) Marker() string    { return c.Query[cmn.QpMarker] }

func (c *Context) MaxResults() int {
	raw, ok := c.Query[cmn.QpMaxResults]
	if !ok {
		return cmn.DefaultMaxResults
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return cmn.DefaultMaxResults
	}
	return n
}

// LeaseID, ProposedLeaseID return the x-ms- lease headers used throughout
// §4.7.
func (c *Context) LeaseID() string         { return c.Request.Header.Get(cmn.HdrMSLeaseID) }
func (c *Context) ProposedLeaseID() string { return c.Request.Header.Get(cmn.HdrMSProposedLeaseID) }

// Metadata collects x-ms-meta-* headers into a case-insensitive map (spec
// §3).
func (c *Context) Metadata() map[string]string {
	out := make(map[string]string)
	for name, vals := range c.Request.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, cmn.HdrMSMeta) && len(vals) > 0 {
			out[strings.TrimPrefix(lower, cmn.HdrMSMeta)] = vals[0]
		}
	}
	return out
}

// ServiceEndpoint returns the base URL handlers embed in listing
// responses' ServiceEndpoint attribute (spec §4.3).
func (c *Context) ServiceEndpoint() string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/" + c.Account + "/"
}
