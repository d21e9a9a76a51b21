// Package server wires an inbound HTTP request through the request-parsing,
// authentication, and dispatch stages and serializes whatever error comes
// back to the wire Error XML body (spec §4.5, §6), the way the teacher's
// ais/proxy.go funnels every verb through one reverseProxy-style entry
// point ending in a single writeErr.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/blobemu/blobemu/auth"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/dispatch"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/stats"
	"github.com/blobemu/blobemu/xmlcodec"
)

// Server is the emulator's single HTTP endpoint: one account, one dispatch
// table, one key lookup.
type Server struct {
	Table   *dispatch.Table
	Keys    auth.KeyLookup
	Account string
	Stats   *stats.Stats

	httpSrv *http.Server
}

// New builds a Server listening on addr, mirroring the teacher's pattern of
// a thin *http.Server wrapping a single handler rather than a third-party
// router — dispatch.Table already does the routing this repo needs. st may
// be nil, in which case request accounting (spec §4.5's per-operation
// counters) is skipped.
func New(addr string, table *dispatch.Table, keys auth.KeyLookup, account string, st *stats.Stats) *Server {
	s := &Server{Table: table, Keys: keys, Account: account, Stats: st}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTTP)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  0, // blob bodies can be large and slow; no fixed read deadline
		WriteTimeout: 0,
	}
	return s
}

// ListenAndServe blocks serving requests until ctx is canceled, then shuts
// the HTTP server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- s.httpSrv.Serve(ln) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rctx := reqctx.Parse(r)
	rctx.RequestID = cmn.NewRequestID()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	op := operation(rctx)

	defer func() {
		if s.Stats == nil {
			return
		}
		s.Stats.Observe(op, sw.status, time.Since(start))
	}()

	if err := s.checkAPIVersion(r); err != nil {
		s.writeErr(sw, rctx, err)
		return
	}
	ident, err := auth.Authenticate(r, rctx.Account, s.Keys, time.Now())
	if err != nil {
		s.writeErr(sw, rctx, err)
		return
	}
	if ident.Account != rctx.Account {
		s.writeErr(sw, rctx, cmn.NewErr(cmn.ErrAuthorizationFailure))
		return
	}
	if err := s.Table.Dispatch(sw, rctx); err != nil {
		s.writeErr(sw, rctx, err)
		return
	}
}

// statusWriter records the status code a handler writes, for stats.Observe
// — handlers write directly to the ResponseWriter (spec §4.5 "every handler
// writes its own response"), so there is no other point to capture it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// operation derives the per-request stats label from the request shape
// (method, path depth, comp/restype), the same kind of verb+objtype
// grouping the teacher's stats tracker keys its counters by (stats/
// proxy_stats.go's registerCommonStats naming convention), generalized to
// this repo's dispatch axes instead of aistore's REST item types.
func operation(ctx *reqctx.Context) string {
	parts := []string{ctx.Request.Method}
	switch ctx.Depth {
	case reqctx.DepthService:
		parts = append(parts, "service")
	case reqctx.DepthContainer:
		parts = append(parts, "container")
	default:
		parts = append(parts, "blob")
	}
	if c := ctx.Comp(); c != "" {
		parts = append(parts, c)
	} else if rt := ctx.RestType(); rt != "" {
		parts = append(parts, rt)
	}
	return strings.Join(parts, "_")
}

// checkAPIVersion enforces x-ms-version presence unless the config owner
// has SkipAPIVersionCheck set, the knob spec §6 calls out for test clients
// that omit the header.
func (s *Server) checkAPIVersion(r *http.Request) error {
	if cmn.GCO.Get().Net.SkipAPIVersionCheck {
		return nil
	}
	if r.Header.Get(cmn.HdrMSVersion) == "" {
		return cmn.NewErr(cmn.ErrMissingRequiredHeader)
	}
	return nil
}

// writeErr serializes a BlobError to the wire Error XML, logging 5xx
// failures the way the teacher's writeErr logs unexpected proxy errors
// (ais/proxy.go) while leaving expected 4xx client errors unlogged.
func (s *Server) writeErr(w http.ResponseWriter, ctx *reqctx.Context, err error) {
	be := cmn.AsBlobError(err)
	if be.Status >= 500 {
		glog.Errorf("%s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, be)
	}
	if s.Stats != nil {
		s.Stats.ObserveError(string(be.Code))
	}
	body := xmlcodec.EncodeError(be, ctx.RequestID, time.Now())
	h := w.Header()
	h.Set(cmn.HdrMSRequestID, ctx.RequestID)
	h.Set(cmn.HdrMSVersion, cmn.APIVersion)
	h.Set(cmn.HdrDate, cmn.FormatHTTPTime(time.Now()))
	h.Set(cmn.HdrServer, cmn.ServerBanner)
	h.Set(cmn.HdrContentType, "application/xml")
	h.Set("x-ms-error-code", string(be.Code))
	w.WriteHeader(be.Status)
	_, _ = w.Write(body)
}
