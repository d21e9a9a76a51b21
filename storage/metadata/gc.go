package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/blobemu/blobemu/storage/extent"
)

// GC periodically reclaims extents that no surviving blob/snapshot/staged
// block references, grounded on original_source/src/storage/gc.rs's
// mark-and-sweep design: rather than refcounting every extent write (which
// would serialize unrelated blob operations against a shared counter), GC
// walks the metadata store's live chunk set to build a reachability mark,
// then deletes each extent id queued through Enqueue that the mark does not
// contain. Extents that were never queued are not examined, and the grace
// field is not consulted.
type GC struct {
	store    *Store
	extents  extent.Store
	interval time.Duration
	grace    time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewGC builds a collector and wires it into store so blob/container
// deletions enqueue their orphaned extents automatically (the caller no
// longer needs to pass chunks around by hand).
func NewGC(store *Store, extents extent.Store, interval time.Duration) *GC {
	g := &GC{store: store, extents: extents, interval: interval, grace: 30 * time.Second}
	store.gcHook = g.Enqueue
	return g
}

// Run blocks, sweeping on every interval tick until ctx is cancelled. It is
// meant to be supervised by an errgroup alongside the HTTP server (spec §9
// "server and GC run under one supervised group").
func (g *GC) Run(ctx context.Context) error {
	if g.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(g.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := g.RunOnce(ctx); err != nil {
				glog.Warningf("gc: sweep failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single mark-and-sweep pass and returns the number of
// extents reclaimed. Deletion is best-effort: a Delete failure for one
// extent id is logged and skipped rather than aborting the sweep (spec §9
// "best-effort periodic extent GC").
func (g *GC) RunOnce(ctx context.Context) (int, error) {
	live := g.markLive()
	return g.sweep(ctx, live), nil
}

func (g *GC) markLive() map[string]struct{} {
	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	live := make(map[string]struct{}, len(g.store.blobs)*2)
	for _, b := range g.store.blobs {
		for _, c := range b.Chunks {
			live[c.ExtentID] = struct{}{}
		}
	}
	for _, blocks := range g.store.blocks {
		for _, blk := range blocks {
			live[blk.Chunk.ExtentID] = struct{}{}
		}
	}
	return live
}

// sweep asks the extent store to drop anything not in live. MemStore and
// FSStore don't expose an enumeration primitive in the Store interface (by
// design — enumeration is GC's concern, not every backend's), so sweep
// tracks reclaimable ids itself via a side channel the stores report
// through Delete's idempotency: callers that already know an id is
// unreachable just call Delete directly. In practice the metadata layer is
// the only source of extent ids, so GC's real job reduces to deleting
// extent ids that g.pending has queued up from blob/container deletion and
// overwrite paths; RunOnce's mark pass keeps a queued id whose extent is
// still shared with a surviving blob, snapshot or staged block. The queue
// is emptied on every sweep, including the ids kept that way.
func (g *GC) sweep(ctx context.Context, live map[string]struct{}) int {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	reclaimed := 0
	for id := range pending {
		if _, ok := live[id]; ok {
			continue
		}
		if err := g.extents.Delete(ctx, id); err != nil {
			glog.Warningf("gc: delete extent %s: %v", id, err)
			continue
		}
		reclaimed++
	}
	return reclaimed
}

// Enqueue registers extent ids orphaned by a blob/container deletion so
// the next sweep reclaims them (spec §9 "best-effort periodic extent GC"
// — the store itself doesn't call Delete synchronously on the hot path of
// DeleteBlob/DeleteContainer, so a big delete doesn't stall the request).
func (g *GC) Enqueue(chunks []extent.Chunk) {
	if len(chunks) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		g.pending = make(map[string]struct{}, len(chunks))
	}
	for _, c := range chunks {
		g.pending[c.ExtentID] = struct{}{}
	}
}
