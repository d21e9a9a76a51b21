package metadata

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
	"github.com/blobemu/blobemu/storage/extent"
)

type containerKey struct{ account, name string }

type blobKey struct{ account, container, name, snapshot string }

func bkey(account, container, name, snapshot string) blobKey {
	return blobKey{account, container, name, snapshot}
}

// Store is the concurrent metadata keyspace (spec §4.2): containers, blobs
// (base + snapshots), staged blocks, and per-account service properties.
// Structural changes (insert/remove a key) take the top-level lock; a
// record's own fields are further guarded by that record's embedded Lease
// mutex or, for everything else, by convention of "one goroutine owns a
// handler's record for the duration of that request" the way the teacher's
// bucket-metadata owner pattern does (cmn/config.go's GCO is the same
// load/copy/replace idea applied to a single global instead of a keyspace).
type Store struct {
	mu sync.RWMutex

	containers map[containerKey]*Container
	// blobNames indexes live (non-snapshot, non-deleted) blob names per
	// container for listing (spec §4.6) without scanning the whole blob map.
	blobNames map[containerKey]map[string]struct{}
	blobs     map[blobKey]*Blob
	// snapshots indexes snapshot timestamps per base blob, newest first.
	snapshots map[blobKey][]string

	blocks map[blobKey]map[string]*Block

	svcProps map[string]*ServiceProperties

	// gcHook, set by NewGC, receives the chunks a deletion just orphaned so
	// the collector can reclaim them on its next sweep.
	gcHook func([]extent.Chunk)
}

// NewStore builds an empty metadata store.
func NewStore() *Store {
	return &Store{
		containers: make(map[containerKey]*Container),
		blobNames:  make(map[containerKey]map[string]struct{}),
		blobs:      make(map[blobKey]*Blob),
		snapshots:  make(map[blobKey][]string),
		blocks:     make(map[blobKey]map[string]*Block),
		svcProps:   make(map[string]*ServiceProperties),
	}
}

// ServiceProperties returns the account's properties, lazily seeded with
// defaults on first access (spec §4.9 "a fresh account reports defaults").
func (s *Store) ServiceProperties(account string) *ServiceProperties {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.svcProps[account]
	if !ok {
		p = DefaultServiceProperties()
		s.svcProps[account] = p
	}
	return p
}

// SetServiceProperties replaces the account's properties wholesale (the
// handler builds p from defaults plus the sections present in the request
// body, so a section the body omits reverts to its default; the store
// itself just stores what it's given).
func (s *Store) SetServiceProperties(account string, p *ServiceProperties) {
	s.mu.Lock()
	s.svcProps[account] = p
	s.mu.Unlock()
}

// CreateContainer inserts a new container record; returns
// ErrContainerAlreadyExists if one (even a soft-deleted placeholder, spec
// Non-goals says no soft-delete so this simplifies to "already live") is
// already present.
func (s *Store) CreateContainer(account, name string, public apc.PublicAccess, md cos.StrKVs) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := containerKey{account, name}
	if existing, ok := s.containers[k]; ok && !existing.Deleted {
		return nil, cmn.NewErr(cmn.ErrContainerAlreadyExists)
	}
	now := time.Now()
	c := &Container{
		Account:      account,
		Name:         name,
		ETag:         cmn.NewETag(),
		LastModified: now,
		PublicAccess: public,
		Metadata:     md.Clone(),
	}
	s.containers[k] = c
	s.blobNames[k] = make(map[string]struct{})
	return c, nil
}

// GetContainer returns the container, or ErrContainerNotFound.
func (s *Store) GetContainer(account, name string) (*Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[containerKey{account, name}]
	if !ok || c.Deleted {
		return nil, cmn.NewErr(cmn.ErrContainerNotFound)
	}
	return c, nil
}

// DeleteContainer removes a container and every blob/snapshot/block beneath
// it (spec §4.7 "deleting a container implicitly deletes every blob,
// snapshot, and staged block within it"). The chunks those records
// referenced are handed to the GC hook (reportOrphans), and the background
// GC sweep (gc.go) deletes the ones no surviving record still references.
func (s *Store) DeleteContainer(account, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := containerKey{account, name}
	c, ok := s.containers[k]
	if !ok || c.Deleted {
		return cmn.NewErr(cmn.ErrContainerNotFound)
	}
	var orphaned []extent.Chunk
	for blobName := range s.blobNames[k] {
		orphaned = append(orphaned, s.purgeBlobLineageLocked(bkey(account, name, blobName, ""))...)
	}
	delete(s.containers, k)
	delete(s.blobNames, k)
	s.reportOrphans(orphaned)
	return nil
}

func (s *Store) reportOrphans(chunks []extent.Chunk) {
	if s.gcHook != nil && len(chunks) > 0 {
		s.gcHook(chunks)
	}
}

// ListContainers returns live containers with names >= marker, sorted, for
// the account (spec §4.6 "list is sorted, paginated by a string marker").
func (s *Store) ListContainers(account, prefix, marker string, maxResults int) (items []*Container, nextMarker string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for k, c := range s.containers {
		if k.account != account || c.Deleted {
			continue
		}
		if prefix != "" && !strings.HasPrefix(k.name, prefix) {
			continue
		}
		names = append(names, k.name)
	}
	sort.Strings(names)
	start := 0
	if marker != "" {
		start = sort.SearchStrings(names, marker)
	}
	for i := start; i < len(names); i++ {
		if maxResults > 0 && len(items) >= maxResults {
			nextMarker = names[i]
			break
		}
		items = append(items, s.containers[containerKey{account, names[i]}])
	}
	return items, nextMarker
}

// purgeBlobLineageLocked deletes the base blob, every snapshot, and every
// staged block for the given (account, container, name), returning the
// extent chunks that no longer have any referencing record.
func (s *Store) purgeBlobLineageLocked(base blobKey) []extent.Chunk {
	var orphaned []extent.Chunk
	if b, ok := s.blobs[base]; ok {
		orphaned = append(orphaned, b.Chunks...)
	}
	for _, snap := range s.snapshots[base] {
		sk := bkey(base.account, base.container, base.name, snap)
		if b, ok := s.blobs[sk]; ok {
			orphaned = append(orphaned, b.Chunks...)
		}
		delete(s.blobs, sk)
	}
	for _, blk := range s.blocks[base] {
		orphaned = append(orphaned, blk.Chunk)
	}
	delete(s.snapshots, base)
	delete(s.blobs, base)
	delete(s.blocks, base)
	if names, ok := s.blobNames[containerKey{base.account, base.container}]; ok {
		delete(names, base.name)
	}
	return orphaned
}
