package metadata

import (
	"sort"
	"strings"
)

// ListEntry is either a blob (IsPrefix == false) or a virtual directory
// rolled up behind a delimiter (IsPrefix == true, spec §4.6 "hierarchical
// listing").
type ListEntry struct {
	Name     string
	IsPrefix bool
	Blob     *Blob // nil when IsPrefix
}

// ListBlobsOptions (spec §4.6).
type ListBlobsOptions struct {
	Prefix       string
	Delimiter    string
	Marker       string
	MaxResults   int
	IncludeSnaps bool
	IncludeDeleted bool
}

// ListBlobs implements Get Blob list with optional prefix/delimiter
// flattening (spec §4.6): names are enumerated in strict lexicographic
// order over the full blob name, including virtual "directories" that a
// delimiter collapses to a single BlobPrefix entry, exactly as if real
// blobs existed at every slash-delimited level.
func (s *Store) ListBlobs(account, container string, opt ListBlobsOptions) (entries []ListEntry, nextMarker string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ck := containerKey{account, container}
	names := make([]string, 0, len(s.blobNames[ck]))
	for n := range s.blobNames[ck] {
		names = append(names, n)
	}
	sort.Strings(names)

	max := opt.MaxResults
	if max <= 0 {
		max = 5000
	}

	seenPrefix := make(map[string]bool)
	for _, name := range names {
		if opt.Prefix != "" && !strings.HasPrefix(name, opt.Prefix) {
			continue
		}
		rest := name
		if opt.Prefix != "" {
			rest = name[len(opt.Prefix):]
		}
		if opt.Delimiter != "" {
			if idx := strings.Index(rest, opt.Delimiter); idx >= 0 {
				groupName := name[:len(opt.Prefix)+idx+len(opt.Delimiter)]
				if groupName <= opt.Marker {
					continue
				}
				if seenPrefix[groupName] {
					continue
				}
				if len(entries) >= max {
					nextMarker = entries[len(entries)-1].Name
					break
				}
				seenPrefix[groupName] = true
				entries = append(entries, ListEntry{Name: groupName, IsPrefix: true})
				continue
			}
		}
		if name <= opt.Marker {
			continue
		}
		b, ok := s.blobs[bkey(account, container, name, "")]
		if !ok || (b.Deleted && !opt.IncludeDeleted) {
			continue
		}
		if len(entries) >= max {
			nextMarker = entries[len(entries)-1].Name
			break
		}
		entries = append(entries, ListEntry{Name: name, Blob: b})
		if opt.IncludeSnaps {
			base := bkey(account, container, name, "")
			for _, ts := range s.snapshots[base] {
				if sb, ok := s.blobs[bkey(account, container, name, ts)]; ok {
					entries = append(entries, ListEntry{Name: name, Blob: sb})
				}
			}
		}
	}
	return entries, nextMarker
}
