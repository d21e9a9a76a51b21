package metadata

import (
	"time"

	"github.com/tidwall/buntdb"
	"github.com/tinylib/msgp/msgp"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/cmn/cos"
)

// Checkpoint persists the metadata keyspace to a buntdb-backed file so a
// "loose" (spec §9 "loose mode": not fully durable, but survives a clean
// restart) server can reload its state, the way the teacher's cmn/jsp
// package checkpoints bucket metadata to a file rather than requiring an
// external database. Records are stored as raw msgp-encoded bytes under a
// key namespaced by record kind, letting buntdb's own B-tree give us a
// sorted iteration order for free if a future operation wants it.
type Checkpoint struct {
	db *buntdb.DB
}

// OpenCheckpoint opens (creating if absent) the buntdb file at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.NewErr(cmn.ErrInternalError).Wrap(err)
	}
	return &Checkpoint{db: db}, nil
}

func (c *Checkpoint) Close() error { return c.db.Close() }

// Save writes every container and base blob (snapshots and staged blocks
// are not checkpointed — spec Non-goals excludes durability guarantees
// beyond "survives a clean shutdown", and dropping in-flight staged
// uploads on restart matches real Azure's own behavior for an unflushed
// upload session).
func (c *Checkpoint) Save(s *Store) error {
	s.mu.RLock()
	containers := make([]*Container, 0, len(s.containers))
	for _, ct := range s.containers {
		containers = append(containers, ct)
	}
	blobs := make([]*Blob, 0, len(s.blobs))
	for k, b := range s.blobs {
		if k.snapshot == "" {
			blobs = append(blobs, b)
		}
	}
	s.mu.RUnlock()

	return c.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.DeleteAll(); err != nil {
			return err
		}
		for _, ct := range containers {
			raw, err := marshalContainer(ct)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set("container:"+ct.Account+"/"+ct.Name, string(raw), nil); err != nil {
				return err
			}
		}
		for _, b := range blobs {
			raw, err := marshalBlob(b)
			if err != nil {
				return err
			}
			key := "blob:" + b.Account + "/" + b.Container + "/" + b.Name
			if _, _, err := tx.Set(key, string(raw), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load repopulates an empty Store from the checkpoint file.
func (c *Checkpoint) Load(s *Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			switch {
			case len(key) > 10 && key[:10] == "container:":
				ct, err := unmarshalContainer([]byte(value))
				if err == nil {
					s.containers[containerKey{ct.Account, ct.Name}] = ct
					s.blobNames[containerKey{ct.Account, ct.Name}] = make(map[string]struct{})
				}
			case len(key) > 5 && key[:5] == "blob:":
				b, err := unmarshalBlob([]byte(value))
				if err == nil {
					s.blobs[bkey(b.Account, b.Container, b.Name, "")] = b
					ck := containerKey{b.Account, b.Container}
					if s.blobNames[ck] == nil {
						s.blobNames[ck] = make(map[string]struct{})
					}
					s.blobNames[ck][b.Name] = struct{}{}
				}
			}
			return true
		})
	})
}

// marshalContainer/unmarshalContainer and their blob counterparts are
// hand-written against msgp's streaming primitives (github.com/tinylib/msgp/msgp)
// rather than code-generated Marshal/Unmarshal methods, since checkpointing
// here only needs the handful of fields a restart must recover, not a full
// round-trippable schema.
func marshalContainer(ct *Container) ([]byte, error) {
	var b []byte
	b = msgp.AppendMapHeader(b, 5)
	b = msgp.AppendString(b, "account")
	b = msgp.AppendString(b, ct.Account)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, ct.Name)
	b = msgp.AppendString(b, "etag")
	b = msgp.AppendString(b, ct.ETag)
	b = msgp.AppendString(b, "lastmod")
	b = msgp.AppendInt64(b, ct.LastModified.UnixNano())
	b = msgp.AppendString(b, "public")
	b = msgp.AppendString(b, string(ct.PublicAccess))
	return b, nil
}

func unmarshalContainer(raw []byte) (*Container, error) {
	fields, err := readMap(raw)
	if err != nil {
		return nil, err
	}
	ct := &Container{Metadata: cos.NewStrKVs()}
	ct.Account, _ = fields["account"].(string)
	ct.Name, _ = fields["name"].(string)
	ct.ETag, _ = fields["etag"].(string)
	if ns, ok := fields["lastmod"].(int64); ok {
		ct.LastModified = time.Unix(0, ns)
	}
	if pa, ok := fields["public"].(string); ok {
		ct.PublicAccess = apc.PublicAccess(pa)
	}
	return ct, nil
}

func marshalBlob(b *Blob) ([]byte, error) {
	var out []byte
	out = msgp.AppendMapHeader(out, 8)
	out = msgp.AppendString(out, "account")
	out = msgp.AppendString(out, b.Account)
	out = msgp.AppendString(out, "container")
	out = msgp.AppendString(out, b.Container)
	out = msgp.AppendString(out, "name")
	out = msgp.AppendString(out, b.Name)
	out = msgp.AppendString(out, "type")
	out = msgp.AppendString(out, string(b.Type))
	out = msgp.AppendString(out, "len")
	out = msgp.AppendInt64(out, b.ContentLength)
	out = msgp.AppendString(out, "ctype")
	out = msgp.AppendString(out, b.ContentType)
	out = msgp.AppendString(out, "etag")
	out = msgp.AppendString(out, b.ETag)
	out = msgp.AppendString(out, "lastmod")
	out = msgp.AppendInt64(out, b.LastMod.UnixNano())
	return out, nil
}

func unmarshalBlob(raw []byte) (*Blob, error) {
	fields, err := readMap(raw)
	if err != nil {
		return nil, err
	}
	b := &Blob{Metadata: cos.NewStrKVs(), Tags: cos.NewStrKVs()}
	b.Account, _ = fields["account"].(string)
	b.Container, _ = fields["container"].(string)
	b.Name, _ = fields["name"].(string)
	if t, ok := fields["type"].(string); ok {
		b.Type = apc.BlobType(t)
	}
	if n, ok := fields["len"].(int64); ok {
		b.ContentLength = n
	}
	b.ContentType, _ = fields["ctype"].(string)
	b.ETag, _ = fields["etag"].(string)
	if ns, ok := fields["lastmod"].(int64); ok {
		b.LastMod = time.Unix(0, ns)
	}
	return b, nil
}

// readMap walks a flat string-keyed msgp map into a generic Go map,
// sufficient for the fixed, hand-rolled schemas above.
func readMap(raw []byte) (map[string]interface{}, error) {
	n, raw, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, n)
	for i := uint32(0); i < n; i++ {
		var key string
		key, raw, err = msgp.ReadStringBytes(raw)
		if err != nil {
			return nil, err
		}
		switch msgp.NextType(raw) {
		case msgp.StrType:
			var v string
			v, raw, err = msgp.ReadStringBytes(raw)
			out[key] = v
			if err != nil {
				return nil, err
			}
		case msgp.IntType, msgp.UintType:
			var v int64
			v, raw, err = msgp.ReadInt64Bytes(raw)
			out[key] = v
			if err != nil {
				return nil, err
			}
		default:
			raw, err = msgp.Skip(raw)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
