package xmlcodec

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
)

func TestEncodeError(t *testing.T) {
	e := cmn.NewErr(cmn.ErrBlobNotFound)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	body := EncodeError(e, "req-123", at)
	s := string(body)
	for _, want := range []string{
		"<Code>BlobNotFound</Code>",
		"RequestId:req-123",
		"Time:2024-01-02T03:04:05.000Z",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("error body missing %q, got:\n%s", want, s)
		}
	}
}

func TestCommitBlockListRoundTrip(t *testing.T) {
	latest := base64.StdEncoding.EncodeToString([]byte("block-a"))
	uncommitted := base64.StdEncoding.EncodeToString([]byte("block-b"))
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<BlockList>
  <Latest>` + latest + `</Latest>
  <Uncommitted>` + uncommitted + `</Uncommitted>
</BlockList>`)

	refs, err := DecodeCommitBlockList(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("want 2 refs, got %d", len(refs))
	}
	if refs[0].Bucket != apc.BlockLatest || refs[0].ID != "block-a" {
		t.Errorf("unexpected first ref: %+v", refs[0])
	}
	if refs[1].Bucket != apc.BlockUncommitted || refs[1].ID != "block-b" {
		t.Errorf("unexpected second ref: %+v", refs[1])
	}
}

func TestCommitBlockListInvalidBase64(t *testing.T) {
	body := []byte(`<BlockList><Latest>not-base64!!</Latest></BlockList>`)
	if _, err := DecodeCommitBlockList(body); err == nil {
		t.Fatal("expected an error for invalid block id encoding")
	}
}

func TestEncodeBlockList(t *testing.T) {
	body := EncodeBlockList(apc.BlockListAll,
		[]BlockInfo{{ID: "committed-1", Size: 10}},
		[]BlockInfo{{ID: "staged-1", Size: 4}})
	s := string(body)
	if !strings.Contains(s, "<CommittedBlocks>") || !strings.Contains(s, "<UncommittedBlocks>") {
		t.Errorf("expected both bucket elements present, got:\n%s", s)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	in := map[string]string{"project": "blobemu", "env": "test"}
	body := EncodeTags(in)
	out, err := DecodeTags(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("want %d tags back, got %d", len(in), len(out))
	}
	for k, v := range in {
		if out[k] != v {
			t.Errorf("tag %q: want %q, got %q", k, v, out[k])
		}
	}
}

func TestSignedIdentifiersRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []IdentifierParams{{ID: "policy1", Start: &start, Permission: "rwdl"}}
	body := EncodeSignedIdentifiers(in)
	out, err := DecodeSignedIdentifiers(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "policy1" || out[0].Permission != "rwdl" {
		t.Fatalf("unexpected round-trip result: %+v", out)
	}
}

func TestDecodeSignedIdentifiersEmptyBody(t *testing.T) {
	out, err := DecodeSignedIdentifiers(nil)
	if err != nil || out != nil {
		t.Fatalf("empty body should decode to (nil, nil), got (%v, %v)", out, err)
	}
}
