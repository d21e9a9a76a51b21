package xmlcodec

import (
	"encoding/base64"
	"encoding/xml"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
)

// BlockRef is one <Block> entry in a commit-block-list request body (spec
// §4.3): the block id is base64-encoded on the wire, and Bucket records
// which of the three buckets (Latest/Committed/Uncommitted) it came from.
type BlockRef struct {
	Bucket apc.BlockListBucket
	ID     string // decoded
}

// blockListRequest mirrors the raw wire shape: <BlockList><Latest>id</Latest>...
type blockListRequest struct {
	XMLName xml.Name `xml:"BlockList"`
	Entries []blockListEntry `xml:",any"`
}

type blockListEntry struct {
	XMLName xml.Name
	ID      string `xml:",chardata"`
}

// DecodeCommitBlockList parses a Put Block List request body, preserving
// the exact order the client listed blocks in (spec §4.7 "the commit order
// is significant — it becomes the blob's chunk order").
func DecodeCommitBlockList(body []byte) ([]BlockRef, error) {
	var req blockListRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return nil, cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	refs := make([]BlockRef, 0, len(req.Entries))
	for _, e := range req.Entries {
		var bucket apc.BlockListBucket
		switch e.XMLName.Local {
		case "Latest":
			bucket = apc.BlockLatest
		case "Committed":
			bucket = apc.BlockCommitted
		case "Uncommitted":
			bucket = apc.BlockUncommitted
		default:
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(e.ID)
		if err != nil {
			return nil, cmn.NewErr(cmn.ErrInvalidBlockID)
		}
		refs = append(refs, BlockRef{Bucket: bucket, ID: string(decoded)})
	}
	return refs, nil
}

// BlockInfo is one entry of a Get Block List response (spec §4.3).
type BlockInfo struct {
	ID   string // raw (pre-base64) id
	Size int64
}

type blockListResultXML struct {
	XMLName          xml.Name        `xml:"BlockList"`
	CommittedBlocks   []blockXML     `xml:"CommittedBlocks>Block,omitempty"`
	UncommittedBlocks []blockXML     `xml:"UncommittedBlocks>Block,omitempty"`
}

type blockXML struct {
	Name string `xml:"Name"`
	Size int64  `xml:"Size"`
}

// EncodeBlockList renders a Get Block List response for the requested
// BlockListType (spec §4.7): committed-only, uncommitted-only, or both.
func EncodeBlockList(listType apc.BlockListType, committed, uncommitted []BlockInfo) []byte {
	var result blockListResultXML
	if listType == apc.BlockListCommitted || listType == apc.BlockListAll {
		for _, b := range committed {
			result.CommittedBlocks = append(result.CommittedBlocks, blockXML{
				Name: base64.StdEncoding.EncodeToString([]byte(b.ID)), Size: b.Size,
			})
		}
	}
	if listType == apc.BlockListUncommitted || listType == apc.BlockListAll {
		for _, b := range uncommitted {
			result.UncommittedBlocks = append(result.UncommittedBlocks, blockXML{
				Name: base64.StdEncoding.EncodeToString([]byte(b.ID)), Size: b.Size,
			})
		}
	}
	return marshal(result)
}
