package xmlcodec

import (
	"encoding/xml"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
)

// BlobProperties mirrors the <Properties> block of a <Blob> entry (spec
// §4.3). Fields the spec marks optional are tagged omitempty so an absent
// value is simply not rendered, matching Azure's own behavior.
type BlobProperties struct {
	LastModified    string `xml:"Last-Modified"`
	ETag            string `xml:"Etag"`
	ContentLength   int64  `xml:"Content-Length"`
	ContentType     string `xml:"Content-Type,omitempty"`
	ContentEncoding string `xml:"Content-Encoding,omitempty"`
	ContentLanguage string `xml:"Content-Language,omitempty"`
	ContentMD5      string `xml:"Content-MD5,omitempty"`
	CacheControl    string `xml:"Cache-Control,omitempty"`
	BlobType        string `xml:"BlobType"`
	AccessTier      string `xml:"AccessTier,omitempty"`
	LeaseStatus     string `xml:"LeaseStatus"`
	LeaseState      string `xml:"LeaseState"`
	LeaseDuration   string `xml:"LeaseDuration,omitempty"`
	ServerEncrypted string `xml:"ServerEncrypted"`
	CopyID          string `xml:"CopyId,omitempty"`
	CopyStatus      string `xml:"CopyStatus,omitempty"`
	CopySource      string `xml:"CopySource,omitempty"`
	CopyProgress    string `xml:"CopyProgress,omitempty"`
}

// BlobItem is one <Blob> entry.
type BlobItem struct {
	Name       string       `xml:"Name"`
	Snapshot   string       `xml:"Snapshot,omitempty"`
	Deleted    bool         `xml:"Deleted,omitempty"`
	Properties BlobProperties `xml:"Properties"`
	Metadata   *MetadataXML `xml:"Metadata,omitempty"`
	Tags       *TagSetXML   `xml:"Tags,omitempty"`
}

// BlobPrefixItem is one <BlobPrefix> entry rolled up by a delimiter.
type BlobPrefixItem struct {
	Name string `xml:"Name"`
}

// ListBlobsResult is the root <EnumerationResults> for Get Container List
// Blobs (spec §4.3/§4.6).
type ListBlobsResult struct {
	XMLName       xml.Name         `xml:"EnumerationResults"`
	ServiceEP     string           `xml:"ServiceEndpoint,attr"`
	ContainerName string           `xml:"ContainerName,attr"`
	Prefix        string           `xml:"Prefix,omitempty"`
	Marker        string           `xml:"Marker,omitempty"`
	MaxResults    int              `xml:"MaxResults,omitempty"`
	Delimiter     string           `xml:"Delimiter,omitempty"`
	Blobs         listBlobsEntries `xml:"Blobs"`
	NextMarker    string           `xml:"NextMarker"`
}

// listBlobsEntries renders <Blob> and <BlobPrefix> children in the exact
// order they were appended (spec §4.6 "entries interleave in sort order").
type listBlobsEntries struct {
	Entries []interface{ isBlobEntry() }
}

func (BlobItem) isBlobEntry()       {}
func (BlobPrefixItem) isBlobEntry() {}

func (b listBlobsEntries) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, entry := range b.Entries {
		switch v := entry.(type) {
		case BlobItem:
			if err := e.Encode(v); err != nil {
				return err
			}
		case BlobPrefixItem:
			if err := e.EncodeElement(v, xml.StartElement{Name: xml.Name{Local: "BlobPrefix"}}); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(start.End())
}

// EncodeListBlobs builds the wire document for a list-blobs page.
func EncodeListBlobs(serviceEndpoint, container, prefix, marker, delimiter string, maxResults int, entries []interface{ isBlobEntry() }, nextMarker string) []byte {
	r := ListBlobsResult{
		ServiceEP:     serviceEndpoint,
		ContainerName: container,
		Prefix:        prefix,
		Marker:        marker,
		MaxResults:    maxResults,
		Delimiter:     delimiter,
		Blobs:         listBlobsEntries{Entries: entries},
		NextMarker:    nextMarker,
	}
	return marshal(r)
}

// BlobItemFrom builds a BlobItem from the primitive fields a handler reads
// off a storage/metadata.Blob, without xmlcodec depending on that package.
type BlobItemParams struct {
	Name, Snapshot                           string
	Deleted                                  bool
	LastMod                                  time.Time
	ETag                                     string
	ContentLength                            int64
	ContentType, ContentEncoding, ContentLanguage string
	ContentMD5                                string
	CacheControl                              string
	Type                                      apc.BlobType
	AccessTier                                apc.AccessTier
	LeaseStatus                               apc.LeaseStatus
	LeaseState                                apc.LeaseState
	CopyID, CopySource, CopyProgress          string
	CopyStatus                                apc.CopyStatus
	Metadata, Tags                            map[string]string
}

func BlobItemFrom(p BlobItemParams) BlobItem {
	item := BlobItem{
		Name:     p.Name,
		Snapshot: p.Snapshot,
		Deleted:  p.Deleted,
		Properties: BlobProperties{
			LastModified:    cmn.FormatHTTPTime(p.LastMod),
			ETag:            p.ETag,
			ContentLength:   p.ContentLength,
			ContentType:     p.ContentType,
			ContentEncoding: p.ContentEncoding,
			ContentLanguage: p.ContentLanguage,
			ContentMD5:      p.ContentMD5,
			CacheControl:    p.CacheControl,
			BlobType:        string(p.Type),
			AccessTier:      string(p.AccessTier),
			LeaseStatus:     string(p.LeaseStatus),
			LeaseState:      string(p.LeaseState),
			ServerEncrypted: "true",
			CopyID:          p.CopyID,
			CopyStatus:      string(p.CopyStatus),
			CopySource:      p.CopySource,
			CopyProgress:    p.CopyProgress,
		},
		Metadata: metadataXML(p.Metadata),
	}
	if len(p.Tags) > 0 {
		item.Tags = tagSetXML(p.Tags)
	}
	return item
}
