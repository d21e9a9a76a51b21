package xmlcodec

import (
	"encoding/xml"
	"time"

	"github.com/blobemu/blobemu/apc"
	"github.com/blobemu/blobemu/cmn"
)

// ContainerItem is one <Container> entry in a List Containers response.
type ContainerItem struct {
	Name       string               `xml:"Name"`
	Properties ContainerProperties  `xml:"Properties"`
	Metadata   *MetadataXML         `xml:"Metadata,omitempty"`
}

type ContainerProperties struct {
	LastModified  string `xml:"Last-Modified"`
	ETag          string `xml:"Etag"`
	LeaseStatus   string `xml:"LeaseStatus"`
	LeaseState    string `xml:"LeaseState"`
	LeaseDuration string `xml:"LeaseDuration,omitempty"`
	PublicAccess  string `xml:"PublicAccess,omitempty"`
}

// ListContainersResult is the root <EnumerationResults> for Get Service
// List Containers (spec §4.3/§4.5).
type ListContainersResult struct {
	XMLName    xml.Name        `xml:"EnumerationResults"`
	ServiceEP  string          `xml:"ServiceEndpoint,attr"`
	Prefix     string          `xml:"Prefix,omitempty"`
	Marker     string          `xml:"Marker,omitempty"`
	MaxResults int             `xml:"MaxResults,omitempty"`
	Containers []ContainerItem `xml:"Containers>Container"`
	NextMarker string          `xml:"NextMarker"`
}

// MetadataXML renders an arbitrary case-insensitive key/value map as
// <Metadata><key>value</key>...</Metadata> (spec §4.3).
type MetadataXML struct {
	Pairs []MetadataPair `xml:",any"`
}

type MetadataPair struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func metadataXML(kv map[string]string) *MetadataXML {
	if len(kv) == 0 {
		return nil
	}
	m := &MetadataXML{}
	for k, v := range kv {
		m.Pairs = append(m.Pairs, MetadataPair{XMLName: xml.Name{Local: k}, Value: v})
	}
	return m
}

// EncodeListContainers builds the wire document for a list-containers page.
func EncodeListContainers(serviceEndpoint, prefix, marker string, maxResults int, items []ContainerItem, nextMarker string) []byte {
	r := ListContainersResult{
		ServiceEP:  serviceEndpoint,
		Prefix:     prefix,
		Marker:     marker,
		MaxResults: maxResults,
		Containers: items,
		NextMarker: nextMarker,
	}
	return marshal(r)
}

// ContainerItemFrom builds a ContainerItem the way handlers/container.go
// wants to call it, given the metadata record's public fields (handlers
// pass primitives rather than importing storage/metadata's Container type
// here, keeping xmlcodec free of a dependency on the store).
func ContainerItemFrom(name string, lastMod time.Time, etag string, leaseStatus apc.LeaseStatus, leaseState apc.LeaseState, public apc.PublicAccess, md map[string]string) ContainerItem {
	pub := ""
	if public != apc.PublicAccessNone {
		pub = string(public)
	}
	return ContainerItem{
		Name: name,
		Properties: ContainerProperties{
			LastModified: cmn.FormatHTTPTime(lastMod),
			ETag:         etag,
			LeaseStatus:  string(leaseStatus),
			LeaseState:   string(leaseState),
			PublicAccess: pub,
		},
		Metadata: metadataXML(md),
	}
}
