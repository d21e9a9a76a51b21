package xmlcodec

import (
	"encoding/xml"
	"time"

	"github.com/blobemu/blobemu/cmn"
)

// SignedIdentifierXML is one <SignedIdentifier> entry of a container's
// stored access policy list (spec §3, §4.3).
type SignedIdentifierXML struct {
	ID           string       `xml:"Id"`
	AccessPolicy AccessPolicy `xml:"AccessPolicy"`
}

type AccessPolicy struct {
	Start      string `xml:"Start,omitempty"`
	Expiry     string `xml:"Expiry,omitempty"`
	Permission string `xml:"Permission,omitempty"`
}

type signedIdentifiersXML struct {
	XMLName     xml.Name              `xml:"SignedIdentifiers"`
	Identifiers []SignedIdentifierXML `xml:"SignedIdentifier"`
}

// IdentifierParams is the primitive shape a handler passes in, avoiding an
// xmlcodec -> storage/metadata dependency.
type IdentifierParams struct {
	ID         string
	Start      *time.Time
	Expiry     *time.Time
	Permission string
}

// EncodeSignedIdentifiers renders Get Container ACL's body (spec §4.7).
func EncodeSignedIdentifiers(ids []IdentifierParams) []byte {
	doc := signedIdentifiersXML{}
	for _, id := range ids {
		ap := AccessPolicy{Permission: id.Permission}
		if id.Start != nil {
			ap.Start = cmn.FormatSnapshotTime(*id.Start)
		}
		if id.Expiry != nil {
			ap.Expiry = cmn.FormatSnapshotTime(*id.Expiry)
		}
		doc.Identifiers = append(doc.Identifiers, SignedIdentifierXML{ID: id.ID, AccessPolicy: ap})
	}
	return marshal(doc)
}

// DecodeSignedIdentifiers parses a Set Container ACL request body.
func DecodeSignedIdentifiers(body []byte) ([]IdentifierParams, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var doc signedIdentifiersXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	out := make([]IdentifierParams, 0, len(doc.Identifiers))
	for _, id := range doc.Identifiers {
		p := IdentifierParams{ID: id.ID, Permission: id.AccessPolicy.Permission}
		if id.AccessPolicy.Start != "" {
			if t, err := cmn.ParseSASTime(id.AccessPolicy.Start); err == nil {
				p.Start = &t
			}
		}
		if id.AccessPolicy.Expiry != "" {
			if t, err := cmn.ParseSASTime(id.AccessPolicy.Expiry); err == nil {
				p.Expiry = &t
			}
		}
		out = append(out, p)
	}
	return out, nil
}
