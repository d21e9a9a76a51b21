package xmlcodec

import "encoding/xml"

// KeyInfoXML is the Get User Delegation Key request body: a validity window
// for the OAuth2-issued key (spec §1 "OAuth2/user-delegation").
type KeyInfoXML struct {
	XMLName xml.Name `xml:"KeyInfo"`
	Start   string   `xml:"Start"`
	Expiry  string   `xml:"Expiry"`
}

// DecodeKeyInfo parses a Get User Delegation Key request body.
func DecodeKeyInfo(body []byte) (KeyInfoXML, error) {
	var k KeyInfoXML
	err := xml.Unmarshal(body, &k)
	return k, err
}

// UserDelegationKeyXML is the response body (spec §1): the synthetic key
// material is a signed JWT (handlers/service.go), carried here as an
// opaque base64-ish string the way Azure's own SignedTid/SignedValue field
// carries whatever byte string the key derivation produced.
type UserDelegationKeyXML struct {
	XMLName       xml.Name `xml:"UserDelegationKey"`
	SignedOID     string   `xml:"SignedOid"`
	SignedTID     string   `xml:"SignedTid"`
	SignedStart   string   `xml:"SignedStart"`
	SignedExpiry  string   `xml:"SignedExpiry"`
	SignedService string   `xml:"SignedService"`
	SignedVersion string   `xml:"SignedVersion"`
	Value         string   `xml:"Value"`
}

func EncodeUserDelegationKey(k UserDelegationKeyXML) []byte { return marshal(k) }
