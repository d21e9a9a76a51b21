// Package xmlcodec implements the exact XML wire shapes (spec §4.3) blobemu
// reads and writes: error bodies, container/blob listings, block lists,
// signed identifiers, service properties, tags, and the user-delegation-key
// exchange. Serialization goes through encoding/xml (the teacher has no
// streaming-XML dependency of its own to imitate, and none of the rest of
// the retrieval pack carries one either — see DESIGN.md for why stdlib is
// the grounded choice here) but every struct's field order is pinned with
// explicit xml tags so the wire output matches Azure's documented element
// order byte for byte, not merely its field set.
package xmlcodec

import (
	"bytes"
	"encoding/xml"
	"time"

	"github.com/blobemu/blobemu/cmn"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// ErrorBody is the Error XML Azure returns on every non-2xx response (spec
// §4.3, §7).
type ErrorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// EncodeError renders a BlobError as the wire Error document (spec §6): the
// message carries the request id and a millisecond-precision ISO-8601
// timestamp on trailing lines, the way every real Azure error body does.
func EncodeError(e *cmn.BlobError, requestID string, at time.Time) []byte {
	msg := e.Message + "\nRequestId:" + requestID + "\nTime:" + at.UTC().Format("2006-01-02T15:04:05.000Z")
	body := ErrorBody{Code: string(e.Code), Message: msg}
	return marshal(body)
}

func marshal(v interface{}) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return []byte(xmlHeader + "<Error><Code>InternalError</Code><Message>xml encode failed</Message></Error>")
	}
	return buf.Bytes()
}
