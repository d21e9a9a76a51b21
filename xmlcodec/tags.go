package xmlcodec

import "encoding/xml"

// TagSetXML is the <Tags><TagSet><Tag><Key/><Value/></Tag>...</TagSet></Tags>
// shape used both standalone (Get/Set Blob Tags) and nested inside a
// <Blob> listing entry when `include=tags` is requested (spec §4.3).
type TagSetXML struct {
	XMLName xml.Name  `xml:"Tags"`
	TagSet  []TagXML  `xml:"TagSet>Tag"`
}

type TagXML struct {
	Key   string `xml:"Key"`
	Value string `xml:"Value"`
}

func tagSetXML(tags map[string]string) *TagSetXML {
	if len(tags) == 0 {
		return nil
	}
	t := &TagSetXML{}
	for k, v := range tags {
		t.TagSet = append(t.TagSet, TagXML{Key: k, Value: v})
	}
	return t
}

// EncodeTags renders a standalone Get Blob Tags response.
func EncodeTags(tags map[string]string) []byte {
	t := tagSetXML(tags)
	if t == nil {
		t = &TagSetXML{}
	}
	return marshal(t)
}

// DecodeTags parses a Set Blob Tags request body.
func DecodeTags(body []byte) (map[string]string, error) {
	var t TagSetXML
	if err := xml.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(t.TagSet))
	for _, tag := range t.TagSet {
		out[tag.Key] = tag.Value
	}
	return out, nil
}
