package cmn

import (
	"fmt"
	"strings"
	"time"
)

// HTTPTimeFormat is RFC 1123 with a literal GMT zone, the wire format for
// Date/Last-Modified/conditional-header timestamps (spec §6).
const HTTPTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatHTTPTime renders t for a response header.
func FormatHTTPTime(t time.Time) string {
	return t.UTC().Format(HTTPTimeFormat)
}

// ParseHTTPTime parses a Date/x-ms-date/conditional-header value. Real
// clients occasionally send RFC1123 without forcing GMT casing or RFC3339;
// both are accepted to be forgiving of SDK variance, mirroring
// original_source's permissive timestamp parsing.
func ParseHTTPTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(HTTPTimeFormat, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC1123, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// snapshotTimeFormat is the exact 7-fractional-digit snapshot id format
// (spec §3, §4.8 "Create snapshot").
const snapshotTimeFormat = "2006-01-02T15:04:05.0000000Z"

// FormatSnapshotTime renders t as a snapshot id.
func FormatSnapshotTime(t time.Time) string {
	return t.UTC().Format(snapshotTimeFormat)
}

// ParseSnapshotTime parses a snapshot id back into a time.Time.
func ParseSnapshotTime(s string) (time.Time, error) {
	return time.Parse(snapshotTimeFormat, s)
}

// ParseSASTime parses a SAS `st`/`se` value, which may be full RFC3339,
// date-only, or the `YYYY-MM-DDTHH:MM:SSZ` shape spec §6 calls out
// explicitly for SAS datetimes.
func ParseSASTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
	}
	var lastErr error
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
