package imagecache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Image metadata arrives with its updated_at field either still encoded as a
// string or already parsed into a time value, depending on the caller.
// Timestamp covers both shapes; UTC is the single normalization point used
// by lookups and entry creation alike, so stored and presented timestamps
// always compare in the same frame.
type Timestamp interface {
	UTC() (time.Time, error)
}

// RawTimestamp holds a timestamp still encoded as a string.
type RawTimestamp string

// NativeTimestamp wraps an already-parsed time value, zoned or not.
type NativeTimestamp time.Time

// Accepted string layouts, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UTC parses the string and normalizes it to UTC. Strings without a zone
// designator are taken as UTC.
func (r RawTimestamp) UTC() (time.Time, error) {
	raw := strings.TrimSpace(string(r))
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// UTC converts the wrapped time to UTC.
func (n NativeTimestamp) UTC() (time.Time, error) {
	t := time.Time(n)
	if t.IsZero() {
		return time.Time{}, errors.New("zero timestamp")
	}
	return t.UTC(), nil
}
