package util

import (
	"fmt"
	"strconv"
	"time"
)

// DisplayLayout is the wall-clock format served to clients.
const DisplayLayout = "2006-01-02 15:04:05"

// Placeholder is rendered instead of a missing value or time.
const Placeholder = "-"

// FixedZone returns a zone at a fixed UTC offset, named like "UTC+3".
func FixedZone(offset time.Duration) *time.Location {
	secs := int(offset / time.Second)
	name := "UTC"
	if secs != 0 {
		h := offset.Hours()
		name = fmt.Sprintf("UTC%+g", h)
	}
	return time.FixedZone(name, secs)
}

// FormatDisplay renders t in loc using DisplayLayout, or Placeholder for the zero time.
func FormatDisplay(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.In(loc).Format(DisplayLayout)
}

// ParseLocal parses a zone-less "YYYY-MM-DD HH:MM:SS" stamp as wall time in loc.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DisplayLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseUnixMillis parses a decimal millisecond epoch string into UTC time.
func ParseUnixMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// UnixAuto converts an epoch that may be in seconds or milliseconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
