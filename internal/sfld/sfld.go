package sfld

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// Separator joins the individual fields of a note's flds column.
const Separator = "\x1f"

// markerPrefix precedes the sort field inside the first field of notes produced
// by some deck generators, e.g. `<span class="x">苹果` followed by Separator.
const markerPrefix = ">"

// Join builds a raw flds value from individual fields.
func Join(fields ...string) string {
	return strings.Join(fields, Separator)
}

// RawMarker returns the byte sequence that marks value as the tail of the
// first field inside a raw flds string.
func RawMarker(value string) string {
	return markerPrefix + value + Separator
}

// FromFields derives a sort field from the raw flds string: the first field,
// with everything up to and including the last '>' stripped.
func FromFields(flds string) string {
	first, _, _ := strings.Cut(flds, Separator)
	if i := strings.LastIndex(first, markerPrefix); i >= 0 {
		return first[i+len(markerPrefix):]
	}
	return first
}

// Checksum computes the csum column for a sort field: the first 8 hex digits
// of its SHA-1, read as an integer.
func Checksum(sortField string) int64 {
	sum := sha1.Sum([]byte(sortField))
	n, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return n
}
