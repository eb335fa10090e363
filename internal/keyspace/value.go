package keyspace

import "strconv"

// ValueTag names the RDB-level encoding a string value would take if
// snapshotted right now. It controls on-wire encoding only; string
// equality across tags is decoded-string equality (see the rdb
// package's Writer, which recomputes the tag at snapshot time rather
// than storing it alongside the live value).
type ValueTag int

const (
	TagInt8 ValueTag = iota
	TagInt16
	TagInt32
	TagPlain
	TagLZF
)

// DefaultCompressionThreshold is the byte length at or above which a
// plain string is LZF-compressed on snapshot, matching the spec's default.
const DefaultCompressionThreshold = 150

// ClassifyValue picks the smallest integer encoding the string parses as
// exactly, falling back to plain or LZF by length against threshold.
func ClassifyValue(s string, threshold int) ValueTag {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		switch {
		case n >= -128 && n <= 127:
			return TagInt8
		case n >= -32768 && n <= 32767:
			return TagInt16
		case n >= -2147483648 && n <= 2147483647:
			return TagInt32
		}
	}
	if len(s) >= threshold {
		return TagLZF
	}
	return TagPlain
}
