package keyspace

import "errors"

// ErrWrongType is returned when a key already holds an entry of a
// different kind than the operation expects (string vs stream).
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrInvalidStreamID is returned for a malformed stream ID specification.
var ErrInvalidStreamID = errors.New("ERR Invalid stream ID specified as stream command argument")

// errStreamZero and errStreamTop cover the two XADD monotonicity failure
// messages named in the spec: the reserved 0-0 ID, and any ID that does
// not exceed the stream's current top item.
var (
	errStreamZero = errors.New("ERR The ID specified in XADD must be greater than 0-0")
	errStreamTop  = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
)
