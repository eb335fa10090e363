package rdb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeLength writes n using the smallest of the 6-bit/14-bit/32-bit
// plain-length forms.
func writeLength(w io.Writer, n uint64) error {
	switch {
	case n < 1<<6:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n < 1<<14:
		b := []byte{len14Bit<<6 | byte(n>>8), byte(n)}
		_, err := w.Write(b)
		return err
	case n <= 1<<32-1:
		b := make([]byte, 5)
		b[0] = len32Bit
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		_, err := w.Write(b)
		return err
	default:
		b := make([]byte, 9)
		b[0] = len64Bit
		binary.LittleEndian.PutUint64(b[1:], n)
		_, err := w.Write(b)
		return err
	}
}

// readLength reads a length field. special is true when the first
// byte's top bits mark a special encoding rather than a plain length;
// in that case n carries the low-6-bit encoding tag (encInt8 etc.),
// not a length.
func readLength(r io.Reader) (n uint64, special bool, err error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[0:]); err != nil {
		return 0, false, err
	}
	b := first[0]

	switch b {
	case len32Bit:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, false, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), false, nil
	case len64Bit:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, false, err
		}
		return binary.LittleEndian.Uint64(buf[:]), false, nil
	}

	switch b >> 6 {
	case len6Bit:
		return uint64(b & 0x3F), false, nil
	case len14Bit:
		var next [1]byte
		if _, err := io.ReadFull(r, next[:]); err != nil {
			return 0, false, err
		}
		return uint64(b&0x3F)<<8 | uint64(next[0]), false, nil
	case lenSpecial:
		return uint64(b & 0x3F), true, nil
	default:
		return 0, false, fmt.Errorf("%w: unrecognized length marker 0x%02x", ErrMalformed, b)
	}
}
