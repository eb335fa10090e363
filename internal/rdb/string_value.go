package rdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	lzf "github.com/zhuyie/golzf"

	"kvredis/internal/keyspace"
)

// writeStringValue picks the smallest encoding ClassifyValue says the
// string qualifies for and writes it.
func writeStringValue(w io.Writer, s string, threshold int) error {
	switch keyspace.ClassifyValue(s, threshold) {
	case keyspace.TagInt8:
		n, _ := strconv.ParseInt(s, 10, 64)
		_, err := w.Write([]byte{lenSpecial<<6 | encInt8, byte(int8(n))})
		return err
	case keyspace.TagInt16:
		n, _ := strconv.ParseInt(s, 10, 64)
		buf := make([]byte, 3)
		buf[0] = lenSpecial<<6 | encInt16
		binary.LittleEndian.PutUint16(buf[1:], uint16(int16(n)))
		_, err := w.Write(buf)
		return err
	case keyspace.TagInt32:
		n, _ := strconv.ParseInt(s, 10, 64)
		buf := make([]byte, 5)
		buf[0] = lenSpecial<<6 | encInt32
		binary.LittleEndian.PutUint32(buf[1:], uint32(int32(n)))
		_, err := w.Write(buf)
		return err
	case keyspace.TagLZF:
		return writeLZFString(w, s)
	default:
		if err := writeLength(w, uint64(len(s))); err != nil {
			return err
		}
		_, err := w.Write([]byte(s))
		return err
	}
}

func writeLZFString(w io.Writer, s string) error {
	src := []byte(s)
	dst := make([]byte, len(src))
	n, err := lzf.Compress(src, dst)
	if err != nil || n == 0 || n >= len(src) {
		// Not compressible (or the library declined): fall back to
		// plain encoding rather than writing a broken LZF frame.
		if err := writeLength(w, uint64(len(src))); err != nil {
			return err
		}
		_, err := w.Write(src)
		return err
	}

	first := byte(lenSpecial<<6 | encLZF)
	if _, err := w.Write([]byte{first}); err != nil {
		return err
	}
	if err := writeLength(w, uint64(n)); err != nil {
		return err
	}
	if err := writeLength(w, uint64(len(src))); err != nil {
		return err
	}
	_, err = w.Write(dst[:n])
	return err
}

// readStringValue reads one string value in whatever encoding it was
// written with.
func readStringValue(r io.Reader) (string, error) {
	length, special, err := readLength(r)
	if err != nil {
		return "", err
	}
	if !special {
		if length == 0 {
			return "", nil
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		return string(buf), nil
	}

	switch length {
	case encInt8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int8(b[0])), 10), nil
	case encInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(b[:]))), 10), nil
	case encInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b[:]))), 10), nil
	case encLZF:
		return readLZFString(r)
	default:
		return "", fmt.Errorf("%w: unsupported string encoding %d", ErrMalformed, length)
	}
}

func readLZFString(r io.Reader) (string, error) {
	compressedLen, _, err := readLength(r)
	if err != nil {
		return "", fmt.Errorf("rdb: lzf compressed length: %w", err)
	}
	originalLen, _, err := readLength(r)
	if err != nil {
		return "", fmt.Errorf("rdb: lzf original length: %w", err)
	}
	src := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, src); err != nil {
		return "", fmt.Errorf("rdb: lzf payload: %w", err)
	}
	dst := make([]byte, originalLen)
	n, err := lzf.Decompress(src, dst)
	if err != nil {
		return "", fmt.Errorf("rdb: lzf decompress: %w", err)
	}
	if uint64(n) != originalLen {
		return "", fmt.Errorf("%w: lzf decompressed length mismatch", ErrMalformed)
	}
	return string(dst), nil
}
