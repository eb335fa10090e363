package rdb

import (
	"fmt"
	"io"
	"strconv"

	"kvredis/internal/protocol"
)

// EncodeReplicationFrame wraps an RDB payload the way PSYNC sends it to
// a replica: "$<len>\r\n" followed by the raw bytes, with no trailing
// CRLF (unlike an ordinary RESP bulk string).
func EncodeReplicationFrame(payload []byte) []byte {
	header := fmt.Sprintf("$%d\r\n", len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// replicationFrameSource is the minimal reading surface
// ReadReplicationFrame needs: a byte at a time for the "$<len>\r\n"
// header, then a raw read for the payload. protocol.FrameReader
// satisfies this without losing any bytes it has already buffered but
// not yet handed to a frame.
type replicationFrameSource interface {
	io.Reader
	io.ByteReader
}

// ReadReplicationFrame reads a PSYNC-framed RDB payload: a "$<len>\r\n"
// header read byte-by-byte, then exactly len raw bytes with no
// trailing CRLF to consume.
func ReadReplicationFrame(r replicationFrameSource) ([]byte, error) {
	line, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '$' {
		return nil, protocol.ErrInvalidInput
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, protocol.ErrInvalidInput
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readHeaderLine(r io.ByteReader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			return string(line), nil
		}
		line = append(line, b)
	}
}
