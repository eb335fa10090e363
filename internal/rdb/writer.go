package rdb

import (
	"encoding/binary"
	"hash/crc64"
	"io"

	"kvredis/internal/keyspace"
)

var crcTable = crc64.MakeTable(crc64.ECMA)

// Writer serializes a key-space snapshot in RDB form.
type Writer struct {
	CompressionThreshold int
}

// NewWriter returns a Writer using the key-space's default compression
// threshold.
func NewWriter() *Writer {
	return &Writer{CompressionThreshold: keyspace.DefaultCompressionThreshold}
}

// WriteTo encodes strs and streams as one RDB document to w, returning
// the number of bytes written.
func (wr *Writer) WriteTo(w io.Writer, strs []keyspace.StringSnapshot, streams []keyspace.StreamSnapshot) (int64, error) {
	h := crc64.New(crcTable)
	mw := io.MultiWriter(w, h)
	counter := &countingWriter{w: mw}

	if _, err := counter.Write([]byte(Magic + Version)); err != nil {
		return counter.n, err
	}
	if err := writeOpcode(counter, OpSelectDB); err != nil {
		return counter.n, err
	}
	if err := writeLength(counter, 0); err != nil {
		return counter.n, err
	}

	for _, s := range strs {
		if s.Expiry != nil {
			if err := writeOpcode(counter, OpExpireTimeMS); err != nil {
				return counter.n, err
			}
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(s.Expiry.UnixMilli()))
			if _, err := counter.Write(buf[:]); err != nil {
				return counter.n, err
			}
		}
		if err := writeOpcode(counter, TypeString); err != nil {
			return counter.n, err
		}
		if err := writeStringValue(counter, s.Key, wr.CompressionThreshold); err != nil {
			return counter.n, err
		}
		if err := writeStringValue(counter, s.Value, wr.CompressionThreshold); err != nil {
			return counter.n, err
		}
	}

	for _, s := range streams {
		if err := writeOpcode(counter, TypeStream); err != nil {
			return counter.n, err
		}
		if err := writeStringValue(counter, s.Key, wr.CompressionThreshold); err != nil {
			return counter.n, err
		}
		if err := writeStream(counter, s.Entries, wr.CompressionThreshold); err != nil {
			return counter.n, err
		}
	}

	if err := writeOpcode(counter, OpEOF); err != nil {
		return counter.n, err
	}

	sum := h.Sum64()
	var sumBuf [8]byte
	binary.LittleEndian.PutUint64(sumBuf[:], sum)
	n, err := w.Write(sumBuf[:])
	counter.n += int64(n)
	return counter.n, err
}

func writeStream(w io.Writer, entries []keyspace.StreamEntry, threshold int) error {
	if err := writeLength(w, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		var idBuf [16]byte
		binary.BigEndian.PutUint64(idBuf[0:8], e.ID.Millis)
		binary.BigEndian.PutUint64(idBuf[8:16], e.ID.Seq)
		if _, err := w.Write(idBuf[:]); err != nil {
			return err
		}
		if err := writeLength(w, uint64(len(e.Fields))); err != nil {
			return err
		}
		for _, fv := range e.Fields {
			if err := writeStringValue(w, fv.Field, threshold); err != nil {
				return err
			}
			if err := writeStringValue(w, fv.Value, threshold); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeOpcode(w io.Writer, op byte) error {
	_, err := w.Write([]byte{op})
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
