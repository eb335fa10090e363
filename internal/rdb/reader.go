package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"os"
	"time"

	"kvredis/internal/keyspace"
)

// Document is a fully decoded snapshot, ready to be installed into a
// keyspace.KeySpace.
type Document struct {
	Strings []keyspace.StringSnapshot
	Streams []StreamDoc
}

// StreamDoc is a decoded stream entry group, keyed separately from
// Strings since Stream objects need to be rebuilt via
// keyspace.NewStream + Append rather than installed as plain values.
type StreamDoc struct {
	Key     string
	Entries []keyspace.StreamEntry
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms) }

// Decode reads one RDB document from r, verifying the header and
// trailing checksum.
func Decode(r io.Reader) (*Document, error) {
	h := crc64.New(crcTable)
	tr := io.TeeReader(r, h)
	br := bufio.NewReader(tr)

	var magic [9]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("rdb: read header: %w", err)
	}
	if string(magic[:5]) != Magic {
		return nil, ErrBadMagic
	}

	doc := &Document{}

	for {
		op, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("rdb: read opcode: %w", err)
		}
		switch op {
		case OpAux:
			if _, err := readStringValue(br); err != nil {
				return nil, err
			}
			if _, err := readStringValue(br); err != nil {
				return nil, err
			}
		case OpResizeDB:
			if _, _, err := readLength(br); err != nil {
				return nil, err
			}
			if _, _, err := readLength(br); err != nil {
				return nil, err
			}
		case OpSelectDB:
			if _, _, err := readLength(br); err != nil {
				return nil, err
			}
		case OpExpireTimeMS, OpExpireTime:
			expiry, err := readExpiry(br, op)
			if err != nil {
				return nil, err
			}
			typ, err := br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("rdb: read value type: %w", err)
			}
			if err := readEntry(br, typ, doc, &expiry); err != nil {
				return nil, err
			}
		case OpEOF:
			// The checksum itself must not feed the running hash, so
			// capture the sum before reading it. The read still goes
			// through br (not the raw r) since br may already hold
			// buffered bytes past the opcode we just consumed.
			got := h.Sum64()
			var sumBuf [8]byte
			if _, err := io.ReadFull(br, sumBuf[:]); err != nil {
				return nil, fmt.Errorf("rdb: read checksum: %w", err)
			}
			want := binary.LittleEndian.Uint64(sumBuf[:])
			if want != 0 && got != want {
				return nil, ErrChecksum
			}
			return doc, nil
		default:
			if err := readEntry(br, op, doc, nil); err != nil {
				return nil, err
			}
		}
	}
}

func readExpiry(r io.ByteReader, op byte) (int64, error) {
	rr := byteReaderAsReader{r}
	if op == OpExpireTimeMS {
		var buf [8]byte
		if _, err := io.ReadFull(rr, buf[:]); err != nil {
			return 0, err
		}
		return int64(binary.LittleEndian.Uint64(buf[:])), nil
	}
	var buf [4]byte
	if _, err := io.ReadFull(rr, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint32(buf[:])) * 1000, nil
}

type byteReaderAsReader struct {
	r io.ByteReader
}

func (b byteReaderAsReader) Read(p []byte) (int, error) {
	for i := range p {
		c, err := b.r.ReadByte()
		if err != nil {
			return i, err
		}
		p[i] = c
	}
	return len(p), nil
}

func readEntry(r *bufio.Reader, typ byte, doc *Document, expiryMS *int64) error {
	switch typ {
	case TypeString:
		key, err := readStringValue(r)
		if err != nil {
			return err
		}
		val, err := readStringValue(r)
		if err != nil {
			return err
		}
		snap := keyspace.StringSnapshot{Key: key, Value: val}
		if expiryMS != nil {
			t := msToTime(*expiryMS)
			snap.Expiry = &t
		}
		doc.Strings = append(doc.Strings, snap)
		return nil
	case TypeStream:
		key, err := readStringValue(r)
		if err != nil {
			return err
		}
		entries, err := readStreamEntries(r)
		if err != nil {
			return err
		}
		doc.Streams = append(doc.Streams, StreamDoc{Key: key, Entries: entries})
		return nil
	default:
		return fmt.Errorf("%w: unsupported value type %d", ErrMalformed, typ)
	}
}

func readStreamEntries(r *bufio.Reader) ([]keyspace.StreamEntry, error) {
	count, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	entries := make([]keyspace.StreamEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var idBuf [16]byte
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return nil, err
		}
		id := keyspace.StreamID{
			Millis: binary.BigEndian.Uint64(idBuf[0:8]),
			Seq:    binary.BigEndian.Uint64(idBuf[8:16]),
		}
		fieldCount, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		fields := make([]keyspace.FieldValue, 0, fieldCount)
		for j := uint64(0); j < fieldCount; j++ {
			f, err := readStringValue(r)
			if err != nil {
				return nil, err
			}
			v, err := readStringValue(r)
			if err != nil {
				return nil, err
			}
			fields = append(fields, keyspace.FieldValue{Field: f, Value: v})
		}
		entries = append(entries, keyspace.StreamEntry{ID: id, Fields: fields})
	}
	return entries, nil
}

// LoadFile reads a snapshot file at path. A missing file is not an
// error: it returns (nil, nil), matching boot-time "no snapshot yet"
// semantics.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
