package protocol

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		SimpleString("OK"),
		Error("ERR bad command"),
		Integer(42),
		Integer(-7),
		BulkString([]byte("hello")),
		BulkString([]byte{}),
		NullBulkString(),
		NullArray(),
		Array([]Frame{BulkString([]byte("SET")), BulkString([]byte("k")), BulkString([]byte("v"))}),
		Array(nil),
	}

	for _, want := range cases {
		encoded := Serialize(want)
		got, n, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", encoded, err)
		}
		if n != len(encoded) {
			t.Fatalf("Parse(%q) consumed %d, want %d", encoded, n, len(encoded))
		}
		if !framesEqual(got, want) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestParsePartialInputIsNeverSuccess(t *testing.T) {
	f := Array([]Frame{BulkString([]byte("SET")), BulkString([]byte("key")), BulkString([]byte("value"))})
	full := Serialize(f)

	for n := 0; n < len(full); n++ {
		_, _, err := Parse(full[:n])
		if err != ErrIncomplete {
			t.Fatalf("Parse(first %d bytes) = %v, want ErrIncomplete", n, err)
		}
	}
}

func TestParseBinarySafeBulkString(t *testing.T) {
	payload := []byte{0x00, 0xFF, '\r', '\n', 0x01}
	encoded := Serialize(BulkString(payload))

	got, n, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("consumed %d, want %d", n, len(encoded))
	}
	if !bytes.Equal(got.Bulk, payload) {
		t.Fatalf("got %v, want %v", got.Bulk, payload)
	}
}

func TestParseRejectsBadArrayLength(t *testing.T) {
	_, _, err := Parse([]byte("*abc\r\n"))
	if err == nil {
		t.Fatalf("expected error for malformed array length")
	}
}

func TestParseUnknownSymbol(t *testing.T) {
	_, _, err := Parse([]byte("!nope\r\n"))
	if err == nil {
		t.Fatalf("expected ErrUnknownSymbol")
	}
}

func TestSerializeRaw(t *testing.T) {
	payload := []byte("+FULLRESYNC abc 0\r\n")
	got := Serialize(Raw(payload))
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func framesEqual(a, b Frame) bool {
	if a.Type != b.Type || a.Str != b.Str || a.Int != b.Int || a.NullArray != b.NullArray {
		return false
	}
	if !bytes.Equal(a.Bulk, b.Bulk) {
		return false
	}
	if len(a.Array) != len(b.Array) {
		return false
	}
	for i := range a.Array {
		if !framesEqual(a.Array[i], b.Array[i]) {
			return false
		}
	}
	return true
}
