package replication

import (
	"bytes"
	"testing"
	"time"

	"kvredis/internal/keyspace"
	"kvredis/internal/protocol"
)

func TestTailFrameParsesArgsAndByteCount(t *testing.T) {
	wire := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	fr := protocol.NewFrameReader(bytes.NewReader([]byte(wire)))

	frame, n, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if n != len(wire) {
		t.Fatalf("n = %d, want %d", n, len(wire))
	}
	args, err := protocol.ArrayStrings(frame)
	if err != nil {
		t.Fatalf("ArrayStrings: %v", err)
	}
	want := []string{"SET", "k", "v"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestTailFrameRejectsNonArray(t *testing.T) {
	fr := protocol.NewFrameReader(bytes.NewReader([]byte("+OK\r\n")))
	frame, _, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if _, err := protocol.ArrayStrings(frame); err == nil {
		t.Fatal("expected an error for a non-array frame")
	}
}

func TestParseFullResync(t *testing.T) {
	replID, offset, err := parseFullResync("FULLRESYNC abc123 456")
	if err != nil {
		t.Fatalf("parseFullResync: %v", err)
	}
	if replID != "abc123" || offset != 456 {
		t.Fatalf("parseFullResync() = (%q, %d), want (%q, %d)", replID, offset, "abc123", 456)
	}
}

func TestParseFullResyncRejectsBadLine(t *testing.T) {
	if _, _, err := parseFullResync("+OK"); err == nil {
		t.Fatal("expected an error for a non-FULLRESYNC line")
	}
}

func TestApplyReplaysOnlySet(t *testing.T) {
	ks := keyspace.New()
	rc := &ReplicaConn{KS: ks, coord: NewCoordinator(ks)}

	rc.apply([]string{"SET", "k", "v"})
	v, ok := ks.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get(k) = (%q, %v), want (\"v\", true)", v, ok)
	}

	rc.apply([]string{"XADD", "s", "*", "f", "v"})
	if _, ok := ks.Get("s"); ok {
		t.Fatal("apply replayed a non-SET command")
	}
}

func TestApplySetWithPXExpires(t *testing.T) {
	ks := keyspace.New()
	rc := &ReplicaConn{KS: ks, coord: NewCoordinator(ks)}

	rc.apply([]string{"SET", "k", "v", "PX", "1"})
	time.Sleep(10 * time.Millisecond)
	if _, ok := ks.Get("k"); ok {
		t.Fatal("key with a 1ms PX should have expired")
	}
}

func TestAdvanceAccumulatesOffset(t *testing.T) {
	ks := keyspace.New()
	rc := &ReplicaConn{coord: NewCoordinator(ks)}
	rc.advance(5)
	rc.advance(3)
	if rc.Offset() != 8 {
		t.Fatalf("Offset() = %d, want 8", rc.Offset())
	}
}
