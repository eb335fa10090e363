package replication

import (
	"bytes"
	"testing"
	"time"

	"kvredis/internal/keyspace"
	"kvredis/internal/rdb"
)

func TestGenerateReplIDIsUniqueAndHexLike(t *testing.T) {
	a := generateReplID()
	b := generateReplID()
	if a == b {
		t.Fatal("generateReplID produced the same ID twice")
	}
	if len(a) != 40 {
		t.Fatalf("len(a) = %d, want 40", len(a))
	}
}

func TestPropagateAdvancesOffsetByWireLength(t *testing.T) {
	c := NewCoordinator(keyspace.New())
	if c.Offset() != 0 {
		t.Fatalf("initial Offset() = %d, want 0", c.Offset())
	}
	c.Propagate([]byte("*1\r\n$4\r\nPING\r\n"))
	if got, want := c.Offset(), uint64(len("*1\r\n$4\r\nPING\r\n")); got != want {
		t.Fatalf("Offset() = %d, want %d", got, want)
	}
	c.Propagate([]byte("more"))
	if got, want := c.Offset(), uint64(len("*1\r\n$4\r\nPING\r\n")+4); got != want {
		t.Fatalf("Offset() = %d, want %d", got, want)
	}
}

func TestWaitReturnsImmediatelyWithNoReplicas(t *testing.T) {
	c := NewCoordinator(keyspace.New())
	start := time.Now()
	n := c.Wait(1, 200*time.Millisecond)
	if n != 0 {
		t.Fatalf("Wait() = %d, want 0", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Wait() took %v, want it to return immediately with no replicas", elapsed)
	}
}

func TestSnapshotRoundTripsThroughRDB(t *testing.T) {
	ks := keyspace.New()
	ks.Set("k", "v", nil)
	c := NewCoordinator(ks)

	snap := c.Snapshot()
	if len(snap) == 0 {
		t.Fatal("Snapshot() returned no bytes")
	}
	doc, err := rdb.Decode(bytes.NewReader(snap))
	if err != nil {
		t.Fatalf("Decode(Snapshot()): %v", err)
	}
	if len(doc.Strings) != 1 || doc.Strings[0].Key != "k" || doc.Strings[0].Value != "v" {
		t.Fatalf("decoded strings = %+v, want [k=v]", doc.Strings)
	}
}
