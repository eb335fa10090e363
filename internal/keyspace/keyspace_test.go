package keyspace

import (
	"context"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	ks := New()
	if err := ks.Set("a", "1", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := ks.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get() = %q, %v; want 1, true", v, ok)
	}
}

func TestGetExpiredKeyIsRemoved(t *testing.T) {
	ks := New()
	ttl := -time.Second
	if err := ks.Set("a", "1", &ttl); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := ks.Get("a"); ok {
		t.Fatal("Get() returned a value for an already-expired key")
	}
	if got := ks.Type("a"); got != "none" {
		t.Fatalf("Type() after expiry = %q, want none", got)
	}
}

func TestSetAgainstStreamKeyIsWrongType(t *testing.T) {
	ks := New()
	if _, err := ks.XAdd("s", "*", []FieldValue{{Field: "f", Value: "v"}}); err != nil {
		t.Fatalf("XAdd: %v", err)
	}
	if err := ks.Set("s", "x", nil); err != ErrWrongType {
		t.Fatalf("Set() against stream key = %v, want ErrWrongType", err)
	}
}

func TestTypeReportsKind(t *testing.T) {
	ks := New()
	ks.Set("str", "v", nil)
	ks.XAdd("strm", "*", []FieldValue{{Field: "f", Value: "v"}})

	if got := ks.Type("str"); got != "string" {
		t.Fatalf("Type(str) = %q, want string", got)
	}
	if got := ks.Type("strm"); got != "stream" {
		t.Fatalf("Type(strm) = %q, want stream", got)
	}
	if got := ks.Type("missing"); got != "none" {
		t.Fatalf("Type(missing) = %q, want none", got)
	}
}

func TestXAddRejectsNonIncreasingID(t *testing.T) {
	ks := New()
	if _, err := ks.XAdd("s", "5-5", nil); err != nil {
		t.Fatalf("XAdd: %v", err)
	}
	if _, err := ks.XAdd("s", "5-5", nil); err == nil {
		t.Fatal("XAdd() with a duplicate ID should fail")
	}
	if _, err := ks.XAdd("s", "0-0", nil); err == nil {
		t.Fatal("XAdd() with 0-0 should fail")
	}
}

func TestXRangeInclusiveBounds(t *testing.T) {
	ks := New()
	ks.XAdd("s", "1-1", []FieldValue{{Field: "a", Value: "1"}})
	ks.XAdd("s", "2-1", []FieldValue{{Field: "a", Value: "2"}})
	ks.XAdd("s", "3-1", []FieldValue{{Field: "a", Value: "3"}})

	got, err := ks.XRange("s", StreamID{Millis: 1, Seq: 1}, StreamID{Millis: 2, Seq: 1})
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("XRange() returned %d entries, want 2", len(got))
	}
}

func TestXReadNonBlockingReturnsEntriesAfterID(t *testing.T) {
	ks := New()
	ks.XAdd("s", "1-1", nil)
	ks.XAdd("s", "2-1", nil)

	got, err := ks.XRead(context.Background(), []XReadQuery{{Key: "s", After: StreamID{Millis: 1, Seq: 1}}}, nil)
	if err != nil {
		t.Fatalf("XRead: %v", err)
	}
	entries := got["s"]
	if len(entries) != 1 || entries[0].ID != (StreamID{Millis: 2, Seq: 1}) {
		t.Fatalf("XRead() = %v, want one entry at 2-1", entries)
	}
}

func TestXReadBlockingWakesOnAppend(t *testing.T) {
	ks := New()
	ks.XAdd("s", "1-1", nil)

	block := 2 * time.Second
	done := make(chan map[string][]StreamEntry, 1)
	go func() {
		got, err := ks.XRead(context.Background(), []XReadQuery{{Key: "s", After: StreamID{Millis: 1, Seq: 1}}}, &block)
		if err != nil {
			t.Errorf("XRead: %v", err)
		}
		done <- got
	}()

	// Give the blocking call time to subscribe before appending.
	time.Sleep(50 * time.Millisecond)
	if _, err := ks.XAdd("s", "2-1", []FieldValue{{Field: "a", Value: "b"}}); err != nil {
		t.Fatalf("XAdd: %v", err)
	}

	select {
	case got := <-done:
		entries := got["s"]
		if len(entries) != 1 || entries[0].ID != (StreamID{Millis: 2, Seq: 1}) {
			t.Fatalf("blocked XRead() = %v, want one entry at 2-1", entries)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("blocked XRead() never woke up")
	}
}

func TestXReadBlockingTimesOut(t *testing.T) {
	ks := New()
	ks.XAdd("s", "1-1", nil)

	block := 100 * time.Millisecond
	got, err := ks.XRead(context.Background(), []XReadQuery{{Key: "s", After: StreamID{Millis: 1, Seq: 1}}}, &block)
	if err != nil {
		t.Fatalf("XRead: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("XRead() after timeout = %v, want empty", got)
	}
}

func TestDumpAndLoadStringRoundTrip(t *testing.T) {
	ks := New()
	ttl := time.Minute
	ks.Set("a", "1", &ttl)
	ks.Set("b", "plain", nil)

	strs, _ := ks.Dump()
	if len(strs) != 2 {
		t.Fatalf("Dump() returned %d string entries, want 2", len(strs))
	}

	loaded := New()
	for _, s := range strs {
		loaded.LoadString(s.Key, s.Value, s.Expiry)
	}
	if v, ok := loaded.Get("a"); !ok || v != "1" {
		t.Fatalf("loaded Get(a) = %q, %v; want 1, true", v, ok)
	}
	if v, ok := loaded.Get("b"); !ok || v != "plain" {
		t.Fatalf("loaded Get(b) = %q, %v; want plain, true", v, ok)
	}
}
