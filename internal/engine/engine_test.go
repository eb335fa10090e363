package engine

import (
	"context"
	"testing"

	"kvredis/internal/config"
	"kvredis/internal/keyspace"
	"kvredis/internal/protocol"
	"kvredis/internal/replication"
)

func newTestEngine() *Engine {
	ks := keyspace.New()
	repl := replication.NewCoordinator(ks)
	cfg := config.DefaultConfig()
	return New(ks, repl, cfg)
}

func dispatch(e *Engine, args ...string) (protocol.Frame, []byte) {
	return e.Dispatch(context.Background(), &ClientConn{}, args)
}

func TestPingWithoutArgument(t *testing.T) {
	e := newTestEngine()
	reply, _ := dispatch(e, "PING")
	if reply.Type != protocol.TypeSimpleString || reply.Str != "PONG" {
		t.Fatalf("reply = %+v, want +PONG", reply)
	}
}

func TestSetGetRoundTripAndPropagation(t *testing.T) {
	e := newTestEngine()

	reply, wire := dispatch(e, "SET", "k", "v")
	if reply.Type != protocol.TypeSimpleString || reply.Str != "OK" {
		t.Fatalf("SET reply = %+v, want +OK", reply)
	}
	if wire == nil {
		t.Fatal("SET did not produce propagation wire bytes")
	}
	if e.Repl.Offset() != uint64(len(wire)) {
		t.Fatalf("Offset() = %d, want %d", e.Repl.Offset(), len(wire))
	}

	reply, _ = dispatch(e, "GET", "k")
	if reply.Type != protocol.TypeBulkString || string(reply.Bulk) != "v" {
		t.Fatalf("GET reply = %+v, want $v", reply)
	}
}

func TestGetMissingKeyIsNullBulkString(t *testing.T) {
	e := newTestEngine()
	reply, _ := dispatch(e, "GET", "missing")
	if reply.Type != protocol.TypeNull || reply.NullArray {
		t.Fatalf("reply = %+v, want a null bulk string", reply)
	}
}

func TestNonSetCommandsDoNotPropagate(t *testing.T) {
	e := newTestEngine()
	if _, wire := dispatch(e, "XADD", "s", "*", "f", "v"); wire != nil {
		t.Fatal("XADD propagated wire bytes, want none")
	}
	if _, wire := dispatch(e, "GET", "k"); wire != nil {
		t.Fatal("GET propagated wire bytes, want none")
	}
	if e.Repl.Offset() != 0 {
		t.Fatalf("Offset() = %d, want 0 after only non-SET commands", e.Repl.Offset())
	}
}

func TestXAddThenXRange(t *testing.T) {
	e := newTestEngine()
	addReply, _ := dispatch(e, "XADD", "s", "1-1", "field", "value")
	if addReply.Type != protocol.TypeBulkString || string(addReply.Bulk) != "1-1" {
		t.Fatalf("XADD reply = %+v, want $1-1", addReply)
	}

	rangeReply, _ := dispatch(e, "XRANGE", "s", "-", "+")
	if rangeReply.Type != protocol.TypeArray || len(rangeReply.Array) != 1 {
		t.Fatalf("XRANGE reply = %+v, want a 1-element array", rangeReply)
	}
}

func TestXReadNonBlockingWithDollarReturnsEmpty(t *testing.T) {
	e := newTestEngine()
	dispatch(e, "XADD", "s", "1-1", "field", "value")

	reply, _ := dispatch(e, "XREAD", "STREAMS", "s", "$")
	if reply.Type != protocol.TypeNull || !reply.NullArray {
		t.Fatalf("reply = %+v, want a null array (nothing newer than the last entry)", reply)
	}
}

func TestWaitWithNoReplicasReturnsZeroImmediately(t *testing.T) {
	e := newTestEngine()
	reply, _ := dispatch(e, "WAIT", "0", "100")
	if reply.Type != protocol.TypeInteger || reply.Int != 0 {
		t.Fatalf("reply = %+v, want :0", reply)
	}
}

func TestUnknownCommandIsError(t *testing.T) {
	e := newTestEngine()
	reply, _ := dispatch(e, "BOGUS")
	if reply.Type != protocol.TypeError {
		t.Fatalf("reply = %+v, want an error", reply)
	}
}

func TestReplConfAckProducesNoReply(t *testing.T) {
	e := newTestEngine()
	reply, _ := dispatch(e, "REPLCONF", "ACK", "0")
	if reply.Type != protocol.TypeNoReply {
		t.Fatalf("reply.Type = %v, want TypeNoReply", reply.Type)
	}
}
