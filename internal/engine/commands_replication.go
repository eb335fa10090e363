package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kvredis/internal/protocol"
	"kvredis/internal/rdb"
)

func cmdReplConf(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 2 {
		return protocol.Error("ERR wrong number of arguments for 'replconf' command")
	}
	sub := strings.ToUpper(args[1])
	switch sub {
	case "LISTENING-PORT":
		if len(args) >= 3 {
			if p, err := strconv.Atoi(args[2]); err == nil {
				c.ListeningPort = p
			}
		}
		return protocol.SimpleString("OK")
	case "CAPA":
		return protocol.SimpleString("OK")
	case "GETACK":
		// The server never issues GETACK to a connection it treats as
		// a client, and only the replica side answers GETACK (on its
		// master link); a GETACK arriving here gets no reply.
		return protocol.NoReply()
	case "ACK":
		if len(args) >= 3 && c.Replica != nil {
			if off, err := strconv.ParseUint(args[2], 10, 64); err == nil {
				c.Replica.Ack(off)
			}
		}
		return protocol.NoReply() // REPLCONF ACK never gets a reply
	default:
		return protocol.SimpleString("OK")
	}
}

// cmdPSync marks the connection as a replica and returns the
// FULLRESYNC line; the caller (the server's connection loop) is
// responsible for following up with the framed RDB payload, since that
// framing bypasses the normal RESP reply path. The trailing offset is
// always the literal 0: the snapshot that follows is the replica's
// starting point, and only bytes propagated after this reply count
// toward its offset.
func cmdPSync(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	c.IsReplica = true
	return protocol.SimpleString("FULLRESYNC " + e.Repl.ReplID + " 0")
}

// PSyncSnapshotFrame returns the framed RDB payload to send immediately
// after the FULLRESYNC reply. It does not register c's replica record;
// the server's connection loop does that before sending the frame.
func (e *Engine) PSyncSnapshotFrame(c *ClientConn) []byte {
	return rdb.EncodeReplicationFrame(e.Repl.Snapshot())
}

func cmdWait(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 3 {
		return protocol.Error("ERR wrong number of arguments for 'wait' command")
	}
	numReplicas, err1 := strconv.Atoi(args[1])
	timeoutMS, err2 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		return protocol.Error("ERR value is not an integer or out of range")
	}
	n := e.Repl.Wait(numReplicas, time.Duration(timeoutMS)*time.Millisecond)
	return protocol.Integer(int64(n))
}
