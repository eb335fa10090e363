package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kvredis/internal/keyspace"
	"kvredis/internal/protocol"
)

func cmdXAdd(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 5 || len(args)%2 != 1 {
		return protocol.Error("ERR wrong number of arguments for 'xadd' command")
	}
	key, idSpec := args[1], args[2]

	fields := make([]keyspace.FieldValue, 0, (len(args)-3)/2)
	for i := 3; i+1 < len(args); i += 2 {
		fields = append(fields, keyspace.FieldValue{Field: args[i], Value: args[i+1]})
	}

	id, err := e.KS.XAdd(key, idSpec, fields)
	if err != nil {
		return protocol.Error(err.Error())
	}
	return protocol.BulkString([]byte(id.String()))
}

func cmdXRange(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 4 {
		return protocol.Error("ERR wrong number of arguments for 'xrange' command")
	}
	key := args[1]
	start, err := keyspace.ParseRangeBound(args[2])
	if err != nil {
		return protocol.Error(err.Error())
	}
	end, err := keyspace.ParseRangeBound(args[3])
	if err != nil {
		return protocol.Error(err.Error())
	}

	entries, err := e.KS.XRange(key, start, end)
	if err != nil {
		return protocol.Error(err.Error())
	}
	return encodeStreamEntries(entries)
}

func encodeStreamEntries(entries []keyspace.StreamEntry) protocol.Frame {
	out := make([]protocol.Frame, 0, len(entries))
	for _, e := range entries {
		fieldFrames := make([]protocol.Frame, 0, len(e.Fields)*2)
		for _, fv := range e.Fields {
			fieldFrames = append(fieldFrames, protocol.BulkString([]byte(fv.Field)), protocol.BulkString([]byte(fv.Value)))
		}
		out = append(out, protocol.Array([]protocol.Frame{
			protocol.BulkString([]byte(e.ID.String())),
			protocol.Array(fieldFrames),
		}))
	}
	return protocol.Array(out)
}

// cmdXRead parses "XREAD [BLOCK ms] STREAMS key [key...] id [id...]" and
// resolves each id (including "$") before calling into the key-space.
func cmdXRead(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	i := 1
	var block *time.Duration
	if i < len(args) && strings.EqualFold(args[i], "BLOCK") {
		if i+1 >= len(args) {
			return protocol.Error("ERR syntax error")
		}
		ms, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil || ms < 0 {
			return protocol.Error("ERR timeout is not an integer or out of range")
		}
		d := time.Duration(ms) * time.Millisecond
		block = &d
		i += 2
	}
	if i >= len(args) || !strings.EqualFold(args[i], "STREAMS") {
		return protocol.Error("ERR syntax error")
	}
	i++
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return protocol.Error("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]
	ids := rest[n:]

	queries := make([]keyspace.XReadQuery, n)
	for i, k := range keys {
		if ids[i] == "$" {
			queries[i] = keyspace.XReadQuery{Key: k, ResolveLast: true}
			continue
		}
		id, err := keyspace.ParseStreamID(ids[i])
		if err != nil {
			return protocol.Error(err.Error())
		}
		queries[i] = keyspace.XReadQuery{Key: k, After: id}
	}

	results, err := e.KS.XRead(ctx, queries, block)
	if err != nil {
		return protocol.Error(err.Error())
	}
	if len(results) == 0 {
		return protocol.NullArray()
	}

	out := make([]protocol.Frame, 0, len(results))
	for _, k := range keys {
		entries, ok := results[k]
		if !ok {
			continue
		}
		out = append(out, protocol.Array([]protocol.Frame{
			protocol.BulkString([]byte(k)),
			encodeStreamEntries(entries),
		}))
	}
	return protocol.Array(out)
}
