package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kvredis/internal/protocol"
)

func cmdPing(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) > 1 {
		return protocol.BulkString([]byte(args[1]))
	}
	return protocol.SimpleString("PONG")
}

func cmdEcho(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 2 {
		return protocol.Error("ERR wrong number of arguments for 'echo' command")
	}
	return protocol.BulkString([]byte(args[1]))
}

func cmdSet(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 3 {
		return protocol.Error("ERR wrong number of arguments for 'set' command")
	}
	key, value := args[1], args[2]

	var ttl *time.Duration
	for i := 3; i < len(args); i++ {
		if strings.EqualFold(args[i], "PX") && i+1 < len(args) {
			ms, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil || ms <= 0 {
				return protocol.Error("ERR invalid expire time in 'set' command")
			}
			d := time.Duration(ms) * time.Millisecond
			ttl = &d
			i++
		}
	}

	if err := e.KS.Set(key, value, ttl); err != nil {
		return protocol.Error(err.Error())
	}
	return protocol.SimpleString("OK")
}

func cmdGet(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 2 {
		return protocol.Error("ERR wrong number of arguments for 'get' command")
	}
	v, ok := e.KS.Get(args[1])
	if !ok {
		return protocol.NullBulkString()
	}
	return protocol.BulkString([]byte(v))
}

func cmdType(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 2 {
		return protocol.Error("ERR wrong number of arguments for 'type' command")
	}
	return protocol.SimpleString(e.KS.Type(args[1]))
}

func cmdKeys(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	pattern := "*"
	if len(args) >= 2 {
		pattern = args[1]
	}
	keys := e.KS.Keys(pattern)
	return protocol.ArrayOfBulkStrings(keys...)
}

func cmdConfig(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	if len(args) < 2 || !strings.EqualFold(args[1], "GET") {
		return protocol.Error("ERR unknown CONFIG subcommand")
	}
	if len(args) < 3 {
		return protocol.Error("ERR wrong number of arguments for 'config|get' command")
	}
	var out []protocol.Frame
	for _, name := range args[2:] {
		switch strings.ToLower(name) {
		case "dir":
			out = append(out, protocol.BulkString([]byte("dir")), protocol.BulkString([]byte(e.Cfg.Dir)))
		case "dbfilename":
			out = append(out, protocol.BulkString([]byte("dbfilename")), protocol.BulkString([]byte(e.Cfg.DBFilename)))
		}
	}
	return protocol.Array(out)
}

func cmdInfo(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame {
	var b strings.Builder
	b.WriteString("# Replication\r\n")
	if e.Repl.IsReplica {
		b.WriteString("role:slave\r\n")
		fmt.Fprintf(&b, "master_host:%s\r\n", e.Repl.MasterHost)
		fmt.Fprintf(&b, "master_port:%d\r\n", e.Repl.MasterPort)
	} else {
		b.WriteString("role:master\r\n")
	}
	fmt.Fprintf(&b, "master_replid:%s\r\n", e.Repl.ReplID)
	fmt.Fprintf(&b, "master_repl_offset:%d\r\n", e.Repl.Offset())
	return protocol.BulkString([]byte(b.String()))
}
