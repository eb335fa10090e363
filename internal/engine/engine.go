// Package engine dispatches parsed commands against the key-space,
// replica registry, and replication coordinator, producing a reply
// frame and, for write commands, the wire bytes to propagate to
// connected replicas.
package engine

import (
	"context"
	"strings"

	"kvredis/internal/config"
	"kvredis/internal/keyspace"
	"kvredis/internal/protocol"
	"kvredis/internal/replica"
	"kvredis/internal/replication"
)

// CommandFunc handles one command's arguments (args[0] is the command
// name) against a ClientConn, returning the reply to send back.
type CommandFunc func(ctx context.Context, e *Engine, c *ClientConn, args []string) protocol.Frame

// Engine ties the key-space and replication state together and holds
// the command dispatch table.
type Engine struct {
	KS       *keyspace.KeySpace
	Repl     *replication.Coordinator
	Cfg      *config.Config
	commands map[string]CommandFunc
}

// ClientConn is the per-connection state the engine needs: whether
// this connection has become a replica link (via PSYNC) and its
// self-reported listening port (via REPLCONF listening-port).
type ClientConn struct {
	Addr          string
	IsReplica     bool
	ListeningPort int
	Replica       *replica.Record
}

// New returns an Engine with its dispatch table populated.
func New(ks *keyspace.KeySpace, repl *replication.Coordinator, cfg *config.Config) *Engine {
	e := &Engine{KS: ks, Repl: repl, Cfg: cfg}
	e.commands = map[string]CommandFunc{
		"PING":     cmdPing,
		"ECHO":     cmdEcho,
		"SET":      cmdSet,
		"GET":      cmdGet,
		"TYPE":     cmdType,
		"KEYS":     cmdKeys,
		"INFO":     cmdInfo,
		"CONFIG":   cmdConfig,
		"XADD":     cmdXAdd,
		"XRANGE":   cmdXRange,
		"XREAD":    cmdXRead,
		"REPLCONF": cmdReplConf,
		"PSYNC":    cmdPSync,
		"WAIT":     cmdWait,
	}
	return e
}

// Dispatch runs one command and returns its reply. When the command is
// a write that must be propagated (currently just SET), wire carries
// the exact bytes staged to replicas; it is nil otherwise.
func (e *Engine) Dispatch(ctx context.Context, c *ClientConn, args []string) (reply protocol.Frame, wire []byte) {
	if len(args) == 0 {
		return protocol.Error("ERR empty command"), nil
	}
	name := strings.ToUpper(args[0])
	fn, ok := e.commands[name]
	if !ok {
		return protocol.Error("ERR unknown command '" + args[0] + "'"), nil
	}

	ctxArgs := append([]string(nil), args...)
	reply = fn(ctx, e, c, ctxArgs)

	if name == "SET" && reply.Type != protocol.TypeError {
		wire = protocol.Serialize(protocol.ArrayOfBulkStrings(args...))
		e.Repl.Propagate(wire)
	}
	return reply, wire
}
