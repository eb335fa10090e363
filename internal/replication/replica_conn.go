package replication

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"kvredis/internal/keyspace"
	"kvredis/internal/logging"
	"kvredis/internal/protocol"
	"kvredis/internal/rdb"
)

// ReplicaConn drives the replica side of replication: handshake against
// a master, install the full-resync snapshot, then tail the command
// stream indefinitely, advancing the offset by exactly the wire bytes
// each frame consumed. It applies only SET, the one command the master
// side propagates (see Coordinator.Propagate's callers in the command
// engine) — there is no general command dispatch here by design.
//
// The offset it advances and the replID it learns from the master's
// FULLRESYNC line both live on coord, the same Coordinator the command
// engine's INFO handler reads from. A replica process never keeps its
// own parallel counter: coord.Offset() is the one number both this
// connection and INFO replication agree on.
type ReplicaConn struct {
	host, port string
	listenPort int
	KS         *keyspace.KeySpace
	coord      *Coordinator
}

// NewReplicaConn returns a connector that will dial host:port once Run
// is called, writing its progress into coord.
func NewReplicaConn(host string, port int, listenPort int, ks *keyspace.KeySpace, coord *Coordinator) *ReplicaConn {
	return &ReplicaConn{host: host, port: fmt.Sprint(port), listenPort: listenPort, KS: ks, coord: coord}
}

// Offset returns the number of replication-stream bytes applied so far.
func (rc *ReplicaConn) Offset() uint64 {
	return rc.coord.Offset()
}

// Run connects, performs the handshake, installs the snapshot, and
// tails the stream until ctx is canceled or the connection drops. It
// does not retry; callers that want reconnection call Run again.
func (rc *ReplicaConn) Run(ctx context.Context) error {
	conn, err := net.Dial("tcp", net.JoinHostPort(rc.host, rc.port))
	if err != nil {
		return fmt.Errorf("replication: dial master: %w", err)
	}
	defer conn.Close()

	fr := protocol.NewFrameReader(conn)

	if err := rc.handshake(conn, fr); err != nil {
		return fmt.Errorf("replication: handshake: %w", err)
	}

	logging.Infof("replication: full resync complete, tailing master %s:%s", rc.host, rc.port)
	return rc.tail(ctx, conn, fr)
}

func (rc *ReplicaConn) handshake(conn net.Conn, fr *protocol.FrameReader) error {
	send := func(args ...string) error {
		_, err := conn.Write(protocol.Serialize(protocol.ArrayOfBulkStrings(args...)))
		return err
	}
	readLine := func() (string, error) {
		f, _, err := fr.ReadFrame()
		if err != nil {
			return "", err
		}
		return f.Str, nil
	}

	if err := send("PING"); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return fmt.Errorf("PING: %w", err)
	}

	if err := send("REPLCONF", "listening-port", fmt.Sprint(rc.listenPort)); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return fmt.Errorf("REPLCONF listening-port: %w", err)
	}

	if err := send("REPLCONF", "capa", "eof", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := readLine(); err != nil {
		return fmt.Errorf("REPLCONF capa: %w", err)
	}

	if err := send("PSYNC", "?", "-1"); err != nil {
		return err
	}
	resp, err := readLine()
	if err != nil {
		return fmt.Errorf("PSYNC: %w", err)
	}
	replID, startOffset, err := parseFullResync(resp)
	if err != nil {
		return err
	}
	rc.coord.adoptMaster(replID, startOffset)

	payload, err := rdb.ReadReplicationFrame(fr)
	if err != nil {
		return fmt.Errorf("snapshot payload: %w", err)
	}
	doc, err := rdb.Decode(newByteSliceReader(payload))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	rdb.Install(rc.KS, doc)
	return nil
}

// parseFullResync splits a "FULLRESYNC <replid> <offset>" reply line
// into the replID and starting offset the master reports, rather than
// discarding them in favor of a locally invented replID and a
// perpetually-zero offset.
func parseFullResync(line string) (replID string, offset uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return "", 0, fmt.Errorf("unexpected PSYNC response: %q", line)
	}
	var off uint64
	if _, err := fmt.Sscanf(fields[2], "%d", &off); err != nil {
		return "", 0, fmt.Errorf("bad FULLRESYNC offset %q: %w", fields[2], err)
	}
	return fields[1], off, nil
}

// tail reads commands off the wire and applies them, advancing offset
// by the exact bytes each frame occupied. REPLCONF GETACK is answered
// with a REPLCONF ACK carrying the offset as of just before this frame
// (GETACK's own bytes are counted after replying, matching the wire
// protocol's "ack what you'd applied so far" semantics); no other
// command gets a reply.
func (rc *ReplicaConn) tail(ctx context.Context, conn net.Conn, fr *protocol.FrameReader) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, n, err := fr.ReadFrame()
		if err != nil {
			return err
		}
		args, err := protocol.ArrayStrings(frame)
		if err != nil {
			return err
		}

		if len(args) >= 2 && strings.EqualFold(args[0], "REPLCONF") && strings.EqualFold(args[1], "GETACK") {
			ackBefore := rc.Offset()
			ack := protocol.ArrayOfBulkStrings("REPLCONF", "ACK", fmt.Sprint(ackBefore))
			if _, err := conn.Write(protocol.Serialize(ack)); err != nil {
				return err
			}
			rc.advance(n)
			continue
		}

		rc.apply(args)
		rc.advance(n)
	}
}

// apply replays a propagated write command against the local
// key-space. Only SET [PX ms] is ever propagated.
func (rc *ReplicaConn) apply(args []string) {
	if len(args) == 0 || !strings.EqualFold(args[0], "SET") {
		return
	}
	if len(args) < 3 {
		return
	}
	key, value := args[1], args[2]
	var ttl *time.Duration
	for i := 3; i+1 < len(args); i += 2 {
		if strings.EqualFold(args[i], "PX") {
			var ms int64
			if _, err := fmt.Sscanf(args[i+1], "%d", &ms); err == nil {
				d := time.Duration(ms) * time.Millisecond
				ttl = &d
			}
		}
	}
	rc.KS.Set(key, value, ttl)
}

func (rc *ReplicaConn) advance(n int) {
	rc.coord.advanceOffset(uint64(n))
}

type byteSliceReader struct {
	b []byte
	i int
}

func newByteSliceReader(b []byte) *byteSliceReader { return &byteSliceReader{b: b} }

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
