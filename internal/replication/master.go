// Package replication drives both ends of replication: the master side
// (tracking offset, streaming writes to connected replicas, WAIT) and
// the replica side (handshake, tailing the command stream).
package replication

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"kvredis/internal/keyspace"
	"kvredis/internal/rdb"
	"kvredis/internal/replica"
)

// Coordinator is the master-side replication state: a replication ID,
// a monotonically increasing write offset, and the replica registry.
type Coordinator struct {
	mu       sync.Mutex
	ReplID   string
	offset   uint64
	Replicas *replica.Registry
	KS       *keyspace.KeySpace

	IsReplica  bool
	MasterHost string
	MasterPort int
}

// NewCoordinator returns a master-role coordinator with a freshly
// generated replication ID.
func NewCoordinator(ks *keyspace.KeySpace) *Coordinator {
	return &Coordinator{
		ReplID:   generateReplID(),
		Replicas: replica.NewRegistry(),
		KS:       ks,
	}
}

func generateReplID() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%040d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", b)
}

// Offset returns the current master replication offset.
func (c *Coordinator) Offset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// adoptMaster records the replID and starting offset a replica learns
// from its master's FULLRESYNC reply, replacing the locally-generated
// placeholder NewCoordinator assigned at startup. Only ReplicaConn's
// handshake calls this.
func (c *Coordinator) adoptMaster(replID string, startOffset uint64) {
	c.mu.Lock()
	c.ReplID = replID
	c.offset = startOffset
	c.mu.Unlock()
}

// advanceOffset adds n to the running offset. Only ReplicaConn, on the
// replica side, calls this; the master side advances offset as part of
// Propagate instead.
func (c *Coordinator) advanceOffset(n uint64) {
	c.mu.Lock()
	c.offset += n
	c.mu.Unlock()
}

// Propagate stages a command's wire bytes to every connected replica
// and advances the master offset by exactly that many bytes.
func (c *Coordinator) Propagate(wire []byte) {
	c.mu.Lock()
	c.offset += uint64(len(wire))
	c.mu.Unlock()
	c.Replicas.Stage(wire)
}

// FlushInterval is how often the server's flush-tick goroutine should
// call FlushPending; 500ms sits inside the spec's documented [100ms,1s]
// window.
const FlushInterval = 500 * time.Millisecond

// FlushPending writes every replica's staged bytes to its socket.
func (c *Coordinator) FlushPending() {
	c.Replicas.FlushAll(8)
}

// Snapshot produces the RDB document a newly attached replica should
// receive for full resync.
func (c *Coordinator) Snapshot() []byte {
	strs, streams := c.KS.Dump()
	var buf sliceWriter
	rdb.NewWriter().WriteTo(&buf, strs, streams)
	return buf.b
}

type sliceWriter struct{ b []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// Wait blocks until at least numReplicas have acknowledged the current
// offset, or timeout elapses, returning however many have. It prompts
// an ACK round via REPLCONF GETACK and polls; the spec does not
// mandate the "replicas always count short by one" behavior some
// reference implementations use for a particular test harness, so this
// does not special-case a target offset of zero.
func (c *Coordinator) Wait(numReplicas int, timeout time.Duration) int {
	target := c.Offset()
	already := c.Replicas.CountCaughtUpTo(target)
	if already >= numReplicas || c.Replicas.Count() == 0 {
		return already
	}

	c.Propagate([]byte(replica.GetAckWire))
	c.FlushPending()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		n := c.Replicas.CountCaughtUpTo(target)
		if n >= numReplicas || time.Now().After(deadline) {
			return n
		}
		<-ticker.C
	}
}
