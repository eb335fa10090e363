// Package replica tracks the set of connected replicas on the master
// side: their pending write buffers, acknowledged offsets, and the
// lifetime-strikes policy that evicts one whose flush writes keep failing.
package replica

import (
	"net"
	"sync"
)

// MaxStrikes is how many failed flush writes a replica tolerates before
// the registry drops it. The count is reset only by an ACK.
const MaxStrikes = 3

// Record is one connected replica's write-side state.
type Record struct {
	mu             sync.Mutex
	PeerAddr     string
	conn         net.Conn
	pending      []byte
	ActualOffset uint64
	strikes      uint8
}

func (r *Record) stage(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, b...)
}

func (r *Record) takePending() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	p := r.pending
	r.pending = nil
	return p
}

// Ack records an acknowledged offset reported via REPLCONF ACK,
// resetting the strike counter.
func (r *Record) Ack(offset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActualOffset = offset
	r.strikes = 0
}

// Registry is the set of currently connected replicas, keyed by peer
// address.
type Registry struct {
	mu       sync.Mutex
	replicas map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{replicas: make(map[string]*Record)}
}

// Add registers a new replica connection.
func (reg *Registry) Add(conn net.Conn) *Record {
	r := &Record{PeerAddr: conn.RemoteAddr().String(), conn: conn}
	reg.mu.Lock()
	reg.replicas[r.PeerAddr] = r
	reg.mu.Unlock()
	return r
}

// Remove drops a replica, e.g. after its connection closes or it
// exceeds MaxStrikes.
func (reg *Registry) Remove(r *Record) {
	reg.mu.Lock()
	delete(reg.replicas, r.PeerAddr)
	reg.mu.Unlock()
}

// Stage appends b to every connected replica's pending buffer. Called
// once per propagated write command.
func (reg *Registry) Stage(b []byte) {
	reg.mu.Lock()
	records := make([]*Record, 0, len(reg.replicas))
	for _, r := range reg.replicas {
		records = append(records, r)
	}
	reg.mu.Unlock()

	for _, r := range records {
		r.stage(b)
	}
}

// Snapshot returns the currently connected replica records.
func (reg *Registry) Snapshot() []*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Record, 0, len(reg.replicas))
	for _, r := range reg.replicas {
		out = append(out, r)
	}
	return out
}

// Count reports how many replicas are currently connected.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.replicas)
}

// FlushAll writes each replica's pending buffer to its socket, with up
// to concurrency writers in flight at once. A write error strikes the
// replica; MaxStrikes failures with no ACK in between evict it.
func (reg *Registry) FlushAll(concurrency int) {
	records := reg.Snapshot()
	if len(records) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, r := range records {
		pending := r.takePending()
		if len(pending) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(r *Record, p []byte) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := r.conn.Write(p); err != nil {
				r.mu.Lock()
				r.strikes++
				strikes := r.strikes
				r.mu.Unlock()
				if strikes >= MaxStrikes {
					reg.Remove(r)
				}
			}
		}(r, pending)
	}
	wg.Wait()
}

// GetAckWire is the wire-encoded "REPLCONF GETACK *" command, staged by
// the coordinator's Wait so its bytes count toward the master offset
// like any other propagated command.
const GetAckWire = "*3\r\n$8\r\nREPLCONF\r\n$6\r\nGETACK\r\n$1\r\n*\r\n"

// CountCaughtUpTo reports how many replicas have acknowledged at least
// offset.
func (reg *Registry) CountCaughtUpTo(offset uint64) int {
	n := 0
	for _, r := range reg.Snapshot() {
		r.mu.Lock()
		acked := r.ActualOffset >= offset
		r.mu.Unlock()
		if acked {
			n++
		}
	}
	return n
}
