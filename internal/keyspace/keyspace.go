// Package keyspace implements the ordered key-space data model: string
// entries with lazy expiry, and stream entries with ordered, strictly
// increasing IDs. A single mutex guards both maps, matching the
// coarse-locking policy in the spec's concurrency model.
package keyspace

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// StringEntry is a string value with optional expiry, evaluated lazily.
type StringEntry struct {
	Value     string
	CreatedAt time.Time
	Expiry    *time.Duration
}

func (e *StringEntry) expired(now time.Time) bool {
	if e.Expiry == nil {
		return false
	}
	return now.Sub(e.CreatedAt) > *e.Expiry
}

// KeySpace holds the live string and stream maps for one store.
type KeySpace struct {
	mu                   sync.Mutex
	strings              map[string]*StringEntry
	streams              map[string]*Stream
	broadcasters         map[string]*broadcaster
	compressionThreshold int
}

// New returns an empty key-space using the default compression
// threshold.
func New() *KeySpace {
	return &KeySpace{
		strings:              make(map[string]*StringEntry),
		streams:              make(map[string]*Stream),
		broadcasters:         make(map[string]*broadcaster),
		compressionThreshold: DefaultCompressionThreshold,
	}
}

// Set inserts or replaces a string entry, resetting CreatedAt. It
// returns ErrWrongType if key already holds a stream.
func (ks *KeySpace) Set(key, value string, ttl *time.Duration) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, isStream := ks.streams[key]; isStream {
		return ErrWrongType
	}

	ks.strings[key] = &StringEntry{
		Value:     value,
		CreatedAt: time.Now(),
		Expiry:    ttl,
	}
	return nil
}

// Get returns the decoded string for key. The second return is false if
// the key is absent or has just expired (in which case it is removed as
// a side effect).
func (ks *KeySpace) Get(key string) (string, bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, ok := ks.strings[key]
	if !ok {
		return "", false
	}
	if e.expired(time.Now()) {
		delete(ks.strings, key)
		return "", false
	}
	return e.Value, true
}

// Type reports "string", "stream", or "none", purging the key first if
// it has just expired.
func (ks *KeySpace) Type(key string) string {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if e, ok := ks.strings[key]; ok {
		if e.expired(time.Now()) {
			delete(ks.strings, key)
			return "none"
		}
		return "string"
	}
	if _, ok := ks.streams[key]; ok {
		return "stream"
	}
	return "none"
}

// Keys purges expired string entries and returns every remaining key.
// Pattern matching is unimplemented; any pattern returns every key.
func (ks *KeySpace) Keys(_ string) []string {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	for k, e := range ks.strings {
		if e.expired(now) {
			delete(ks.strings, k)
		}
	}

	keys := make([]string, 0, len(ks.strings)+len(ks.streams))
	for k := range ks.strings {
		keys = append(keys, k)
	}
	for k := range ks.streams {
		keys = append(keys, k)
	}
	return keys
}

// Flush clears all string and stream entries. Used by the replica when
// installing a freshly received snapshot.
func (ks *KeySpace) Flush() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.strings = make(map[string]*StringEntry)
	ks.streams = make(map[string]*Stream)
}

// StringSnapshot and StreamSnapshot are read-only views handed to the
// RDB writer; they are built under the key-space lock and safe to use
// afterwards since their contents are copied or otherwise immutable.
type StringSnapshot struct {
	Key    string
	Value  string
	Expiry *time.Time // absolute deadline, nil if none
}

type StreamSnapshot struct {
	Key     string
	Entries []StreamEntry
}

// Dump returns a point-in-time view of every non-expired entry, for the
// RDB writer to encode.
func (ks *KeySpace) Dump() ([]StringSnapshot, []StreamSnapshot) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	strs := make([]StringSnapshot, 0, len(ks.strings))
	for k, e := range ks.strings {
		if e.expired(now) {
			continue
		}
		snap := StringSnapshot{Key: k, Value: e.Value}
		if e.Expiry != nil {
			deadline := e.CreatedAt.Add(*e.Expiry)
			snap.Expiry = &deadline
		}
		strs = append(strs, snap)
	}

	streams := make([]StreamSnapshot, 0, len(ks.streams))
	for k, s := range ks.streams {
		streams = append(streams, StreamSnapshot{Key: k, Entries: append([]StreamEntry(nil), s.entries...)})
	}
	return strs, streams
}

// LoadString installs a string entry read from a snapshot. deadline is
// an absolute time, or nil for no expiry; it is converted to the
// CreatedAt/Expiry pair the live entry uses for lazy evaluation.
func (ks *KeySpace) LoadString(key, value string, deadline *time.Time) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	entry := &StringEntry{Value: value, CreatedAt: now}
	if deadline != nil {
		ttl := deadline.Sub(now)
		entry.Expiry = &ttl
	}
	ks.strings[key] = entry
}

// LoadStream installs a stream entry read from a snapshot, replacing
// whatever is currently at key.
func (ks *KeySpace) LoadStream(key string, s *Stream) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.streams[key] = s
}

// XAdd canonicalizes idSpec against the stream at key (creating it if
// absent) and appends fields. It returns ErrWrongType if key holds a
// string entry.
func (ks *KeySpace) XAdd(key, idSpec string, fields []FieldValue) (StreamID, error) {
	ks.mu.Lock()

	if _, isString := ks.strings[key]; isString {
		ks.mu.Unlock()
		return StreamID{}, ErrWrongType
	}

	s, ok := ks.streams[key]
	if !ok {
		s = NewStream()
		ks.streams[key] = s
	}

	id, err := s.Append(idSpec, fields)
	if err != nil {
		ks.mu.Unlock()
		return StreamID{}, err
	}
	b := ks.broadcasters[key]
	ks.mu.Unlock()

	if b != nil {
		b.publish(key, StreamEntry{ID: id, Fields: fields})
	}
	return id, nil
}

// XRange returns entries in key's stream with start <= id <= end. A
// missing key yields no entries rather than an error.
func (ks *KeySpace) XRange(key string, start, end StreamID) ([]StreamEntry, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, isString := ks.strings[key]; isString {
		return nil, ErrWrongType
	}
	s, ok := ks.streams[key]
	if !ok {
		return nil, nil
	}
	return s.Range(start, end), nil
}

// XReadQuery names one key and the ID entries must sort strictly after.
// ResolveLast is set when the caller passed "$", meaning "the stream's
// current last ID" resolved at call time rather than a literal ID.
type XReadQuery struct {
	Key         string
	After       StreamID
	ResolveLast bool
}

// XRead returns, per key, the entries strictly after the query's After
// ID. If block is non-nil and no key has any entries immediately
// available, it waits up to that duration (forever if the duration is
// zero) for the first append on any of the queried keys, per the
// single-winner blocking rule: only the key that is appended to first
// is returned. A nil block duration pointer means non-blocking.
func (ks *KeySpace) XRead(ctx context.Context, queries []XReadQuery, block *time.Duration) (map[string][]StreamEntry, error) {
	ks.mu.Lock()

	results := make(map[string][]StreamEntry)
	afters := make(map[string]StreamID, len(queries))
	for _, q := range queries {
		if _, isString := ks.strings[q.Key]; isString {
			ks.mu.Unlock()
			return nil, ErrWrongType
		}
		after := q.After
		if q.ResolveLast {
			if s, ok := ks.streams[q.Key]; ok {
				after = s.LastID()
			}
		}
		afters[q.Key] = after
		if s, ok := ks.streams[q.Key]; ok {
			if entries := s.After(after); len(entries) > 0 {
				results[q.Key] = entries
			}
		}
	}

	if len(results) > 0 || block == nil {
		ks.mu.Unlock()
		return results, nil
	}

	// Nothing available yet: subscribe to every queried key's
	// broadcaster before releasing the lock, so an append cannot slip
	// in unobserved between the scan above and the subscribe below.
	chans := make([]chan streamAppend, 0, len(queries))
	for _, q := range queries {
		b, ok := ks.broadcasters[q.Key]
		if !ok {
			b = newBroadcaster()
			ks.broadcasters[q.Key] = b
		}
		chans = append(chans, b.subscribe())
	}
	ks.mu.Unlock()

	defer func() {
		ks.mu.Lock()
		for i, q := range queries {
			if b, ok := ks.broadcasters[q.Key]; ok {
				b.unsubscribe(chans[i])
				if b.empty() {
					delete(ks.broadcasters, q.Key)
				}
			}
		}
		ks.mu.Unlock()
	}()

	var timeoutC <-chan time.Time
	if *block > 0 {
		timer := time.NewTimer(*block)
		defer timer.Stop()
		timeoutC = timer.C
	}

	cases := make([]reflect.SelectCase, 0, len(chans)+2)
	for _, ch := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timeoutC)})
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

	chosen, recv, recvOK := reflect.Select(cases)
	switch {
	case chosen < len(chans):
		if !recvOK {
			return nil, nil
		}
		v := recv.Interface().(streamAppend)
		after := afters[v.key]
		if after.Less(v.entry.ID) {
			return map[string][]StreamEntry{v.key: {v.entry}}, nil
		}
		return nil, nil
	case chosen == len(chans):
		return nil, nil
	default:
		return nil, ctx.Err()
	}
}
