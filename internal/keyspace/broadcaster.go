package keyspace

import "sync"

// streamAppend is what a broadcaster fans out to blocked XREAD callers:
// the entry that was just appended, and the key it belongs to.
type streamAppend struct {
	key   string
	entry StreamEntry
}

// broadcaster is a per-stream-key, single-producer/multi-consumer fan-out
// created lazily on the first blocked XREAD and torn down once its last
// subscriber leaves, per the spec's broadcaster note.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan streamAppend]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan streamAppend]struct{})}
}

func (b *broadcaster) subscribe() chan streamAppend {
	ch := make(chan streamAppend, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan streamAppend) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *broadcaster) publish(key string, entry StreamEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- streamAppend{key: key, entry: entry}:
		default:
		}
	}
}

func (b *broadcaster) empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) == 0
}
