package rdb

import "kvredis/internal/keyspace"

// Install loads a decoded Document into ks, replacing its current
// contents. Used both for boot-time snapshot load and for installing a
// freshly received PSYNC full-resync payload.
func Install(ks *keyspace.KeySpace, doc *Document) {
	if doc == nil {
		return
	}
	ks.Flush()
	for _, s := range doc.Strings {
		ks.LoadString(s.Key, s.Value, s.Expiry)
	}
	for _, sd := range doc.Streams {
		stream := keyspace.NewStream()
		for _, e := range sd.Entries {
			id := e.ID
			spec := id.String()
			stream.Append(spec, e.Fields)
		}
		ks.LoadStream(sd.Key, stream)
	}
}
