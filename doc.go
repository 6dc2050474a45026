// Package anthillstore implements a namespaced key/value cache over a pluggable
// byte store that reports, on write, whether a value differs from the previous one.
// Admin console pages use it to cache structured data (service registries) and to
// skip re-rendering fragments that did not change.
//
// Components:
//   - Provider: byte store with optional TTL. Session-scoped (in-process map, LRU,
//     Ristretto, BigCache) or durable (Redis, SQLite, S3).
//   - Format: serialization used by SetItem/GetItem (json, raw, msgpack, cbor).
//   - Typed[V]: a typed view over a Store using a codec.Codec[V].
//
// Keys:
//
//	<prefix><key>  - prefix defaults to "anthill_"
//
// Change detection:
//
//	html := render(entries)
//	if ok, _ := store.Changed(ctx, "html_sidebar_data", html); ok {
//	    redraw(html)
//	}
//
// Changed compares raw stored strings, not decoded values. Do not mix Changed with
// SetItem/GetItem under the same key unless the format is raw.
package anthillstore
