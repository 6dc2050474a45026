// Package codec holds typed serializers for anthillstore.Typed.
//
// Codecs must round-trip: Decode(Encode(v)) yields a value equal to v.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
