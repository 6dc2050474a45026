package anthillstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects how SetItem/GetItem/Load serialize values.
type Format string

const (
	Raw     Format = "raw"
	JSON    Format = "json"
	Msgpack Format = "msgpack"
	CBOR    Format = "cbor"
)

// ParseFormat maps a config or query-string name to a Format.
// Matching is case-insensitive; "" yields ("", nil) so callers fall back to their default.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return "", nil
	}
	if _, ok := serializers[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

func (f Format) String() string { return string(f) }

// serializer is the dynamic (any-typed) counterpart of codec.Codec.
type serializer interface {
	encode(v any) ([]byte, error)
	decode(b []byte, dst any) error
}

var serializers = map[Format]serializer{
	Raw:     rawSerializer{},
	JSON:    jsonSerializer{},
	Msgpack: msgpackSerializer{},
	CBOR:    newCBORSerializer(),
}

type jsonSerializer struct{}

func (jsonSerializer) encode(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonSerializer) decode(b []byte, dst any) error { return json.Unmarshal(b, dst) }

// rawSerializer stores strings as-is and coerces anything else to text.
type rawSerializer struct{}

func (rawSerializer) encode(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(t), nil
	case []byte:
		return append([]byte(nil), t...), nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	default:
		return []byte(fmt.Sprint(t)), nil
	}
}

func (rawSerializer) decode(b []byte, dst any) error {
	switch d := dst.(type) {
	case *string:
		*d = string(b)
	case *[]byte:
		*d = append((*d)[:0], b...)
	case *any:
		*d = string(b)
	default:
		return fmt.Errorf("raw format cannot decode into %T", dst)
	}
	return nil
}

type msgpackSerializer struct{}

func (msgpackSerializer) encode(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (msgpackSerializer) decode(b []byte, dst any) error { return msgpack.Unmarshal(b, dst) }

type cborSerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// newCBORSerializer decodes maps into map[string]any so GetItem results look
// the same as their JSON counterparts.
func newCBORSerializer() cborSerializer {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborSerializer{enc: em, dec: dm}
}

func (c cborSerializer) encode(v any) ([]byte, error)   { return c.enc.Marshal(v) }
func (c cborSerializer) decode(b []byte, dst any) error { return c.dec.Unmarshal(b, dst) }
