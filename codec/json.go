package codec

import "encoding/json"

// JSON is the default codec; stored bytes are readable by the console scripts.
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if len(b) == 0 || string(b) == "null" {
		return v, nil
	}
	err := json.Unmarshal(b, &v)
	return v, err
}
