package anthillstore

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFormat = errors.New("anthillstore: unknown format")
	ErrNilStore      = errors.New("anthillstore: nil store")
)

// OpError reports a failed backend or (de)serialization step for one key.
// Key is the namespaced storage key.
type OpError struct {
	Op  string // "get", "set", "changed", "load"
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("anthillstore: %s %q: unknown error", e.Op, e.Key)
	}
	return fmt.Sprintf("anthillstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
