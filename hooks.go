package anthillstore

// Hooks are lightweight callbacks for high-signal store events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with hooks/async.
type Hooks interface {
	// Changed reported true for storageKey.
	ValueChanged(storageKey string)

	// A stored payload could not be decoded with format.
	DecodeFailed(storageKey string, format Format, err error)

	// The backend failed during op ("get", "set", "changed").
	BackendError(op, storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ValueChanged(string)                {}
func (NopHooks) DecodeFailed(string, Format, error) {}
func (NopHooks) BackendError(string, string, error) {}
