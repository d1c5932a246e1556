package api

import (
	"bytes"
	"encoding/json"
)

// Optional is a request field that is either unset or explicitly set.
//
// Tag it with `json:"name,omitzero"`: an unset Optional is left out of the
// body entirely, while a set one is always written, even when it holds
// false, 0 or an empty (non-nil) slice.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional set to v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether a value was provided.
func (o Optional[T]) IsSet() bool { return o.set }

// IsZero reports whether the field is unset. encoding/json consults it for
// omitzero.
func (o Optional[T]) IsZero() bool { return !o.set }

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
