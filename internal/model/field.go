package model

import "encoding/json"

// Field is a tri-state JSON value: absent, explicitly null, or set to a value.
// Use it in patch requests so that omitting a key and sending null stay distinguishable.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a Field set to v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a Field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// HasValue reports whether the field was provided with a non-null value.
func (f Field[T]) HasValue() bool {
	return f.Set && !f.Null
}

// UnmarshalJSON is only invoked for keys present in the payload, which is what marks the field as set.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON implements json.Marshaler.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
