// Package model defines domain entities for the application.
package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field that tells an absent JSON key apart from a key that
// is present with a null or empty value.
//
// The zero value is absent. Decoding any JSON value, including null, marks the
// field as set.
type Optional[T any] struct {
	set   bool
	valid bool
	value T
}

// Some returns a set, non-null Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, valid: true, value: v}
}

// Null returns a set Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true}
}

// IsSet reports whether the field was present in the payload.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsNull reports whether the field was present with a null value.
func (o Optional[T]) IsNull() bool {
	return o.set && !o.valid
}

// Value returns the held value and whether it is non-null.
func (o Optional[T]) Value() (T, bool) {
	return o.value, o.valid
}

// Ptr returns a pointer to the held value, or nil for null and absent fields.
func (o Optional[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.valid = false
		o.value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.valid = true
	return nil
}

// MarshalJSON implements json.Marshaler. Absent and null both encode as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
