package model

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a JSON field was absent, present as null, or
// present with a value. encoding/json only calls UnmarshalJSON for keys that
// appear in the document, so the zero Optional means "absent".
type Optional[T any] struct {
	value   T
	present bool
	null    bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Null returns an Optional that was present in the payload as JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Get returns the value and true when the field carried a non-null value.
func (o Optional[T]) Get() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value, or def when the field is absent or null.
func (o Optional[T]) OrElse(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

// IsAbsent reports whether the field was missing from the payload.
func (o Optional[T]) IsAbsent() bool { return !o.present }

// IsNull reports whether the field was present as JSON null.
func (o Optional[T]) IsNull() bool { return o.present && o.null }

// IsZero lets `omitzero` drop absent fields when re-encoding.
func (o Optional[T]) IsZero() bool { return !o.present }

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
