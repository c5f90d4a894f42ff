package model

import "golang.org/x/exp/constraints"

// Series is an ordered sequence of comparable values. The engine's
// per-subscription replay statistics use it to keep a short history of
// recent bar values.
type Series[T constraints.Ordered] []T

// Values returns the underlying slice.
func (s Series[T]) Values() []T {
	return s
}

// Len returns the number of values recorded.
func (s Series[T]) Len() int {
	return len(s)
}

// Last returns the value `position` entries back from the end; Last(0)
// is the most recent value.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns up to the last `size` values, oldest first.
func (s Series[T]) LastValues(size int) []T {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}
