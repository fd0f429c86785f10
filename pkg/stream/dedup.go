package stream

import "reflect"

// DedupFunc reports whether next repeats prev and must be suppressed.
// Only the immediately preceding value is ever compared.
type DedupFunc[T any] func(prev, next T) bool

// DedupComparable suppresses values equal (==) to their predecessor.
func DedupComparable[T comparable]() DedupFunc[T] {
	return func(prev, next T) bool { return prev == next }
}

// DedupBy suppresses values whose key equals the predecessor's key.
func DedupBy[T any, K comparable](key func(T) K) DedupFunc[T] {
	return func(prev, next T) bool { return key(prev) == key(next) }
}

// DedupDeepEqual suppresses values deeply equal to their predecessor.
func DedupDeepEqual[T any]() DedupFunc[T] {
	return func(prev, next T) bool { return reflect.DeepEqual(prev, next) }
}
