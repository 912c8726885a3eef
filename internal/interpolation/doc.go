// Package interpolation derives a category's value at an arbitrary instant
// from its sparse, date-ordered observations.
//
// # Methods
//
//	linear  straight line between the bracketing samples
//	smooth  smoothstep (3x²-2x³) eased ratio, never leaves the bracket
//	step    most recent sample at or before t ("none" is an alias)
//
// All methods clamp: at or before the first sample they return the first
// value, at or after the last sample the last value. Bracketing samples are
// located with a binary search, so a lookup is O(log n).
//
// # Memoization
//
// Memo wraps an Engine with a (category, instant, method) keyed cache. It is
// not safe for concurrent use; the optimized processor guards it with its own
// mutex.
package interpolation
