package state

import "slices"

// Keyed is a row addressable by integer id.
type Keyed interface {
	Key() int64
}

// Find returns the index of the row with the given id, or -1.
func Find[T Keyed](rows []T, id int64) int {
	return slices.IndexFunc(rows, func(r T) bool { return r.Key() == id })
}

// Get returns the row with the given id.
func Get[T Keyed](rows []T, id int64) (T, bool) {
	if i := Find(rows, id); i >= 0 {
		return rows[i], true
	}
	var zero T
	return zero, false
}

// Patch applies fn to the row with the given id in place and reports whether
// the row exists. rows must be owned by the caller's transaction.
func Patch[T Keyed](rows []T, id int64, fn func(*T)) bool {
	i := Find(rows, id)
	if i < 0 {
		return false
	}
	fn(&rows[i])
	return true
}

// Remove deletes the row with the given id and reports whether it existed.
func Remove[T Keyed](rows []T, id int64) ([]T, bool) {
	i := Find(rows, id)
	if i < 0 {
		return rows, false
	}
	return slices.Delete(rows, i, i+1), true
}

func maxKey[T Keyed](rows []T) int64 {
	var m int64
	for _, r := range rows {
		if k := r.Key(); k > m {
			m = k
		}
	}
	return m
}
