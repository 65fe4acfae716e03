// Package pathset provides sorted, deduplicated collections of file paths.
//
// A [Set] is an immutable value. Every constructor and operation returns a
// new set whose elements are unique and in ascending byte order, so two sets
// built from the same paths are always equal element by element. Membership
// is a binary search; union, intersection and difference are single merges
// over the two sorted inputs.
package pathset
