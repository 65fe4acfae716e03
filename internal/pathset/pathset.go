package pathset

import (
	"slices"
	"sort"
)

// Sorted, deduplicated collection of paths.
//
// The zero value is an empty set.
type Set struct {
	paths []string
}

// Creates a set from the given paths.
//
// Duplicates are removed and the result is sorted. Empty strings are dropped.
func New(paths ...string) Set {
	s := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			s = append(s, p)
		}
	}
	slices.Sort(s)
	return Set{paths: slices.Compact(s)}
}

// Returns the number of paths in the set.
func (s Set) Len() int {
	return len(s.paths)
}

// Whether the set has no elements.
func (s Set) Empty() bool {
	return len(s.paths) == 0
}

// Returns a copy of the paths in ascending order.
func (s Set) Paths() []string {
	return slices.Clone(s.paths)
}

// Whether p is an element of the set.
func (s Set) Contains(p string) bool {
	i := sort.SearchStrings(s.paths, p)
	return i < len(s.paths) && s.paths[i] == p
}

// Returns the elements of s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make([]string, 0, len(s.paths))
	i, j := 0, 0
	for i < len(s.paths) {
		switch {
		case j >= len(other.paths) || s.paths[i] < other.paths[j]:
			out = append(out, s.paths[i])
			i++
		case s.paths[i] > other.paths[j]:
			j++
		default:
			i++
			j++
		}
	}
	return Set{paths: out}
}

// Returns the elements present in both s and other.
func (s Set) Intersect(other Set) Set {
	var out []string
	i, j := 0, 0
	for i < len(s.paths) && j < len(other.paths) {
		switch {
		case s.paths[i] < other.paths[j]:
			i++
		case s.paths[i] > other.paths[j]:
			j++
		default:
			out = append(out, s.paths[i])
			i++
			j++
		}
	}
	return Set{paths: out}
}

// Returns the elements present in either s or other.
func (s Set) Union(other Set) Set {
	out := make([]string, 0, len(s.paths)+len(other.paths))
	i, j := 0, 0
	for i < len(s.paths) || j < len(other.paths) {
		switch {
		case j >= len(other.paths):
			out = append(out, s.paths[i])
			i++
		case i >= len(s.paths):
			out = append(out, other.paths[j])
			j++
		case s.paths[i] < other.paths[j]:
			out = append(out, s.paths[i])
			i++
		case s.paths[i] > other.paths[j]:
			out = append(out, other.paths[j])
			j++
		default:
			out = append(out, s.paths[i])
			i++
			j++
		}
	}
	return Set{paths: out}
}

// Whether s and other hold exactly the same paths.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.paths, other.paths)
}

// Returns a new set with fn applied to every element.
//
// Results are re-deduplicated and re-sorted, since fn may map several paths
// to the same value. Elements for which fn returns false are dropped.
func (s Set) Map(fn func(string) (string, bool)) Set {
	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		if q, ok := fn(p); ok {
			out = append(out, q)
		}
	}
	return New(out...)
}
