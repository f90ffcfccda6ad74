package evidence

import "sort"

// Map is the evidence-by-dimension mapping carried in run state. Keys are
// opaque dimension ids from the rubric.
type Map map[string][]Evidence

// MergeMaps is the reducer for the evidence channel: a key-wise union where
// colliding keys have their lists concatenated (a's records first). Neither
// input is modified.
//
// For disjoint keys the result is independent of argument order, and for any
// keys the multiset of records per dimension is, so concurrent collectors can
// never clobber each other.
func MergeMaps(a, b Map) Map {
	if len(a) == 0 && len(b) == 0 {
		return Map{}
	}
	out := make(Map, len(a)+len(b))
	for k, v := range a {
		out[k] = append([]Evidence(nil), v...)
	}
	for k, v := range b {
		out[k] = append(out[k], v...)
	}
	return out
}

// Clone returns a deep copy of the key/list structure.
func (m Map) Clone() Map {
	return MergeMaps(m, nil)
}

// Keys returns the dimension ids in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the total number of records across all dimensions.
func (m Map) Count() int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

// MaxConfidence returns the highest confidence recorded for dimension id, or
// 0 when it has none.
func (m Map) MaxConfidence(id string) float64 {
	best := 0.0
	for _, e := range m[id] {
		if e.Confidence > best {
			best = e.Confidence
		}
	}
	return best
}

// HasSubstantive reports whether any record in m has positive confidence and
// a rationale that is not a placeholder. This is the inverse of the
// critical-failure condition.
func (m Map) HasSubstantive() bool {
	for _, list := range m {
		for _, e := range list {
			if e.Confidence > 0 && !e.IsPlaceholder() {
				return true
			}
		}
	}
	return false
}
