package core

// StringSet is a small deduplicated collection preserving insertion order.
// It replaces ad-hoc set-valued statistics fields (agents used, intents
// processed) with explicit merge semantics. It is not safe for concurrent use;
// the owning structure is responsible for locking.
type StringSet struct {
	values []string
	index  map[string]struct{}
}

// NewStringSet creates an empty set, optionally seeded with initial values.
func NewStringSet(values ...string) *StringSet {
	s := &StringSet{index: make(map[string]struct{})}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v if absent and reports whether it was added.
func (s *StringSet) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.values = append(s.values, v)
	return true
}

// Has reports whether v is present.
func (s *StringSet) Has(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Merge adds all values from other, preserving this set's existing order.
func (s *StringSet) Merge(other *StringSet) {
	if other == nil {
		return
	}
	for _, v := range other.values {
		s.Add(v)
	}
}

// Values returns a copy of the members in insertion order.
func (s *StringSet) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of members.
func (s *StringSet) Len() int { return len(s.values) }

// Clone returns an independent copy.
func (s *StringSet) Clone() *StringSet {
	return NewStringSet(s.values...)
}
