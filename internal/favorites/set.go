// Package favorites tracks which recipes the user has liked.
package favorites

// Set is an insertion-ordered set of recipe ids. The zero value is empty.
type Set struct {
	ids   []string
	index map[string]struct{}
}

// NewSet returns a set holding ids in order, duplicates dropped.
func NewSet(ids ...string) Set {
	var s Set
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *Set) Add(id string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (s *Set) Remove(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether id is in the set.
func (s Set) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the ids in insertion order.
func (s Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
