// Package match decides which recipes can be made from a set of ingredients.
//
// Ingredient names compare after Normalize: lowercased, then trimmed of
// surrounding whitespace. Nothing else is folded, so "tomato" and "tomatoes"
// are different ingredients.
package match

import (
	"strings"

	"fridgemonster/internal/logging"
	"fridgemonster/internal/recipe"
)

// Normalize returns the comparison form of an ingredient name.
func Normalize(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// Selection is an ordered set of normalized ingredient names.
// The zero value is an empty selection ready to use.
type Selection struct {
	names []string
	index map[string]struct{}
}

// NewSelection builds a selection from raw names. Names that normalize to
// the same value are kept once, in first-seen order.
func NewSelection(names ...string) Selection {
	var s Selection
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was not already present.
func (s *Selection) Add(name string) bool {
	key := Normalize(name)
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.names = append(s.names, key)
	return true
}

// Remove deletes name and reports whether it was present.
func (s *Selection) Remove(name string) bool {
	key := Normalize(name)
	if _, ok := s.index[key]; !ok {
		return false
	}
	delete(s.index, key)
	for i, n := range s.names {
		if n == key {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether name is selected.
func (s Selection) Contains(name string) bool {
	_, ok := s.index[Normalize(name)]
	return ok
}

// Len returns the number of selected ingredients.
func (s Selection) Len() int {
	return len(s.names)
}

// Names returns the normalized names in insertion order.
func (s Selection) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	return NewSelection(s.names...)
}

// CanMake reports whether every ingredient of r is in the selection.
// A recipe with no ingredients can always be made.
func CanMake(r recipe.Recipe, selected Selection) bool {
	for _, ing := range r.Ingredients {
		if !selected.Contains(ing) {
			return false
		}
	}
	return true
}

// FilterMatching returns the recipes of catalog that can be made from
// selected, in catalog order. It never returns nil.
func FilterMatching(catalog []recipe.Recipe, selected Selection) []recipe.Recipe {
	out := make([]recipe.Recipe, 0)
	for _, r := range catalog {
		ok := CanMake(r, selected)
		logging.Debug().
			Str("recipe", r.Title).
			Strs("ingredients", r.Ingredients).
			Bool("matches", ok).
			Msg("checked recipe")
		if ok {
			out = append(out, r)
		}
	}
	return out
}
