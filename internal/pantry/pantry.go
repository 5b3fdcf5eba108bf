// Package pantry holds the ingredient palette a user picks from and the
// ingredients currently selected.
package pantry

import (
	"errors"
	"sync"

	"fridgemonster/internal/match"
)

// DefaultIngredients seeds a new pantry.
var DefaultIngredients = []string{"Tomato", "Cheese", "Egg", "Onion", "Chicken", "Milk", "Bread", "Pork"}

var (
	ErrEmptyIngredient   = errors.New("ingredient name is empty")
	ErrUnknownIngredient = errors.New("ingredient is not in the pantry")
)

// ImageResolver maps an ingredient name to an image name.
type ImageResolver interface {
	Resolve(name string) string
}

// Ingredient is a palette entry.
type Ingredient struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Selected bool   `json:"selected"`
}

// Pantry is safe for concurrent use.
type Pantry struct {
	mu        sync.RWMutex
	images    ImageResolver
	palette   []Ingredient
	selection match.Selection
}

// New creates a pantry whose palette holds names, nothing selected.
func New(images ImageResolver, names ...string) *Pantry {
	p := &Pantry{images: images}
	for _, n := range names {
		if p.find(n) >= 0 || match.Normalize(n) == "" {
			continue
		}
		p.palette = append(p.palette, Ingredient{Name: n, Image: images.Resolve(n)})
	}
	return p
}

func (p *Pantry) find(name string) int {
	key := match.Normalize(name)
	for i, ing := range p.palette {
		if match.Normalize(ing.Name) == key {
			return i
		}
	}
	return -1
}

// Add puts a typed-in ingredient in the palette and selects it. The name is
// stored normalized. It reports false when the ingredient was already
// selected, in which case nothing changes.
func (p *Pantry) Add(name string) (Ingredient, bool, error) {
	key := match.Normalize(name)
	if key == "" {
		return Ingredient{}, false, ErrEmptyIngredient
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.find(key)
	if i >= 0 && p.selection.Contains(key) {
		return p.entry(i), false, nil
	}
	if i < 0 {
		p.palette = append(p.palette, Ingredient{Name: key, Image: p.images.Resolve(key)})
		i = len(p.palette) - 1
	}
	p.selection.Add(key)
	return p.entry(i), true, nil
}

// Toggle flips the selection of a palette ingredient and returns whether
// it is now selected.
func (p *Pantry) Toggle(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.find(name) < 0 {
		return false, ErrUnknownIngredient
	}
	if p.selection.Remove(name) {
		return false, nil
	}
	p.selection.Add(name)
	return true, nil
}

// Selection returns a copy of the selected ingredients.
func (p *Pantry) Selection() match.Selection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selection.Clone()
}

// Palette returns the palette in insertion order with selection flags set.
func (p *Pantry) Palette() []Ingredient {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Ingredient, len(p.palette))
	for i := range p.palette {
		out[i] = p.entry(i)
	}
	return out
}

func (p *Pantry) entry(i int) Ingredient {
	ing := p.palette[i]
	ing.Selected = p.selection.Contains(ing.Name)
	return ing
}
