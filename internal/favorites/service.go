package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fridgemonster/internal/logging"
	"fridgemonster/internal/metrics"
	"fridgemonster/internal/recipe"
)

// ErrUnknownRecipe is returned when liking an id that is not in the catalog.
var ErrUnknownRecipe = errors.New("unknown recipe")

// Store persists liked recipe ids.
type Store interface {
	Like(ctx context.Context, id string) error
	Unlike(ctx context.Context, id string) error
	IsLiked(ctx context.Context, id string) (bool, error)
	// List returns liked ids, oldest like first.
	List(ctx context.Context) ([]string, error)
}

// Service applies like toggles and joins the liked set with the catalog.
type Service struct {
	mu    sync.Mutex
	store Store
}

// NewService creates a Service on top of store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Toggle flips the liked state of id and returns the new state.
func (s *Service) Toggle(ctx context.Context, catalog []recipe.Recipe, id string) (bool, error) {
	if _, ok := recipe.FindByID(catalog, id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRecipe, id)
	}

	// Check-then-write must not interleave with another toggle.
	s.mu.Lock()
	defer s.mu.Unlock()

	liked, err := s.store.IsLiked(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to read liked state: %w", err)
	}

	if liked {
		err = s.store.Unlike(ctx, id)
	} else {
		err = s.store.Like(ctx, id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}

	metrics.RecordLike(!liked)
	logging.Ctx(ctx).Info().Str("recipe", id).Bool("liked", !liked).Msg("toggled like")
	return !liked, nil
}

// Liked returns the current liked set.
func (s *Service) Liked(ctx context.Context) (Set, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("failed to list liked recipes: %w", err)
	}
	return NewSet(ids...), nil
}

// Decorate returns copies of recipes with IsLiked taken from liked.
func Decorate(recipes []recipe.Recipe, liked Set) []recipe.Recipe {
	out := make([]recipe.Recipe, len(recipes))
	for i, r := range recipes {
		r.IsLiked = liked.Contains(r.ID)
		out[i] = r
	}
	return out
}

// Resolve returns the liked recipes found in catalog, in like order.
// Liked ids missing from the catalog are skipped.
func Resolve(catalog []recipe.Recipe, liked Set) []recipe.Recipe {
	out := make([]recipe.Recipe, 0, liked.Len())
	for _, id := range liked.IDs() {
		r, ok := recipe.FindByID(catalog, id)
		if !ok {
			continue
		}
		r.IsLiked = true
		out = append(out, r)
	}
	return out
}
