// Package recipe defines the recipe record and loads the bundled catalog.
package recipe

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"fridgemonster/internal/logging"
	"fridgemonster/internal/metrics"
)

// Catalog load failures. Load swallows both; LoadStrict returns them.
var (
	ErrCatalogNotFound  = errors.New("recipe catalog not found")
	ErrCatalogMalformed = errors.New("recipe catalog malformed")
)

// BundledCatalog is the name of the catalog embedded in the binary.
const BundledCatalog = "data/recipes.json"

//go:embed data/recipes.json
var bundled embed.FS

// Loader reads the recipe catalog from a single resource. It does not cache:
// every call reads the resource again.
type Loader struct {
	fsys fs.FS
	name string
}

// NewLoader creates a loader reading name from fsys.
func NewLoader(fsys fs.FS, name string) *Loader {
	return &Loader{fsys: fsys, name: name}
}

// NewBundledLoader creates a loader for the embedded catalog.
func NewBundledLoader() *Loader {
	return NewLoader(bundled, BundledCatalog)
}

// NewFileLoader creates a loader for a catalog file on disk.
func NewFileLoader(path string) *Loader {
	return NewLoader(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// Load returns the catalog in source order. Any failure is logged and
// yields an empty, non-nil slice.
func (l *Loader) Load(ctx context.Context) []Recipe {
	recipes, err := l.LoadStrict(ctx)
	if err != nil {
		result := metrics.LoadMalformed
		if errors.Is(err, ErrCatalogNotFound) {
			result = metrics.LoadNotFound
		}
		metrics.CatalogLoads.WithLabelValues(result).Inc()
		logging.Ctx(ctx).Error().Err(err).Str("catalog", l.name).Msg("failed to load recipe catalog")
		return []Recipe{}
	}

	metrics.CatalogLoads.WithLabelValues(metrics.LoadOK).Inc()
	metrics.CatalogSize.Set(float64(len(recipes)))
	logging.Ctx(ctx).Debug().Str("catalog", l.name).Int("count", len(recipes)).Msg("loaded recipe catalog")
	return recipes
}

// LoadStrict is Load without the fail-soft policy.
func (l *Loader) LoadStrict(ctx context.Context) ([]Recipe, error) {
	data, err := fs.ReadFile(l.fsys, l.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogNotFound, err)
	}

	var recipes []Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogMalformed, err)
	}
	if recipes == nil {
		return nil, fmt.Errorf("%w: catalog is not an array", ErrCatalogMalformed)
	}
	return recipes, nil
}
