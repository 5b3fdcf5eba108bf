package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fridgemonster/internal/assets"
	"fridgemonster/internal/favorites"
	"fridgemonster/internal/logging"
	"fridgemonster/internal/match"
	"fridgemonster/internal/metrics"
	"fridgemonster/internal/pantry"
	"fridgemonster/internal/recipe"
)

const (
	msgNoMatches   = "No matching recipes found."
	msgNoSelection = "Select ingredients to find recipes"
)

// CatalogLoader defines how the handler reads the recipe catalog.
type CatalogLoader interface {
	Load(ctx context.Context) []recipe.Recipe
}

// FavoritesService defines the liked recipe operations.
type FavoritesService interface {
	Toggle(ctx context.Context, catalog []recipe.Recipe, id string) (bool, error)
	Liked(ctx context.Context) (favorites.Set, error)
}

// Pantry defines the ingredient session state.
type Pantry interface {
	Add(name string) (pantry.Ingredient, bool, error)
	Toggle(name string) (bool, error)
	Selection() match.Selection
	Palette() []pantry.Ingredient
}

// ImageLibrary renders recipe and ingredient images.
type ImageLibrary interface {
	Thumbnail(name string, width uint) ([]byte, string, error)
}

// IngredientDetector finds ingredients in a photo.
type IngredientDetector interface {
	DetectIngredients(ctx context.Context, imageData []byte) ([]string, error)
}

// Options tune request handling.
type Options struct {
	RequestTimeout time.Duration
	ScanTimeout    time.Duration
	MaxUploadBytes int64
	ThumbnailWidth uint
	// DetectorName labels detector metrics.
	DetectorName string
}

// Handler handles HTTP requests.
type Handler struct {
	Catalog   CatalogLoader
	Favorites FavoritesService
	Pantry    Pantry
	Images    ImageLibrary
	// Detector may be nil, in which case scans are rejected.
	Detector IngredientDetector
	Options  Options
}

// NewHandler creates a new Handler. Zero options take defaults.
func NewHandler(catalog CatalogLoader, favs FavoritesService, p Pantry, images ImageLibrary, detector IngredientDetector, opts Options) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 45 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.DetectorName == "" {
		opts.DetectorName = "none"
	}
	return &Handler{
		Catalog:   catalog,
		Favorites: favs,
		Pantry:    p,
		Images:    images,
		Detector:  detector,
		Options:   opts,
	}
}

// Register attaches every route to r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/recipes", h.GetRecipes)
	r.GET("/recipes/:id", h.GetRecipe)
	r.POST("/recipes/:id/like", h.ToggleLike)
	r.GET("/favorites", h.GetFavorites)
	r.POST("/search", h.Search)

	r.GET("/pantry", h.GetPantry)
	r.POST("/pantry/ingredients", h.AddIngredient)
	r.POST("/pantry/ingredients/:name/toggle", h.ToggleIngredient)
	r.GET("/pantry/matches", h.PantryMatches)
	r.POST("/pantry/scan", h.Scan)

	r.GET("/images/:name", h.GetImage)
}

// RecipeDetail is a recipe with its instructions split into steps.
type RecipeDetail struct {
	recipe.Recipe
	Steps []string `json:"steps"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Ingredients []string `json:"ingredients"`
}

// SearchResponse carries matching recipes and a message for empty results.
type SearchResponse struct {
	Recipes []recipe.Recipe `json:"recipes"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

// catalog loads the catalog and marks liked recipes.
func (h *Handler) catalog(ctx context.Context) ([]recipe.Recipe, error) {
	recipes := h.Catalog.Load(ctx)
	liked, err := h.Favorites.Liked(ctx)
	if err != nil {
		return nil, err
	}
	return favorites.Decorate(recipes, liked), nil
}

// GetRecipes returns the full catalog.
func (h *Handler) GetRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.RequestTimeout)
	defer cancel()

	recipes, err := h.catalog(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// GetRecipe returns one recipe with its steps.
func (h *Handler) GetRecipe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.RequestTimeout)
	defer cancel()

	recipes, err := h.catalog(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	r, ok := recipe.FindByID(recipes, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}
	c.JSON(http.StatusOK, RecipeDetail{Recipe: r, Steps: r.Steps()})
}

// ToggleLike flips the liked state of a recipe.
func (h *Handler) ToggleLike(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.RequestTimeout)
	defer cancel()

	id := c.Param("id")
	liked, err := h.Favorites.Toggle(ctx, h.Catalog.Load(ctx), id)
	if err != nil {
		if errors.Is(err, favorites.ErrUnknownRecipe) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "isLiked": liked})
}

// GetFavorites returns the liked recipes in the order they were liked.
func (h *Handler) GetFavorites(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.RequestTimeout)
	defer cancel()

	liked, err := h.Favorites.Liked(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, favorites.Resolve(h.Catalog.Load(ctx), liked))
}

// Search matches the catalog against the ingredients in the request body.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %s", err.Error())})
		return
	}
	h.search(c, match.NewSelection(req.Ingredients...), metrics.SearchExplicit)
}

func (h *Handler) search(c *gin.Context, selected match.Selection, source string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.RequestTimeout)
	defer cancel()

	recipes, err := h.catalog(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	found := match.FilterMatching(recipes, selected)
	metrics.RecordSearch(source, len(found))
	logging.Ctx(ctx).Info().
		Str("source", source).
		Strs("ingredients", selected.Names()).
		Int("matches", len(found)).
		Msg("recipe search")

	resp := SearchResponse{Recipes: found, Count: len(found)}
	switch {
	case selected.Len() == 0:
		resp.Message = msgNoSelection
	case len(found) == 0:
		resp.Message = msgNoMatches
	}
	c.JSON(http.StatusOK, resp)
}

// GetImage serves a resized recipe or ingredient image, or the placeholder.
func (h *Handler) GetImage(c *gin.Context) {
	width := h.Options.ThumbnailWidth
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || w == 0 || w > assets.MaxThumbnailWidth {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("width must be an integer from 1 to %d", assets.MaxThumbnailWidth)})
			return
		}
		width = uint(w)
	}

	data, contentType, err := h.Images.Thumbnail(c.Param("name"), width)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

// fail maps an unexpected error to a status code and logs it.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}
	logging.Ctx(c.Request.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}
