package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgemonster/internal/assets"
	"fridgemonster/internal/favorites"
	"fridgemonster/internal/pantry"
	"fridgemonster/internal/platform"
	"fridgemonster/internal/recipe"
)

// mockCatalog serves a fixed list of recipes.
type mockCatalog struct {
	recipes []recipe.Recipe
	loads   int
}

// Load mocks the Load method.
func (m *mockCatalog) Load(ctx context.Context) []recipe.Recipe {
	m.loads++
	out := make([]recipe.Recipe, len(m.recipes))
	copy(out, m.recipes)
	return out
}

// mockFavorites always fails.
type mockFavorites struct {
	err error
}

func (m *mockFavorites) Toggle(ctx context.Context, catalog []recipe.Recipe, id string) (bool, error) {
	return false, m.err
}

func (m *mockFavorites) Liked(ctx context.Context) (favorites.Set, error) {
	return favorites.Set{}, m.err
}

// mockImages records the requested thumbnail.
type mockImages struct {
	name  string
	width uint
	err   error
}

func (m *mockImages) Thumbnail(name string, width uint) ([]byte, string, error) {
	m.name, m.width = name, width
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("png-bytes"), "image/png", nil
}

// mockDetector returns canned ingredients.
type mockDetector struct {
	names    []string
	err      error
	received []byte
}

func (m *mockDetector) DetectIngredients(ctx context.Context, imageData []byte) ([]string, error) {
	m.received = imageData
	return m.names, m.err
}

func testCatalog() *mockCatalog {
	return &mockCatalog{recipes: []recipe.Recipe{
		{ID: "1", Title: "Omelette", Image: "omelette", Ingredients: []string{"Egg", "Milk"}, Instructions: "Beat eggs. Fry"},
		{ID: "2", Title: "Tomato Salad", Image: "salad", Ingredients: []string{"Tomato"}, Instructions: "Slice tomatoes."},
		{ID: "3", Title: "Cheese Toast", Image: "toast", Ingredients: []string{"bread", "cheese"}, Instructions: "Toast. Melt cheese."},
	}}
}

type fixture struct {
	router   *gin.Engine
	handler  *Handler
	catalog  *mockCatalog
	pantry   *pantry.Pantry
	images   *mockImages
	detector *mockDetector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		catalog:  testCatalog(),
		images:   &mockImages{},
		detector: &mockDetector{},
	}
	lib := assets.NewLibrary(fstest.MapFS{"egg.png": {Data: []byte("x")}})
	f.pantry = pantry.New(lib, pantry.DefaultIngredients...)
	f.handler = NewHandler(
		f.catalog,
		favorites.NewService(favorites.NewMemoryStore()),
		f.pantry,
		f.images,
		f.detector,
		Options{ThumbnailWidth: 200, DetectorName: "mock"},
	)
	f.router = gin.New()
	f.handler.Register(f.router)
	return f
}

func (f *fixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func ids(recipes []recipe.Recipe) []string {
	out := make([]string, len(recipes))
	for i, r := range recipes {
		out[i] = r.ID
	}
	return out
}

func TestGetRecipes(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/recipes", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	recipes := decode[[]recipe.Recipe](t, rr)
	assert.Equal(t, []string{"1", "2", "3"}, ids(recipes))
	for _, r := range recipes {
		assert.False(t, r.IsLiked)
	}
}

func TestGetRecipeDetail(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/recipes/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var detail struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Steps []string `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "Omelette", detail.Title)
	assert.Equal(t, []string{"Beat eggs.", "Fry."}, detail.Steps)

	rr = f.do(http.MethodGet, "/recipes/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestToggleLikeAndFavorites(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/recipes/3/like", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, rr)["isLiked"])

	rr = f.do(http.MethodPost, "/recipes/1/like", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	// Favorites come back in the order they were liked.
	rr = f.do(http.MethodGet, "/favorites", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	favs := decode[[]recipe.Recipe](t, rr)
	assert.Equal(t, []string{"3", "1"}, ids(favs))
	for _, r := range favs {
		assert.True(t, r.IsLiked)
	}

	// The catalog reflects the liked state.
	recipes := decode[[]recipe.Recipe](t, f.do(http.MethodGet, "/recipes", ""))
	assert.True(t, recipes[0].IsLiked)
	assert.False(t, recipes[1].IsLiked)
	assert.True(t, recipes[2].IsLiked)

	// Toggling again unlikes.
	rr = f.do(http.MethodPost, "/recipes/3/like", "")
	assert.Equal(t, false, decode[map[string]any](t, rr)["isLiked"])
	favs = decode[[]recipe.Recipe](t, f.do(http.MethodGet, "/favorites", ""))
	assert.Equal(t, []string{"1"}, ids(favs))
}

func TestToggleLikeUnknownRecipe(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/recipes/42/like", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFavoritesSkipRecipesMissingFromCatalog(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/recipes/2/like", "").Code)
	f.catalog.recipes = f.catalog.recipes[:1]

	favs := decode[[]recipe.Recipe](t, f.do(http.MethodGet, "/favorites", ""))
	assert.Empty(t, favs)
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
		wantMsg string
	}{
		{"exact match", `{"ingredients": ["egg", "milk"]}`, []string{"1"}, ""},
		{"surplus and casing", `{"ingredients": [" EGG", "Milk ", "Bread", "cheese", "tomato"]}`, []string{"1", "2", "3"}, ""},
		{"no match", `{"ingredients": ["pork"]}`, []string{}, msgNoMatches},
		{"empty selection", `{"ingredients": []}`, []string{}, msgNoSelection},
		{"missing field", `{}`, []string{}, msgNoSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rr := f.do(http.MethodPost, "/search", tt.body)
			assert.Equal(t, http.StatusOK, rr.Code)

			resp := decode[SearchResponse](t, rr)
			assert.Equal(t, tt.wantIDs, ids(resp.Recipes))
			assert.Equal(t, len(tt.wantIDs), resp.Count)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestSearchBadBody(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/search", `{"ingredients": "egg"`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFavoritesBackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.handler.Favorites = &mockFavorites{err: tt.err}

			for _, path := range []string{"/recipes", "/recipes/1", "/favorites"} {
				assert.Equal(t, tt.wantStatus, f.do(http.MethodGet, path, "").Code, path)
			}
			assert.Equal(t, tt.wantStatus, f.do(http.MethodPost, "/recipes/1/like", "").Code)
			assert.Equal(t, tt.wantStatus, f.do(http.MethodPost, "/search", `{"ingredients": ["egg"]}`).Code)
		})
	}
}

func TestPantryFlow(t *testing.T) {
	f := newFixture(t)

	palette := decode[[]pantry.Ingredient](t, f.do(http.MethodGet, "/pantry", ""))
	require.Len(t, palette, len(pantry.DefaultIngredients))
	assert.Equal(t, "Tomato", palette[0].Name)
	assert.Equal(t, assets.Placeholder, palette[0].Image)
	assert.Equal(t, "egg", palette[2].Image)

	// Nothing selected yet.
	resp := decode[SearchResponse](t, f.do(http.MethodGet, "/pantry/matches", ""))
	assert.Equal(t, msgNoSelection, resp.Message)
	assert.Empty(t, resp.Recipes)

	for _, name := range []string{"Egg", "Milk"} {
		rr := f.do(http.MethodPost, "/pantry/ingredients/"+name+"/toggle", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, decode[map[string]any](t, rr)["selected"])
	}

	resp = decode[SearchResponse](t, f.do(http.MethodGet, "/pantry/matches", ""))
	assert.Equal(t, []string{"1"}, ids(resp.Recipes))
	assert.Empty(t, resp.Message)

	// Deselect milk and the omelette drops out.
	rr := f.do(http.MethodPost, "/pantry/ingredients/milk/toggle", "")
	assert.Equal(t, false, decode[map[string]any](t, rr)["selected"])
	resp = decode[SearchResponse](t, f.do(http.MethodGet, "/pantry/matches", ""))
	assert.Empty(t, resp.Recipes)
	assert.Equal(t, msgNoMatches, resp.Message)
}

func TestAddIngredient(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/pantry/ingredients", `{"name": "  Basil "}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Ingredient pantry.Ingredient `json:"ingredient"`
		Added      bool              `json:"added"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Added)
	assert.Equal(t, pantry.Ingredient{Name: "basil", Image: assets.Placeholder, Selected: true}, body.Ingredient)

	// Adding it again changes nothing.
	rr = f.do(http.MethodPost, "/pantry/ingredients", `{"name": "BASIL"}`)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Added)
	assert.Len(t, f.pantry.Palette(), len(pantry.DefaultIngredients)+1)

	// A palette ingredient is selected, not duplicated.
	rr = f.do(http.MethodPost, "/pantry/ingredients", `{"name": "egg"}`)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Added)
	assert.Equal(t, "Egg", body.Ingredient.Name)
	assert.Len(t, f.pantry.Palette(), len(pantry.DefaultIngredients)+1)
}

func TestAddIngredientRejectsEmpty(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"name": "   "}`, `{}`, `not json`} {
		rr := f.do(http.MethodPost, "/pantry/ingredients", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Len(t, f.pantry.Palette(), len(pantry.DefaultIngredients))
}

func TestToggleUnknownIngredient(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/pantry/ingredients/saffron/toggle", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func scanRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/pantry/scan", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	f.detector.names = []string{"Egg", "Basil", "", "egg"}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, scanRequest(t, "fridge.jpg", []byte("jpeg-data")))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[ScanResponse](t, rr)
	assert.Equal(t, []string{"Egg", "Basil", "", "egg"}, resp.Detected)
	assert.Equal(t, []string{"Egg", "basil"}, resp.Added)
	assert.Equal(t, []byte("jpeg-data"), f.detector.received)

	sel := f.pantry.Selection()
	assert.True(t, sel.Contains("egg"))
	assert.True(t, sel.Contains("basil"))
	assert.Equal(t, 2, sel.Len())
}

func TestScanErrors(t *testing.T) {
	t.Run("no detector", func(t *testing.T) {
		f := newFixture(t)
		f.handler.Detector = nil

		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("png")))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		rr := f.do(http.MethodPost, "/pantry/scan", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad extension", func(t *testing.T) {
		f := newFixture(t)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "notes.txt", []byte("hello")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t)
		f.handler.Options.MaxUploadBytes = 4
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("more than four bytes")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("oversized body is refused before parsing", func(t *testing.T) {
		f := newFixture(t)
		f.handler.Options.MaxUploadBytes = 4
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", bytes.Repeat([]byte("x"), 256<<10)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Nil(t, f.detector.received)
	})

	t.Run("oversized body without length", func(t *testing.T) {
		f := newFixture(t)
		f.handler.Options.MaxUploadBytes = 4
		req := scanRequest(t, "fridge.png", bytes.Repeat([]byte("x"), 256<<10))
		req.ContentLength = -1
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Nil(t, f.detector.received)
	})

	t.Run("detector failure", func(t *testing.T) {
		f := newFixture(t)
		f.detector.err = errors.New("model offline")
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("png")))
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, 0, f.pantry.Selection().Len())
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t)
		f.detector.err = platform.ErrRateLimited
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("png")))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})

	t.Run("breaker open", func(t *testing.T) {
		f := newFixture(t)
		f.detector.err = fmt.Errorf("%w: circuit breaker is open", platform.ErrDetectorUnavailable)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("png")))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("detector timeout", func(t *testing.T) {
		f := newFixture(t)
		f.detector.err = context.DeadlineExceeded
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, scanRequest(t, "fridge.png", []byte("png")))
		assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	})
}

func TestGetImage(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/images/omelette", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rr.Body.String())
	assert.Equal(t, "omelette", f.images.name)
	assert.Equal(t, uint(200), f.images.width)

	rr = f.do(http.MethodGet, "/images/omelette?width=64", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint(64), f.images.width)

	rr = f.do(http.MethodGet, fmt.Sprintf("/images/omelette?width=%d", assets.MaxThumbnailWidth), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint(assets.MaxThumbnailWidth), f.images.width)

	for _, width := range []string{"-3", "0", "abc", "2049", "65535", "99999999999"} {
		f.images.name = ""
		rr = f.do(http.MethodGet, "/images/omelette?width="+width, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, width)
		assert.Empty(t, f.images.name, "thumbnail rendered for width %s", width)
	}

	f.images.err = errors.New("decode failed")
	rr = f.do(http.MethodGet, "/images/omelette", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCatalogLoadedPerRequest(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/recipes", "")
	f.do(http.MethodGet, "/recipes", "")
	assert.Equal(t, 2, f.catalog.loads)
}
