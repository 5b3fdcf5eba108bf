package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fridgemonster/internal/api"
	"fridgemonster/internal/assets"
	"fridgemonster/internal/config"
	"fridgemonster/internal/favorites"
	"fridgemonster/internal/logging"
	"fridgemonster/internal/pantry"
	"fridgemonster/internal/platform"
	"fridgemonster/internal/platform/gemini"
	"fridgemonster/internal/platform/localllm"
	"fridgemonster/internal/recipe"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newFavoritesStore(cfg.Favorites)
	if err != nil {
		return err
	}
	defer closeStore()

	detector, closeDetector, err := newDetector(ctx, cfg.Detector)
	if err != nil {
		return err
	}
	defer closeDetector()

	images := assets.NewDirLibrary(cfg.Assets.Dir)
	handler := api.NewHandler(
		newCatalogLoader(cfg.Catalog),
		favorites.NewService(store),
		pantry.New(images, pantry.DefaultIngredients...),
		images,
		detector,
		api.Options{
			RequestTimeout: cfg.Server.RequestTimeout,
			ScanTimeout:    cfg.Server.ScanTimeout,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			ThumbnailWidth: cfg.Assets.ThumbnailWidth,
			DetectorName:   cfg.Detector.Backend,
		},
	)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(handler, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", cfg.Server.Addr).
			Str("favorites", cfg.Favorites.Backend).
			Str("detector", cfg.Detector.Backend).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newRouter wires middleware and routes around the handler.
func newRouter(handler *api.Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func newCatalogLoader(cfg config.CatalogConfig) *recipe.Loader {
	if cfg.Path == "" {
		return recipe.NewBundledLoader()
	}
	return recipe.NewFileLoader(cfg.Path)
}

func newFavoritesStore(cfg config.FavoritesConfig) (favorites.Store, func(), error) {
	switch cfg.Backend {
	case "badger":
		store, err := favorites.NewBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating badger store: %w", err)
		}
		return store, closer("badger store", store.Close), nil
	case "postgres":
		store, err := favorites.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating postgres store: %w", err)
		}
		return store, closer("postgres store", store.Close), nil
	default:
		return favorites.NewMemoryStore(), func() {}, nil
	}
}

func newDetector(ctx context.Context, cfg config.DetectorConfig) (api.IngredientDetector, func(), error) {
	guard := platform.GuardConfig{
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      cfg.OpenTimeout,
		ScansPerMinute:   cfg.ScansPerMinute,
	}

	switch cfg.Backend {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating gemini client: %w", err)
		}
		return platform.Guard(cfg.Backend, client, guard), closer("gemini client", client.Close), nil
	case "local":
		client := localllm.NewClient(cfg.LocalURL, cfg.LocalModel)
		return platform.Guard(cfg.Backend, client, guard), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func closer(name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logging.Warn().Err(err).Str("component", name).Msg("close failed")
		}
	}
}
