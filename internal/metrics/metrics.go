// Package metrics holds the Prometheus collectors for the recipe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog load results.
const (
	LoadOK        = "ok"
	LoadNotFound  = "not_found"
	LoadMalformed = "malformed"
)

// Search sources.
const (
	SearchExplicit = "explicit"
	SearchPantry   = "pantry"
)

var (
	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridge_catalog_loads_total",
			Help: "Catalog loads by result",
		},
		[]string{"result"},
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fridge_catalog_recipes",
			Help: "Number of recipes in the most recent successful catalog load",
		},
	)

	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridge_searches_total",
			Help: "Recipe searches by selection source",
		},
		[]string{"source"},
	)

	SearchMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fridge_search_matches",
			Help:    "Recipes returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridge_like_toggles_total",
			Help: "Like toggles by resulting state",
		},
		[]string{"state"},
	)

	DetectorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridge_detector_calls_total",
			Help: "Ingredient detector calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)
)

// RecordSearch records a search and the number of matches it produced.
func RecordSearch(source string, matches int) {
	Searches.WithLabelValues(source).Inc()
	SearchMatches.Observe(float64(matches))
}

// RecordLike records a like toggle.
func RecordLike(liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	LikeToggles.WithLabelValues(state).Inc()
}
