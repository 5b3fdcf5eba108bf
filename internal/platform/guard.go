package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"fridgemonster/internal/logging"
)

var (
	// ErrDetectorUnavailable is returned while the circuit breaker is open.
	ErrDetectorUnavailable = errors.New("ingredient detector unavailable")
	// ErrRateLimited is returned when scans arrive faster than allowed.
	ErrRateLimited = errors.New("too many scans")
)

// Detector finds ingredients in a photo.
type Detector interface {
	DetectIngredients(ctx context.Context, imageData []byte) ([]string, error)
}

// GuardConfig controls the breaker and limiter around a remote detector.
type GuardConfig struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
	// ScansPerMinute caps detector calls; 0 disables the limit.
	ScansPerMinute int
}

// GuardedDetector wraps a detector with a circuit breaker and a rate limit.
type GuardedDetector struct {
	next    Detector
	cb      *gobreaker.CircuitBreaker[[]string]
	limiter *rate.Limiter
}

// Guard wraps next. Zero config fields take defaults.
func Guard(name string, next Detector, cfg GuardConfig) *GuardedDetector {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A reply without a list, or a caller giving up, says nothing about
		// the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoIngredients) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("detector", name).Str("from", from.String()).Str("to", to.String()).Msg("detector breaker state changed")
		},
	}

	g := &GuardedDetector{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[[]string](settings),
	}
	if cfg.ScansPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ScansPerMinute)), cfg.ScansPerMinute)
	}
	return g
}

// DetectIngredients calls the wrapped detector unless the breaker is open
// or the rate limit is exhausted.
func (g *GuardedDetector) DetectIngredients(ctx context.Context, imageData []byte) ([]string, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, ErrRateLimited
	}

	names, err := g.cb.Execute(func() ([]string, error) {
		return g.next.DetectIngredients(ctx, imageData)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrDetectorUnavailable, err)
	}
	return names, err
}

// State reports the breaker state, e.g. "closed" or "open".
func (g *GuardedDetector) State() string {
	return g.cb.State().String()
}
