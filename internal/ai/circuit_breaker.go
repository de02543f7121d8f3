package ai

import (
	"fmt"

	"cvtailor/internal/config"
	"cvtailor/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards one kind of model call. A nil breaker passes calls
// straight through.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// BreakerStats is a point-in-time view of a breaker
type BreakerStats struct {
	Enabled             bool   `json:"enabled"`
	Name                string `json:"name,omitempty"`
	State               string `json:"state,omitempty"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// NewCircuitBreaker creates a breaker for an operation, or nil when the
// operation has the breaker disabled. tripRatio and minRequests override the
// configured thresholds when non-zero.
func NewCircuitBreaker[T any](name, operation string, cfg config.CircuitBreakerConfig, logger *errors.Logger, minRequests uint32, tripRatio float64) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.Discard()
	}
	if minRequests == 0 {
		minRequests = cfg.MinRequests
	}
	if tripRatio == 0 {
		tripRatio = cfg.FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("%s-%s", name, operation),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= tripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operation,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", tripRatio)
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn under the breaker
func (b *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats returns breaker statistics
func (b *CircuitBreaker[T]) Stats() BreakerStats {
	if b == nil || b.cb == nil {
		return BreakerStats{Enabled: false}
	}
	counts := b.cb.Counts()
	return BreakerStats{
		Enabled:             true,
		Name:                b.cb.Name(),
		State:               b.cb.State().String(),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

// IsHealthy reports whether calls are flowing normally. Without a breaker
// there is nothing to trip.
func (b *CircuitBreaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
