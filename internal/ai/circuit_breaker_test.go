package ai

import (
	"errors"
	"testing"
	"time"

	"cvtailor/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledBreakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}
}

func TestCircuitBreakerDisabledPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker[string]("AI", "extract", config.CircuitBreakerConfig{}, nil, 0, 0)
	assert.Nil(t, cb)

	out, err := cb.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.True(t, cb.IsHealthy())
	assert.False(t, cb.Stats().Enabled)
}

func TestCircuitBreakerNamesPerOperation(t *testing.T) {
	extract := NewCircuitBreaker[string]("AI", "extract", enabledBreakerConfig(), nil, 0, 0)
	analyze := NewCircuitBreaker[string]("AI", "analyze", enabledBreakerConfig(), nil, 0, 0)

	assert.Equal(t, "AI-extract", extract.Stats().Name)
	assert.Equal(t, "AI-analyze", analyze.Stats().Name)
	assert.Equal(t, "closed", extract.Stats().State)
	assert.NotSame(t, extract, analyze)
}

func TestCircuitBreakerTripsOnFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker[string]("AI", "analyze", enabledBreakerConfig(), nil, 0, 0)
	boom := errors.New("upstream down")

	for range 2 {
		_, err := cb.Execute(func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	}

	assert.False(t, cb.IsHealthy())
	assert.Equal(t, "open", cb.Stats().State)

	called := false
	_, err := cb.Execute(func() (string, error) {
		called = true
		return "ok", nil
	})
	assert.Error(t, err)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestCircuitBreakerOverrideThresholds(t *testing.T) {
	// lenient: five requests at 80% before tripping
	cb := NewCircuitBreaker[int]("AI-Model", "extract", enabledBreakerConfig(), nil, 5, 0.8)
	boom := errors.New("model lookup failed")

	for range 3 {
		_, _ = cb.Execute(func() (int, error) { return 0, boom })
	}
	assert.True(t, cb.IsHealthy())

	stats := cb.Stats()
	assert.Equal(t, uint32(3), stats.Requests)
	assert.Equal(t, uint32(3), stats.ConsecutiveFailures)
}
