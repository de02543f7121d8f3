package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return 15 * time.Second
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler reports service health including AI model and circuit
// breaker status. Scoring works without a model, so a missing AI key is
// reported but does not degrade the service.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "cvtailor",
		"version": s.Version,
	}

	overallHealthy := true

	if s.deps.Models != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
		defer cancel()

		models := s.deps.Models.ModelInfo(ctx)
		response["ai_models"] = models
		for _, info := range models {
			if info == nil || !info.Available {
				overallHealthy = false
			}
		}

		breakers := s.deps.Models.BreakerStats()
		response["circuit_breakers"] = breakers
		if healthy, ok := breakers["overall_healthy"].(bool); ok && !healthy {
			overallHealthy = false
		}
	} else {
		response["ai_models"] = map[string]any{"available": false, "reason": "no AI API key configured"}
	}

	if s.deps.Store != nil {
		if _, err := s.deps.Store.Companies(r.Context()); err != nil {
			response["storage"] = map[string]any{"healthy": false, "error": err.Error()}
			overallHealthy = false
		} else {
			response["storage"] = map[string]any{"healthy": true}
		}
	}

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "cvtailor",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    s.apiKeyCount(),
			"analysis_enabled":       s.deps.Analyses != nil,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.deps.Engine != nil {
		response["scoring_weights"] = s.deps.Engine.Weights()
	}
	if s.deps.Models != nil {
		response["circuit_breakers"] = s.deps.Models.BreakerStats()
	}
	if s.keyWatcher != nil {
		response["api_key_rotation"] = s.keyWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already sent, an encode error cannot be reported
	_ = json.NewEncoder(w).Encode(v)
}
