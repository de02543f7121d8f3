package ai

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"cvtailor/internal/config"
	appErrors "cvtailor/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const (
	defaultModelCheckTimeout = 10 * time.Second
	maxBackoff               = 30 * time.Second
)

// GeminiProvider implements TextGenerator for Google Gemini
type GeminiProvider struct {
	client            *genai.Client
	config            config.OperationAIConfig
	operation         string
	generateBreaker   *CircuitBreaker[*genai.GenerateContentResponse]
	modelBreaker      *CircuitBreaker[*genai.Model]
	modelCheckTimeout time.Duration
	backoffBase       time.Duration
	logger            *appErrors.Logger
}

var _ TextGenerator = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini client for one operation (extract or analyze)
func NewGeminiProvider(ctx context.Context, cfg config.OperationAIConfig, operation string, logger *appErrors.Logger) (*GeminiProvider, error) {
	if logger == nil {
		logger = appErrors.Discard()
	}
	if cfg.APIKey == "" {
		return nil, appErrors.NewConfigError(appErrors.ErrCodeMissingAPIKey,
			fmt.Sprintf("No API key configured for the %s operation", operation), nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:          client,
		config:          cfg,
		operation:       operation,
		generateBreaker: NewCircuitBreaker[*genai.GenerateContentResponse]("AI", operation, cfg.CircuitBreaker, logger, 0, 0),
		// Model info is less critical, so use more lenient settings
		modelBreaker:      NewCircuitBreaker[*genai.Model]("AI-Model", operation, cfg.CircuitBreaker, logger, 5, 0.8),
		modelCheckTimeout: defaultModelCheckTimeout,
		backoffBase:       time.Second,
		logger:            logger.With("operation", operation, "model", cfg.Model),
	}, nil
}

// SetModelCheckTimeout overrides the timeout used by GetModelInfo
func (g *GeminiProvider) SetModelCheckTimeout(d time.Duration) {
	if d > 0 {
		g.modelCheckTimeout = d
	}
}

// GenerateText sends one prompt and returns the raw response text
func (g *GeminiProvider) GenerateText(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error) {
	tracer := otel.Tracer("cvtailor.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+g.operation)
	defer span.End()

	genaiConfig := g.buildConfig(req)
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		if g.useSystemPrompts() {
			genaiConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
		} else {
			prompt = req.SystemPrompt + "\n\n" + prompt
		}
	}

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("input.prompt_length", len(prompt)),
	)
	if genaiConfig.Temperature != nil {
		span.SetAttributes(attribute.Float64("ai.temperature", float64(*genaiConfig.Temperature)))
	}

	if g.config.Timeout != nil && *g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *g.config.Timeout)
		defer cancel()
	}

	result, err := g.generateBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		code := appErrors.ErrCodeAIServiceFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = appErrors.ErrCodeAITimeout
		}
		return "", nil, appErrors.NewAIError(code, "Failed to generate content for "+g.operation, err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Empty response from model for "+g.operation, nil)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true), attribute.Int("output.length", len(text)))
	return text, usage, nil
}

func (g *GeminiProvider) useSystemPrompts() bool {
	return g.config.UseSystemPrompts == nil || *g.config.UseSystemPrompts
}

// buildConfig applies request overrides on top of the operation configuration
func (g *GeminiProvider) buildConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	switch {
	case req.Temperature != nil:
		t := *req.Temperature
		cfg.Temperature = &t
	case g.config.Temperature != nil:
		t := *g.config.Temperature
		cfg.Temperature = &t
	}

	switch {
	case req.MaxTokens > 0:
		cfg.MaxOutputTokens = req.MaxTokens
	case g.config.MaxTokens != nil && *g.config.MaxTokens > 0:
		cfg.MaxOutputTokens = *g.config.MaxTokens
	}
	return cfg
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed", "error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	g.logger.Debug("Model availability check successful",
		"display_name", info.DisplayName,
		"version", info.Version)
	return info
}

// BreakerStats returns both breakers' statistics
func (g *GeminiProvider) BreakerStats() map[string]BreakerStats {
	return map[string]BreakerStats{
		"generate": g.generateBreaker.Stats(),
		"model":    g.modelBreaker.Stats(),
	}
}

// IsHealthy reports whether both breakers are closed
func (g *GeminiProvider) IsHealthy() bool {
	return g.generateBreaker.IsHealthy() && g.modelBreaker.IsHealthy()
}

// Close implements TextGenerator. The genai client holds no resources in
// single-shot usage.
func (g *GeminiProvider) Close() error {
	return nil
}

// executeWithRetry executes an AI call with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := 0
	if g.config.MaxRetries != nil {
		maxRetries = *g.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(g.backoffBase, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry", "total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts", "error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"total_attempts", maxRetries+1)
	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", g.operation, maxRetries, lastErr)
}

// backoffDelay doubles per attempt with up to 10% jitter, capped at 30s
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if jitterMax := int64(float64(delay) * 0.1); jitterMax > 0 {
		if jitter, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			delay += time.Duration(jitter.Int64())
		}
	}
	return min(delay, maxBackoff)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Timeouts, resets and refused connections
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
