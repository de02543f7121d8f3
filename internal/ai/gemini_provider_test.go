package ai

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"cvtailor/internal/config"
	appErrors "cvtailor/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func float32Ptr(f float32) *float32 { return &f }
func int32Ptr(i int32) *int32       { return &i }
func boolPtr(b bool) *bool          { return &b }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"net error", &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}, true},
		{"googleapi 503", &googleapi.Error{Code: 503}, true},
		{"googleapi 429 wrapped", fmt.Errorf("generate: %w", &googleapi.Error{Code: 429}), true},
		{"googleapi 400", &googleapi.Error{Code: 400}, false},
		{"genai 500", genai.APIError{Code: 500}, true},
		{"genai 403", genai.APIError{Code: 403}, false},
		{"plain", fmt.Errorf("bad prompt"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond

	first := backoffDelay(base, 1)
	assert.GreaterOrEqual(t, first, base)
	assert.Less(t, first, base+base/10+time.Millisecond)

	third := backoffDelay(base, 3)
	assert.GreaterOrEqual(t, third, 4*base)

	assert.Equal(t, maxBackoff, backoffDelay(time.Second, 10))
}

func TestBuildConfig(t *testing.T) {
	g := &GeminiProvider{config: config.OperationAIConfig{
		Temperature: float32Ptr(0.2),
		MaxTokens:   int32Ptr(2048),
	}}

	t.Run("configured values", func(t *testing.T) {
		cfg := g.buildConfig(GenerateRequest{JSONOutput: true})
		require.NotNil(t, cfg.Temperature)
		assert.Equal(t, float32(0.2), *cfg.Temperature)
		assert.Equal(t, int32(2048), cfg.MaxOutputTokens)
		assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	})

	t.Run("request overrides", func(t *testing.T) {
		cfg := g.buildConfig(GenerateRequest{Temperature: float32Ptr(0.9), MaxTokens: 100})
		assert.Equal(t, float32(0.9), *cfg.Temperature)
		assert.Equal(t, int32(100), cfg.MaxOutputTokens)
		assert.Empty(t, cfg.ResponseMIMEType)
	})

	t.Run("request temperature is copied", func(t *testing.T) {
		temp := float32(0.5)
		cfg := g.buildConfig(GenerateRequest{Temperature: &temp})
		temp = 1
		assert.Equal(t, float32(0.5), *cfg.Temperature)
	})
}

func TestUseSystemPrompts(t *testing.T) {
	assert.True(t, (&GeminiProvider{}).useSystemPrompts())
	assert.True(t, (&GeminiProvider{config: config.OperationAIConfig{UseSystemPrompts: boolPtr(true)}}).useSystemPrompts())
	assert.False(t, (&GeminiProvider{config: config.OperationAIConfig{UseSystemPrompts: boolPtr(false)}}).useSystemPrompts())
}

func TestExtractTokenUsage(t *testing.T) {
	assert.Nil(t, extractTokenUsage(nil))
	assert.Nil(t, extractTokenUsage(&genai.GenerateContentResponse{}))

	usage := extractTokenUsage(&genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 30,
			TotalTokenCount:      150,
		},
	})
	require.NotNil(t, usage)
	assert.Equal(t, int64(120), usage.InputTokens)
	assert.Equal(t, int64(30), usage.OutputTokens)
	assert.Equal(t, int64(150), usage.TotalTokens)
}

func TestExecuteWithRetry(t *testing.T) {
	retries := 2
	g := &GeminiProvider{
		config:      config.OperationAIConfig{MaxRetries: &retries},
		operation:   config.OperationAnalyze,
		backoffBase: time.Millisecond,
		logger:      appErrors.Discard(),
	}

	t.Run("recovers after transient error", func(t *testing.T) {
		calls := 0
		resp, err := g.executeWithRetry(context.Background(), func() (*genai.GenerateContentResponse, error) {
			calls++
			if calls < 2 {
				return nil, &googleapi.Error{Code: 503}
			}
			return &genai.GenerateContentResponse{}, nil
		})
		require.NoError(t, err)
		assert.NotNil(t, resp)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := g.executeWithRetry(context.Background(), func() (*genai.GenerateContentResponse, error) {
			calls++
			return nil, &googleapi.Error{Code: 400}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := g.executeWithRetry(context.Background(), func() (*genai.GenerateContentResponse, error) {
			calls++
			return nil, &googleapi.Error{Code: 429}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}

func TestGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), config.OperationAIConfig{Model: "gemini-2.0-flash"}, config.OperationExtract, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_API_KEY")
}

func TestGeminiProviderStatsWithoutBreakers(t *testing.T) {
	g := &GeminiProvider{}
	stats := g.BreakerStats()
	assert.False(t, stats["generate"].Enabled)
	assert.False(t, stats["model"].Enabled)
	assert.True(t, g.IsHealthy())
}
