package ai

import (
	"context"
)

// TextGenerator is the boundary to a language model. Implementations must be
// safe for concurrent use.
type TextGenerator interface {
	GenerateText(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// GenerateRequest is one prompt round trip. Zero Temperature and MaxTokens
// fall back to the provider's configuration.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  *float32
	MaxTokens    int32
	// JSONOutput asks the provider for a JSON response when it supports it
	JSONOutput bool
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
