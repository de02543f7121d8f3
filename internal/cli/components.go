package cli

import (
	"context"
	"fmt"
	"time"

	"cvtailor/internal/ai"
	"cvtailor/internal/analysis"
	"cvtailor/internal/config"
	"cvtailor/internal/errors"
	"cvtailor/internal/matching"
	"cvtailor/internal/observability"
	"cvtailor/internal/scoring"
	"cvtailor/internal/storage"
)

// newEngine builds the scoring engine from the loaded weights
func newEngine(cfg *config.Config, logger *errors.Logger) (*scoring.Engine, error) {
	return scoring.NewEngine(cfg.Scoring.Weights, cfg.Scoring.Consistency, logger)
}

func newStore(cfg *config.Config, logger *errors.Logger) (*storage.FileStore, error) {
	return storage.NewFileStore(cfg.Storage.DataDir, logger)
}

// newAIService creates and initializes the model service. Every model call is
// reported to om.
func newAIService(ctx context.Context, cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) (*ai.Service, error) {
	if err := cfg.RequireAIKey(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, "AI commands need an API key", err)
	}

	service := ai.NewService(cfg, logger)
	service.SetObserver(aiObserver(om))
	if err := service.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}
	return service, nil
}

func aiObserver(om *observability.ObservabilityManager) ai.Observer {
	return func(ctx context.Context, operation string, usage *ai.TokenUsage, elapsed time.Duration, err error) {
		var tokens *observability.TokenUsage
		if usage != nil {
			tokens = &observability.TokenUsage{
				InputTokens:  usage.InputTokens,
				OutputTokens: usage.OutputTokens,
				TotalTokens:  usage.TotalTokens,
			}
		}
		om.RecordAIOperation(ctx, operation, elapsed, tokens, err)
	}
}

// newPipeline wires the analysis pipeline around an initialized service
func newPipeline(cfg *config.Config, service analysis.Analyzer, engine *scoring.Engine, store storage.Store, logger *errors.Logger, om *observability.ObservabilityManager) *analysis.Pipeline {
	opts := []analysis.Option{analysis.WithRecorder(om)}
	if store != nil {
		opts = append(opts, analysis.WithStore(store))
	}
	return analysis.NewPipeline(service, matching.NewMatcher(cfg.Scoring.Synonyms), engine, logger, opts...)
}
