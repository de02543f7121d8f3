package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cvtailor/internal/config"
	"cvtailor/internal/errors"
	"cvtailor/internal/types"
)

var skillSetSchema = MustCompileSchema(`{
  "type": "object",
  "properties": {
    "technical_skills": {"type": "array", "items": {"type": "string"}},
    "soft_skills":      {"type": "array", "items": {"type": "string"}},
    "domain_keywords":  {"type": "array", "items": {"type": "string"}}
  },
  "required": ["technical_skills", "soft_skills", "domain_keywords"]
}`)

var jobSkillSetSchema = MustCompileSchema(`{
  "type": "object",
  "properties": {
    "technical_skills":   {"type": "array", "items": {"type": "string"}},
    "soft_skills":        {"type": "array", "items": {"type": "string"}},
    "domain_keywords":    {"type": "array", "items": {"type": "string"}},
    "required_keywords":  {"type": "array", "items": {"type": "string"}},
    "preferred_keywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["technical_skills", "soft_skills", "domain_keywords"]
}`)

var analysisSchema = MustCompileSchema(`{"type": "object", "minProperties": 1}`)

// Observer is told about every model call. operation is the prompt name.
type Observer func(ctx context.Context, operation string, usage *TokenUsage, elapsed time.Duration, err error)

// statsProvider is implemented by generators that sit behind circuit breakers
type statsProvider interface {
	BreakerStats() map[string]BreakerStats
	IsHealthy() bool
}

// Service runs skill extraction and the component analyzers. It is created
// with NewService and must be initialized before use and closed afterwards.
type Service struct {
	cfg    *config.Config
	logger *errors.Logger

	mu          sync.RWMutex
	initialized bool
	extract     TextGenerator
	analyze     TextGenerator
	models      map[string]string

	extractPrompts PromptSet
	analyzePrompts PromptSet
	observer       Observer
}

// NewService creates an uninitialized service from configuration
func NewService(cfg *config.Config, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Service{
		cfg:            cfg,
		logger:         logger,
		extractPrompts: NewPromptSet(config.OperationExtract, cfg.GetExtractConfig().CustomPrompts),
		analyzePrompts: NewPromptSet(config.OperationAnalyze, cfg.GetAnalyzeConfig().CustomPrompts),
	}
}

// NewServiceWithGenerators returns a ready service over existing generators.
// A nil cfg uses built-in prompts.
func NewServiceWithGenerators(extract, analyze TextGenerator, cfg *config.Config, logger *errors.Logger) *Service {
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := NewService(cfg, logger)
	s.extract = extract
	s.analyze = analyze
	s.models = map[string]string{}
	s.initialized = true
	return s
}

// SetObserver installs a hook called after every model call
func (s *Service) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// Initialize creates one provider per operation. Calling it twice is a no-op.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	extractCfg := s.cfg.GetExtractConfig()
	analyzeCfg := s.cfg.GetAnalyzeConfig()

	extract, err := s.newProvider(ctx, extractCfg, config.OperationExtract)
	if err != nil {
		return err
	}
	analyze, err := s.newProvider(ctx, analyzeCfg, config.OperationAnalyze)
	if err != nil {
		_ = extract.Close()
		return err
	}

	s.extract = extract
	s.analyze = analyze
	s.models = map[string]string{
		config.OperationExtract: extractCfg.Model,
		config.OperationAnalyze: analyzeCfg.Model,
	}
	s.initialized = true
	return nil
}

func (s *Service) newProvider(ctx context.Context, cfg config.OperationAIConfig, operation string) (TextGenerator, error) {
	s.logger.Debug("Initializing AI provider",
		"provider", cfg.Provider,
		"operation_type", operation,
		"model", cfg.Model)

	switch cfg.Provider {
	case "gemini":
		p, err := NewGeminiProvider(ctx, cfg, operation, s.logger)
		if err != nil {
			return nil, err
		}
		if s.cfg.Observability.HealthCheck.AIModelCheckTimeout > 0 {
			p.SetModelCheckTimeout(s.cfg.Observability.HealthCheck.AIModelCheckTimeout)
		}
		return p, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// Close releases the providers
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false

	var firstErr error
	for _, g := range []TextGenerator{s.extract, s.analyze} {
		if g == nil {
			continue
		}
		if err := g.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ModelUsed is the model name recorded on score records
func (s *Service) ModelUsed() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.models[config.OperationAnalyze]; m != "" {
		return m
	}
	return s.cfg.AI.Model
}

func (s *Service) generators() (TextGenerator, TextGenerator, Observer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, nil, nil, errors.NewInternalError(errors.ErrCodeAINotReady, "AI service used before Initialize", nil)
	}
	return s.extract, s.analyze, s.observer, nil
}

// ExtractCVSkills asks the model for the CV's skills
func (s *Service) ExtractCVSkills(ctx context.Context, cvText string) (types.SkillSet, *TokenUsage, error) {
	extract, _, observer, err := s.generators()
	if err != nil {
		return types.SkillSet{}, nil, err
	}
	prompt, err := s.extractPrompts.Render(PromptCVSkills, cvText)
	if err != nil {
		return types.SkillSet{}, nil, err
	}
	text, usage, err := s.call(ctx, extract, observer, PromptCVSkills, s.extractPrompts.System(), prompt)
	if err != nil {
		return types.SkillSet{}, usage, err
	}
	skills, err := ParseStructuredOutput[types.SkillSet](text, skillSetSchema)
	return skills, usage, err
}

// ExtractJobSkills asks the model for the job description's skills and
// required/preferred keywords
func (s *Service) ExtractJobSkills(ctx context.Context, jobDescription string) (types.JobSkillSet, *TokenUsage, error) {
	extract, _, observer, err := s.generators()
	if err != nil {
		return types.JobSkillSet{}, nil, err
	}
	prompt, err := s.extractPrompts.Render(PromptJDSkills, jobDescription)
	if err != nil {
		return types.JobSkillSet{}, nil, err
	}
	text, usage, err := s.call(ctx, extract, observer, PromptJDSkills, s.extractPrompts.System(), prompt)
	if err != nil {
		return types.JobSkillSet{}, usage, err
	}
	skills, err := ParseStructuredOutput[types.JobSkillSet](text, jobSkillSetSchema)
	return skills, usage, err
}

// Analyze runs one component analyzer and returns its raw JSON object
func (s *Service) Analyze(ctx context.Context, analyzer, cvText, jobDescription string) (map[string]any, *TokenUsage, error) {
	_, analyze, observer, err := s.generators()
	if err != nil {
		return nil, nil, err
	}
	prompt, err := s.analyzePrompts.Render(analyzer, cvText, jobDescription)
	if err != nil {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Unknown analyzer", err)
	}
	text, usage, err := s.call(ctx, analyze, observer, analyzer, s.analyzePrompts.System(), prompt)
	if err != nil {
		return nil, usage, err
	}
	blob, err := ParseStructuredOutput[map[string]any](text, analysisSchema)
	return blob, usage, err
}

func (s *Service) call(ctx context.Context, g TextGenerator, observer Observer, operation, system, prompt string) (string, *TokenUsage, error) {
	start := time.Now()
	text, usage, err := g.GenerateText(ctx, GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: system,
		JSONOutput:   true,
	})
	if observer != nil {
		observer(ctx, operation, usage, time.Since(start), err)
	}
	return text, usage, err
}

// ModelInfo reports model availability per operation
func (s *Service) ModelInfo(ctx context.Context) map[string]*ModelInfo {
	extract, analyze, _, err := s.generators()
	if err != nil {
		return map[string]*ModelInfo{}
	}
	return map[string]*ModelInfo{
		config.OperationExtract: extract.GetModelInfo(ctx),
		config.OperationAnalyze: analyze.GetModelInfo(ctx),
	}
}

// BreakerStats returns circuit breaker statistics per operation
func (s *Service) BreakerStats() map[string]any {
	extract, analyze, _, err := s.generators()
	stats := map[string]any{}
	if err != nil {
		return stats
	}

	healthy := true
	for op, g := range map[string]TextGenerator{
		config.OperationExtract: extract,
		config.OperationAnalyze: analyze,
	} {
		sp, ok := g.(statsProvider)
		if !ok {
			continue
		}
		stats[op] = sp.BreakerStats()
		healthy = healthy && sp.IsHealthy()
	}
	stats["overall_healthy"] = healthy
	return stats
}
