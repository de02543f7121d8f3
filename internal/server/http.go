package server

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"cvtailor/internal/ai"
	"cvtailor/internal/analysis"
	"cvtailor/internal/config"
	cvErrors "cvtailor/internal/errors"
	"cvtailor/internal/observability"
	"cvtailor/internal/scoring"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"
)

// ScoreResponse wraps a computed record for POST /score
type ScoreResponse struct {
	Record    types.ATSScoreRecord `json:"record"`
	Persisted bool                 `json:"persisted"`
}

// HistoryResponse is the body of GET /history
type HistoryResponse struct {
	Company string                 `json:"company"`
	Entries []types.ATSScoreRecord `json:"entries"`
}

// AnalyzeResponse is the body of POST /analyze
type AnalyzeResponse struct {
	*analysis.Result
	Shared bool `json:"shared"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// AnalysisRunner runs or joins an analysis. *analysis.Deduplicator implements it.
type AnalysisRunner interface {
	Run(ctx context.Context, req types.AnalyzeRequest) (*analysis.Result, bool, error)
}

// ModelStatus reports model health. *ai.Service implements it.
type ModelStatus interface {
	ModelInfo(ctx context.Context) map[string]*ai.ModelInfo
	BreakerStats() map[string]any
}

// Deps are the components the handlers call into. Analyses and Models may be
// nil when no AI key is configured; /analyze then answers 503.
type Deps struct {
	Engine        *scoring.Engine
	Store         storage.Store
	Analyses      AnalysisRunner
	Models        ModelStatus
	Observability *observability.ObservabilityManager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	deps Deps

	// API Authentication, replaceable at runtime by the key watcher
	keysMu  sync.RWMutex
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	weightsWatcher *config.WeightsWatcher
	keyWatcher     *APIKeyWatcher

	// Logger
	Logger *cvErrors.Logger

	// out receives the startup banner
	out io.Writer
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Deps, logger *cvErrors.Logger) *Server {
	if logger == nil {
		logger = cvErrors.Discard()
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		deps:           deps,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		out:            os.Stdout,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. Empty keys are ignored; an empty
// set turns authentication off.
func (s *Server) SetAPIKeys(keys []string) {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	s.keysMu.Lock()
	s.APIKeys = apiKeyMap
	s.keysMu.Unlock()
}

// apiKeyState reports whether auth is on and whether key is accepted
func (s *Server) apiKeyState(key string) (enabled, valid bool) {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.APIKeys) > 0, s.APIKeys[key]
}

func (s *Server) apiKeyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.APIKeys)
}
