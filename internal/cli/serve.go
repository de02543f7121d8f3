package cli

import (
	"cvtailor/internal/analysis"
	"cvtailor/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ATS scoring HTTP server",
	Long: `Start an HTTP server that exposes ATS scoring as a REST API.

Available endpoints:
- POST /score: Compute a score from precomputed match data (?save=true to store it)
- POST /validate: Cross-check component analyzer outputs
- POST /analyze: Score a CV against a job description using AI
- GET /history?company=: Recorded scores of a company
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

/analyze is only available when an AI API key is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)
	om := getObservabilityFromContext(ctx)

	// flags win over config
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Engine:        engine,
		Store:         store,
		Observability: om,
	}

	if cfg.RequireAIKey() == nil {
		aiService, err := newAIService(ctx, cfg, logger, om)
		if err != nil {
			return err
		}
		defer func() {
			if err := aiService.Close(); err != nil {
				logger.LogError(err, "Failed to close AI service")
			}
		}()
		pipeline := newPipeline(cfg, aiService, engine, store, logger, om)
		deps.Analyses = analysis.NewDeduplicator(pipeline)
		deps.Models = aiService
	} else {
		logger.Warn("No AI API key configured, /analyze is disabled")
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, deps, logger).Start(ctx)
}
