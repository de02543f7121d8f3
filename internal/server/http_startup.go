package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cvtailor/internal/config"
	"cvtailor/internal/scoring"
)

const shutdownTimeout = 30 * time.Second

// Handler returns the routed handler wrapped in the tracing middleware
func (s *Server) Handler() http.Handler {
	return s.deps.Observability.HTTPMiddleware()(s.setupRoutes())
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	if err := s.startWeightsWatcher(ctx); err != nil {
		_ = listener.Close()
		return err
	}
	if err := s.startKeyWatcher(ctx); err != nil {
		s.stopWatchers()
		_ = listener.Close()
		return err
	}

	s.displayServerInfo()

	return s.serve(ctx, httpServer, listener)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// serve runs httpServer on listener and handles graceful shutdown
func (s *Server) serve(ctx context.Context, httpServer *http.Server, listener net.Listener) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopWatchers()
		s.cleanupRateLimiter()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.stopWatchers()
	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// startWeightsWatcher hot reloads the weights file into the engine
func (s *Server) startWeightsWatcher(ctx context.Context) error {
	if s.AppConfig == nil || !s.AppConfig.Scoring.WatchWeights || s.AppConfig.Scoring.WeightsFile == "" {
		return nil
	}

	// reloads are recorded after ctx is canceled too
	metricsCtx := context.WithoutCancel(ctx)
	om := s.deps.Observability
	s.weightsWatcher = config.NewWeightsWatcher(s.AppConfig.Scoring.WeightsFile, 0,
		func(w scoring.Weights) error {
			err := s.deps.Engine.UpdateWeights(w)
			om.RecordWeightsReload(metricsCtx, err == nil)
			return err
		}, s.Logger)
	s.weightsWatcher.OnError(func(error) {
		om.RecordWeightsReload(metricsCtx, false)
	})

	if err := s.weightsWatcher.Start(); err != nil {
		s.weightsWatcher = nil
		return fmt.Errorf("failed to watch weights file: %w", err)
	}
	return nil
}

// startKeyWatcher polls Vault for rotated API keys when configured
func (s *Server) startKeyWatcher(ctx context.Context) error {
	if s.AppConfig == nil {
		return nil
	}
	vc := s.AppConfig.Vault
	if !vc.Enabled || vc.WatchInterval <= 0 || vc.Secrets.APIKeys == "" {
		return nil
	}

	client, err := config.NewVaultClient(ctx, vc, s.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to vault for API key rotation: %w", err)
	}
	return s.watchAPIKeys(ctx, client, vc.Secrets.APIKeys, vc.WatchInterval)
}

func (s *Server) watchAPIKeys(ctx context.Context, source SecretSource, path string, interval time.Duration) error {
	s.keyWatcher = NewAPIKeyWatcher(source, path, interval, s.SetAPIKeys, s.Logger)
	if err := s.keyWatcher.Start(ctx); err != nil {
		s.keyWatcher = nil
		return err
	}
	return nil
}

func (s *Server) stopWatchers() {
	if s.weightsWatcher != nil {
		if err := s.weightsWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop weights watcher")
		}
	}
	if s.keyWatcher != nil {
		s.keyWatcher.Stop()
	}
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
