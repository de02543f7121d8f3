package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cvtailor/internal/config"
	"cvtailor/internal/errors"
)

// SecretSource reads KVv2 secrets. *config.VaultClient implements it.
type SecretSource interface {
	GetSecretV2(ctx context.Context, path string) (*config.VaultSecret, error)
}

// APIKeyWatcher polls a Vault secret holding the server API keys and hands
// every new version to onChange. The secret's "keys" field is a
// comma-separated list.
type APIKeyWatcher struct {
	mu sync.RWMutex

	source       SecretSource
	secretPath   string
	pollInterval time.Duration
	onChange     func(keys []string)
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastError   string
}

// NewAPIKeyWatcher creates a watcher. The version seen at start is taken as
// current, since the keys were already loaded with the config.
func NewAPIKeyWatcher(source SecretSource, secretPath string, pollInterval time.Duration, onChange func([]string), logger *errors.Logger) *APIKeyWatcher {
	if logger == nil {
		logger = errors.Discard()
	}
	return &APIKeyWatcher{
		source:       source,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onChange:     onChange,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (kw *APIKeyWatcher) Start(ctx context.Context) error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("API key watcher is already running")
	}
	if kw.pollInterval <= 0 {
		return fmt.Errorf("API key watcher needs a positive poll interval")
	}

	secret, err := kw.source.GetSecretV2(ctx, kw.secretPath)
	if err != nil {
		return fmt.Errorf("failed to read API key secret: %w", err)
	}
	kw.lastVersion = secret.Version
	kw.running = true

	go kw.pollLoop()
	kw.logger.Info("API key watcher started",
		"secret_path", kw.secretPath,
		"poll_interval", kw.pollInterval,
		"version", kw.lastVersion)
	return nil
}

// Stop stops polling
func (kw *APIKeyWatcher) Stop() {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if !kw.running {
		return
	}
	close(kw.stopChan)
	kw.running = false
	kw.logger.Info("API key watcher stopped")
}

func (kw *APIKeyWatcher) pollLoop() {
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), kw.pollInterval)
			kw.poll(ctx)
			cancel()
		case <-kw.stopChan:
			return
		}
	}
}

// poll checks the secret once and applies a newer version
func (kw *APIKeyWatcher) poll(ctx context.Context) {
	secret, err := kw.source.GetSecretV2(ctx, kw.secretPath)
	if err != nil {
		kw.setError(err)
		kw.logger.LogError(err, "Failed to check Vault for API key updates")
		return
	}

	kw.mu.Lock()
	changed := secret.Version > kw.lastVersion
	if changed {
		kw.lastVersion = secret.Version
	}
	kw.mu.Unlock()
	if !changed {
		return
	}

	raw, _ := secret.Data["keys"].(string)
	keys := parseKeys(raw)
	if len(keys) == 0 {
		// an empty set would switch authentication off
		err := fmt.Errorf("secret version %d at %s has no keys", secret.Version, kw.secretPath)
		kw.setError(err)
		kw.logger.LogError(err, "Ignoring API key update")
		return
	}

	kw.setError(nil)
	kw.onChange(keys)
	kw.logger.Info("API keys rotated from Vault", "version", secret.Version, "count", len(keys))
}

func (kw *APIKeyWatcher) setError(err error) {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if err == nil {
		kw.lastError = ""
		return
	}
	kw.lastError = err.Error()
}

// Status returns the watcher state for /stats
func (kw *APIKeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"last_version":  kw.lastVersion,
		"last_error":    kw.lastError,
	}
}

func parseKeys(value string) []string {
	var keys []string
	for k := range strings.SplitSeq(value, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
