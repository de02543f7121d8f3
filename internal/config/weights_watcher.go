package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cvtailor/internal/errors"
	"cvtailor/internal/scoring"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LoadWeightsFile reads a YAML (or JSON/TOML, by extension) weighting table.
// Groups or fields the file leaves out keep their default values.
func LoadWeightsFile(path string) (scoring.Weights, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return scoring.Weights{}, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Cannot read weights file: %s", path), err)
	}

	weights := scoring.DefaultWeights()
	if err := v.Unmarshal(&weights); err != nil {
		return scoring.Weights{}, errors.NewConfigError(errors.ErrCodeInvalidWeights,
			fmt.Sprintf("Cannot decode weights file: %s", path), err)
	}
	if err := weights.Validate(); err != nil {
		return scoring.Weights{}, err
	}
	return weights, nil
}

// WeightsWatcher reloads the weighting table whenever the weights file changes
type WeightsWatcher struct {
	mu sync.Mutex

	path        string
	lastModTime time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onChange func(scoring.Weights) error
	onError  func(error)
	logger   *errors.Logger

	running bool
}

// NewWeightsWatcher creates a watcher for path. onChange receives every valid
// table; invalid files are logged and skipped.
func NewWeightsWatcher(path string, debounceDelay time.Duration, onChange func(scoring.Weights) error, logger *errors.Logger) *WeightsWatcher {
	if debounceDelay == 0 {
		debounceDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &WeightsWatcher{
		path:          path,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// OnError registers a callback for reloads that were rejected. Call before Start.
func (ww *WeightsWatcher) OnError(fn func(error)) {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	ww.onError = fn
}

// Start begins watching the weights file
func (ww *WeightsWatcher) Start() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	if ww.running {
		return fmt.Errorf("weights watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if stat, err := os.Stat(ww.path); err == nil {
		ww.lastModTime = stat.ModTime()
	}

	// Editors and config management usually replace the file, so watch the
	// directory as well as the file.
	dir := filepath.Dir(ww.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	ww.fsWatcher = watcher
	ww.running = true
	go ww.watchLoop()

	ww.logger.Info("Weights file watcher started",
		"file", ww.path,
		"debounce_delay", ww.debounceDelay)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (ww *WeightsWatcher) Stop() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	if !ww.running {
		return nil
	}

	close(ww.stopChan)
	if ww.debounceTimer != nil {
		ww.debounceTimer.Stop()
	}
	ww.running = false

	if err := ww.fsWatcher.Close(); err != nil {
		ww.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	ww.logger.Info("Weights file watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently running
func (ww *WeightsWatcher) IsRunning() bool {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	return ww.running
}

func (ww *WeightsWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-ww.fsWatcher.Events:
			if !ok {
				return
			}
			if ww.shouldProcessEvent(event) {
				ww.scheduleReload()
			}

		case err, ok := <-ww.fsWatcher.Errors:
			if !ok {
				return
			}
			ww.logger.LogError(err, "File watcher error")

		case <-ww.reloadChan:
			if ww.hasFileChanged() {
				ww.reload()
			}

		case <-ww.stopChan:
			return
		}
	}
}

func (ww *WeightsWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(ww.path) &&
		filepath.Base(event.Name) != filepath.Base(ww.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (ww *WeightsWatcher) hasFileChanged() bool {
	stat, err := os.Stat(ww.path)
	if err != nil {
		return false
	}
	if stat.ModTime().After(ww.lastModTime) {
		ww.lastModTime = stat.ModTime()
		return true
	}
	return false
}

func (ww *WeightsWatcher) scheduleReload() {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	if ww.debounceTimer != nil {
		ww.debounceTimer.Stop()
	}
	ww.debounceTimer = time.AfterFunc(ww.debounceDelay, func() {
		select {
		case ww.reloadChan <- struct{}{}:
		default:
		}
	})
}

func (ww *WeightsWatcher) reload() {
	weights, err := LoadWeightsFile(ww.path)
	if err != nil {
		ww.logger.LogError(err, "Ignoring invalid weights file", "file", ww.path)
		ww.reportError(err)
		return
	}
	if err := ww.onChange(weights); err != nil {
		ww.logger.LogError(err, "Failed to apply reloaded weights", "file", ww.path)
		ww.reportError(err)
		return
	}
	ww.logger.Info("Scoring weights reloaded", "file", ww.path)
}

func (ww *WeightsWatcher) reportError(err error) {
	ww.mu.Lock()
	fn := ww.onError
	ww.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
