package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cvtailor/internal/errors"
	"cvtailor/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigFileDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "app:\n  logLevel: debug\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, scoring.DefaultWeights(), cfg.Scoring.Weights)
	assert.Equal(t, scoring.DefaultConsistencyConfig(), cfg.Scoring.Consistency)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	t.Setenv("CVTAILOR_SERVER_PORT", "9999")
	t.Setenv("CVTAILOR_STORAGE_DATADIR", "/var/lib/cvtailor")

	path := writeFile(t, t.TempDir(), "config.yaml", `
ai:
  model: gemini-2.5-flash
  analyze:
    model: gemini-2.5-pro
scoring:
  consistency:
    yearsTolerance: 3
  weights:
    blend:
      keyword: 0.5
      component: 0.5
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "/var/lib/cvtailor", cfg.Storage.DataDir)
	assert.Equal(t, 3.0, cfg.Scoring.Consistency.YearsTolerance)
	assert.Equal(t, 0.5, cfg.Scoring.Weights.Blend.Keyword)
	assert.Equal(t, 0.5, cfg.Scoring.Weights.Category.Technical, "untouched groups keep defaults")

	assert.Equal(t, "gemini-2.5-pro", cfg.GetAnalyzeConfig().Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.GetExtractConfig().Model)
}

func TestLoadConfigFileRejectsBadWeights(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
scoring:
  weights:
    blend:
      keyword: 0.9
      component: 0.4
`)

	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRequireAIKey(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireAIKey())

	cfg.AI.Analyze.APIKey = "k"
	assert.NoError(t, cfg.RequireAIKey())
}

func TestOperationDefaults(t *testing.T) {
	temp := float32(0)
	cfg := &Config{AI: AIConfig{
		Provider:    "gemini",
		Model:       "global-model",
		Timeout:     time.Minute,
		APIKey:      "global-key",
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   2048,
		CustomPrompts: PromptConfig{
			System:    "global system",
			Templates: map[string]string{"cv_skills": "global cv", "skills": "global skills"},
		},
		Extract: OperationAIConfig{
			Temperature:   &temp,
			CustomPrompts: PromptConfig{Templates: map[string]string{"cv_skills": "extract cv"}},
		},
	}}

	extract := cfg.GetExtractConfig()
	assert.Equal(t, "global-model", extract.Model)
	assert.Equal(t, "global-key", extract.APIKey)
	assert.Equal(t, float32(0), *extract.Temperature, "explicit zero is kept")
	assert.Equal(t, int32(2048), *extract.MaxTokens)
	assert.Equal(t, "global system", extract.CustomPrompts.System)
	assert.Equal(t, "extract cv", extract.CustomPrompts.Templates["cv_skills"])
	assert.Equal(t, "global skills", extract.CustomPrompts.Templates["skills"])

	// the stored operation config is not modified by resolution
	assert.Len(t, cfg.AI.Extract.CustomPrompts.Templates, 1)

	_, ok := cfg.GetOperationConfig("tailor")
	assert.False(t, ok)
}

func TestLoadPromptsFromFiles(t *testing.T) {
	dir := t.TempDir()
	system := writeFile(t, dir, "system.md", "  You score CVs.  \n")
	skills := writeFile(t, dir, "skills.md", "Rate the skills:\n%s\n%s")

	cfg := &Config{AI: AIConfig{
		Analyze: OperationAIConfig{CustomPrompts: PromptConfig{
			SystemFile:    system,
			TemplateFiles: map[string]string{"skills": skills},
		}},
	}}

	require.NoError(t, cfg.loadPromptsFromFiles())
	assert.Equal(t, "You score CVs.", cfg.AI.Analyze.CustomPrompts.System)
	assert.Equal(t, "Rate the skills:\n%s\n%s", cfg.AI.Analyze.CustomPrompts.Templates["skills"])
	assert.Equal(t, system, cfg.AI.Analyze.CustomPrompts.SystemFile)
}

func TestLoadPromptsFromFilesErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.md", "  \n")

	missing := &Config{AI: AIConfig{CustomPrompts: PromptConfig{
		TemplateFiles: map[string]string{"cv_skills": filepath.Join(dir, "absent.md")},
	}}}
	err := missing.loadPromptsFromFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found")

	blank := &Config{AI: AIConfig{Extract: OperationAIConfig{CustomPrompts: PromptConfig{SystemFile: empty}}}}
	err = blank.loadPromptsFromFiles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestServerAPIKeyFallbacks(t *testing.T) {
	cfg := &Config{Server: ServerConfig{APIKeys: []string{"a, b,c"}}}
	cfg.applyServerAPIKeyFallbacks()
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)

	t.Setenv("CVTAILOR_SERVER_APIKEYS", "x,y")
	cfg = &Config{}
	cfg.applyServerAPIKeyFallbacks()
	assert.Equal(t, []string{"x", "y"}, cfg.Server.APIKeys)
}

func TestLoadWeightsFile(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "weights.yaml", `
category:
  technical: 0.6
  soft: 0.2
  domain: 0.2
`)
	w, err := LoadWeightsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, w.Category.Technical)
	assert.Equal(t, scoring.DefaultWeights().Components, w.Components)

	bad := writeFile(t, dir, "bad.yaml", "blend:\n  keyword: 2\n  component: 0\n")
	_, err = LoadWeightsFile(bad)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestWeightsWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "weights.yaml", "blend:\n  keyword: 0.6\n  component: 0.4\n")

	updates := make(chan scoring.Weights, 4)
	watcher := NewWeightsWatcher(path, 20*time.Millisecond, func(w scoring.Weights) error {
		updates <- w
		return nil
	}, nil)
	require.NoError(t, watcher.Start())
	t.Cleanup(func() { _ = watcher.Stop() })
	assert.True(t, watcher.IsRunning())
	assert.Error(t, watcher.Start(), "second start is rejected")

	require.NoError(t, os.WriteFile(path, []byte("blend:\n  keyword: 0.3\n  component: 0.7\n"), 0600))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case w := <-updates:
		assert.Equal(t, 0.3, w.Blend.Keyword)
		assert.Equal(t, 0.7, w.Blend.Component)
	case <-time.After(5 * time.Second):
		t.Fatal("weights were not reloaded")
	}

	require.NoError(t, watcher.Stop())
	assert.False(t, watcher.IsRunning())
	assert.NoError(t, watcher.Stop())
}
