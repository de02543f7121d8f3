package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cvtailor/internal/common"
	"cvtailor/internal/config"
	"cvtailor/internal/errors"
	"cvtailor/internal/scoring"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreInput = `{
  "company": "Acme",
  "match_rates": {"technical_match_rate": 90, "soft_match_rate": 70, "domain_match_rate": 60},
  "match_counts": {
    "total_required_keywords": 10,
    "total_preferred_keywords": 5,
    "matched_required_count": 8,
    "matched_preferred_count": 3
  },
  "component_analyses": {
    "skills": {"overall_skills_score": 85},
    "experience": {"experience_analysis": {"alignment_score": 80}},
    "industry": {"industry_analysis": {"industry_alignment_score": 70}},
    "seniority": {"seniority_analysis": {"seniority_score": 75}},
    "technical": {"technical_analysis": {"technical_depth_score": 90}}
  },
  "missing_skill_counts": {"technical_skills": 2, "soft_skills": 1, "domain_keywords": 0}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Scoring: config.ScoringConfig{
			Weights:     scoring.DefaultWeights(),
			Consistency: scoring.DefaultConsistencyConfig(),
		},
		Storage: config.StorageConfig{DataDir: t.TempDir()},
		App: config.AppConfig{
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
			MaxFileSize:      1 << 20,
		},
	}
}

// execute runs the root command with args and returns stdout
func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	// flag variables outlive a single run
	scoreConfig, validateConfig, analyzeConfig, historyConfig =
		common.CommandConfig{}, common.CommandConfig{}, common.CommandConfig{}, common.CommandConfig{}
	scoreCompany, scoreSave = "", false
	analyzeCompany, analyzeNoSave = "", false
	historyCompany = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute(context.Background(), cfg, errors.Discard(), nil)
	return out.String(), err
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestScoreCommand(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "input.json", scoreInput)

	out, err := execute(t, cfg, "score", input)
	require.NoError(t, err)

	var record types.ATSScoreRecord
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, 80.5, record.FinalATSScore)
	assert.Equal(t, "Acme", record.Company)

	out, err = execute(t, cfg, "score", input, "--format", "text", "--company", "Globex")
	require.NoError(t, err)
	assert.Contains(t, out, "Final Score: 80.5/100 (Strong)")
}

func TestScoreCommandSave(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "input.json", scoreInput)

	_, err := execute(t, cfg, "score", input, "--save")
	require.NoError(t, err)

	store, err := storage.NewFileStore(cfg.Storage.DataDir, nil)
	require.NoError(t, err)
	entries, err := store.List(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	out, err := execute(t, cfg, "history", "--company", "Acme", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "80.5")

	out, err = execute(t, cfg, "history")
	require.NoError(t, err)
	assert.Equal(t, "acme\n", out)
}

func TestScoreCommandErrors(t *testing.T) {
	cfg := testConfig(t)

	bad := writeInput(t, "bad.json", `{"match_counts": {"total_required_keywords": 1}}`)
	_, err := execute(t, cfg, "score", bad)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	good := writeInput(t, "input.json", scoreInput)
	_, err = execute(t, cfg, "score", good, "--format", "yaml")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = execute(t, cfg, "score")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "components.json", `{
	  "experience": {"experience_analysis": {"cv_experience_years": 10}},
	  "seniority": {"seniority_analysis": {"cv_experience_years": 4}}
	}`)

	out, err := execute(t, cfg, "validate", input)
	require.NoError(t, err)

	var report types.ConsistencyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.IsConsistent)
	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, types.InconsistencyExperienceYears, report.Inconsistencies[0].Type)
}

func TestAnalyzeCommandNeedsCompanyAndKey(t *testing.T) {
	cfg := testConfig(t)
	cv := writeInput(t, "cv.txt", "Go developer")
	jd := writeInput(t, "jd.txt", "Hiring Go developers")

	_, err := execute(t, cfg, "analyze", cv, jd)
	assert.ErrorContains(t, err, "--company is required")

	_, err = execute(t, cfg, "analyze", cv, jd, "--company", "Acme")
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeMissingAPIKey, appErr.Code)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cvtailor version dev")
}
