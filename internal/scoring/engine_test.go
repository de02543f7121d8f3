package scoring

import (
	"encoding/json"
	"testing"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreRequestJSON = `{
  "company": "acme",
  "match_rates": {"technical_match_rate": 90, "soft_match_rate": 70, "domain_match_rate": 60},
  "match_counts": {
    "total_required_keywords": 10,
    "total_preferred_keywords": 5,
    "matched_required_count": 8,
    "matched_preferred_count": 3
  },
  "component_analyses": {
    "skills": {"overall_skills_score": 85},
    "experience": {"experience_analysis": {"alignment_score": 80, "cv_experience_years": 9, "cv_role_level": "Senior"}},
    "industry": {"industry_analysis": {"industry_alignment_score": 70}},
    "seniority": {"seniority_analysis": {"seniority_score": 75, "cv_experience_years": 5, "cv_responsibility_scope": "Lead"}},
    "technical": {"technical_analysis": {"technical_depth_score": 90}}
  },
  "missing_skill_counts": {"technical_skills": 2, "soft_skills": 1, "domain_keywords": 0},
  "model_used": "gemini-2.0-flash"
}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultWeights(), DefaultConsistencyConfig(), nil)
	require.NoError(t, err)
	return engine
}

func TestEngineScore(t *testing.T) {
	var req types.ScoreRequest
	require.NoError(t, json.Unmarshal([]byte(scoreRequestJSON), &req))

	record, err := newTestEngine(t).Score(req)
	require.NoError(t, err)

	// cat1 77.5, cat2 = 85*.35 + 80*.25 + 70*.15 + 75*.15 + 90*.10 = 80.5
	// base = 77.5*.6 + 80.5*.4 = 78.7, bonus 1.8
	assert.Equal(t, 77.5, record.Category1Score)
	assert.InDelta(t, 80.5, record.Category2Score, 0.001)
	assert.Equal(t, 80.5, record.FinalATSScore)
	assert.Equal(t, types.StatusStrong, record.CategoryStatus)
	assert.Equal(t, "acme", record.Company)
	assert.NotEmpty(t, record.ID)

	// 9 vs 5 years exceeds the tolerance; Senior and Lead share a band
	assert.False(t, record.IsConsistent)
	require.Len(t, record.Inconsistencies, 1)
	assert.Equal(t, types.InconsistencyExperienceYears, record.Inconsistencies[0].Type)
	assert.Equal(t, 4.0, *record.Inconsistencies[0].Difference)
}

func TestEngineScoreWithReport(t *testing.T) {
	var req types.ScoreRequest
	require.NoError(t, json.Unmarshal([]byte(scoreRequestJSON), &req))
	counts, err := ParseMatchCounts(req.MatchCounts)
	require.NoError(t, err)

	record, report, err := newTestEngine(t).ScoreWithReport(counts, req)
	require.NoError(t, err)

	assert.Equal(t, record.IsConsistent, report.IsConsistent)
	assert.Equal(t, record.Inconsistencies, report.Inconsistencies)
	assert.Equal(t, record.ConfidenceScore, report.ConfidenceScore)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "Experience years mismatch (9 vs 5)")
}

func TestEngineScoreRejectsInvalidCounts(t *testing.T) {
	req := types.ScoreRequest{
		MatchCounts: map[string]any{
			"total_required_keywords":  float64(2),
			"total_preferred_keywords": float64(0),
			"matched_required_count":   float64(3),
			"matched_preferred_count":  float64(0),
		},
	}

	_, err := newTestEngine(t).Score(req)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestEngineScoreDegradesOnMissingAnalyses(t *testing.T) {
	req := types.ScoreRequest{
		MatchRates: types.MatchRates{Technical: 100, Soft: 100, Domain: 100},
		MatchCounts: map[string]any{
			"total_required_keywords":  float64(0),
			"total_preferred_keywords": float64(0),
			"matched_required_count":   float64(0),
			"matched_preferred_count":  float64(0),
		},
	}

	record, err := newTestEngine(t).Score(req)
	require.NoError(t, err)
	assert.Equal(t, 60.0, record.FinalATSScore)
	assert.Equal(t, types.StatusGood, record.CategoryStatus)
	assert.True(t, record.IsConsistent)
}

func TestEngineUpdateWeights(t *testing.T) {
	engine := newTestEngine(t)

	keywordOnly := DefaultWeights()
	keywordOnly.Blend = BlendWeights{Keyword: 1.0, Component: 0}
	require.NoError(t, engine.UpdateWeights(keywordOnly))
	assert.Equal(t, 1.0, engine.Weights().Blend.Keyword)

	broken := DefaultWeights()
	broken.Components.TechnicalDepth = 0.5
	assert.Error(t, engine.UpdateWeights(broken))
	assert.Equal(t, 1.0, engine.Weights().Blend.Keyword)
}
