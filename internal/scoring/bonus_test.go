package scoring

import (
	"encoding/json"
	"testing"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRequirementBonus(t *testing.T) {
	tests := []struct {
		name              string
		counts            types.MatchCounts
		expectedBreakdown types.BonusBreakdown
		expectedCoverage  types.CoverageMetrics
		missingRequired   int
		missingPreferred  int
	}{
		{
			name: "reference scenario",
			counts: types.MatchCounts{
				TotalRequiredKeywords:  10,
				TotalPreferredKeywords: 5,
				MatchedRequiredCount:   8,
				MatchedPreferredCount:  3,
			},
			expectedBreakdown: types.BonusBreakdown{
				RequiredBonus:    3.0,
				RequiredPenalty:  -1.5,
				PreferredBonus:   0.6,
				PreferredPenalty: -0.3,
				TotalBonus:       1.8,
			},
			expectedCoverage: types.CoverageMetrics{RequiredCoverage: 80, PreferredCoverage: 60},
			missingRequired:  2,
			missingPreferred: 2,
		},
		{
			name:   "nothing requested",
			counts: types.MatchCounts{},
			expectedCoverage: types.CoverageMetrics{
				RequiredCoverage:  100,
				PreferredCoverage: 100,
			},
		},
		{
			name: "five matched is still per-match bonus",
			counts: types.MatchCounts{
				TotalRequiredKeywords: 6,
				MatchedRequiredCount:  5,
			},
			expectedBreakdown: types.BonusBreakdown{RequiredBonus: 2.5, TotalBonus: 2.5},
			expectedCoverage:  types.CoverageMetrics{RequiredCoverage: 83.33, PreferredCoverage: 100},
			missingRequired:   1,
		},
		{
			name: "five or more missing takes the heavy penalty",
			counts: types.MatchCounts{
				TotalRequiredKeywords: 7,
				MatchedRequiredCount:  2,
			},
			expectedBreakdown: types.BonusBreakdown{RequiredBonus: 1.0, RequiredPenalty: -4.0, TotalBonus: -3.0},
			expectedCoverage:  types.CoverageMetrics{RequiredCoverage: 28.57, PreferredCoverage: 100},
			missingRequired:   5,
		},
		{
			name: "preferred with no matches only penalizes",
			counts: types.MatchCounts{
				TotalPreferredKeywords: 4,
			},
			expectedBreakdown: types.BonusBreakdown{PreferredPenalty: -0.6, TotalBonus: -0.6},
			expectedCoverage:  types.CoverageMetrics{RequiredCoverage: 100, PreferredCoverage: 0},
			missingPreferred:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CalculateRequirementBonus(tt.counts)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedBreakdown, result.BonusBreakdown)
			assert.Equal(t, tt.expectedCoverage, result.CoverageMetrics)
			assert.Equal(t, tt.missingRequired, result.MatchCounts.MissingRequired)
			assert.Equal(t, tt.missingPreferred, result.MatchCounts.MissingPreferred)
			assert.Equal(t, tt.counts, result.MatchCounts.MatchCounts)
		})
	}
}

func TestFullRequiredCoverageHasNoPenalty(t *testing.T) {
	for total := 1; total <= 5; total++ {
		result, err := CalculateRequirementBonus(types.MatchCounts{
			TotalRequiredKeywords: total,
			MatchedRequiredCount:  total,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.BonusBreakdown.RequiredPenalty, "total=%d", total)
		assert.Equal(t, 0.5*float64(total), result.BonusBreakdown.RequiredBonus, "total=%d", total)
	}
}

func TestZeroRequiredIsFullCoverage(t *testing.T) {
	for preferred := 0; preferred <= 6; preferred++ {
		for matched := 0; matched <= preferred; matched++ {
			result, err := CalculateRequirementBonus(types.MatchCounts{
				TotalPreferredKeywords: preferred,
				MatchedPreferredCount:  matched,
			})
			require.NoError(t, err)
			assert.Equal(t, 100.0, result.CoverageMetrics.RequiredCoverage)
		}
	}
}

func TestCalculateRequirementBonusRejectsInvalidCounts(t *testing.T) {
	tests := []struct {
		name   string
		counts types.MatchCounts
	}{
		{"matched required exceeds total", types.MatchCounts{TotalRequiredKeywords: 3, MatchedRequiredCount: 4}},
		{"matched preferred exceeds total", types.MatchCounts{TotalPreferredKeywords: 1, MatchedPreferredCount: 2}},
		{"negative total", types.MatchCounts{TotalRequiredKeywords: -1}},
		{"negative matched", types.MatchCounts{TotalPreferredKeywords: 2, MatchedPreferredCount: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateRequirementBonus(tt.counts)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))

			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeInvalidMatchCounts, appErr.Code)
		})
	}
}

func TestParseMatchCounts(t *testing.T) {
	valid := `{"total_required_keywords": 10, "total_preferred_keywords": 5,
		"matched_required_count": 8, "matched_preferred_count": 3}`

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(valid), &raw))

	counts, err := ParseMatchCounts(raw)
	require.NoError(t, err)
	assert.Equal(t, types.MatchCounts{
		TotalRequiredKeywords:  10,
		TotalPreferredKeywords: 5,
		MatchedRequiredCount:   8,
		MatchedPreferredCount:  3,
	}, counts)
}

func TestParseMatchCountsErrors(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"total_required_keywords":  float64(4),
			"total_preferred_keywords": float64(2),
			"matched_required_count":   float64(3),
			"matched_preferred_count":  float64(1),
		}
	}

	tests := []struct {
		name         string
		mutate       func(m map[string]any)
		expectedCode string
	}{
		{"missing key", func(m map[string]any) { delete(m, "matched_required_count") }, errors.ErrCodeMissingMatchCount},
		{"null value", func(m map[string]any) { m["total_preferred_keywords"] = nil }, errors.ErrCodeMissingMatchCount},
		{"string value", func(m map[string]any) { m["total_required_keywords"] = "4" }, errors.ErrCodeInvalidMatchCounts},
		{"boolean value", func(m map[string]any) { m["matched_preferred_count"] = true }, errors.ErrCodeInvalidMatchCounts},
		{"fractional value", func(m map[string]any) { m["matched_required_count"] = 2.5 }, errors.ErrCodeInvalidMatchCounts},
		{"negative value", func(m map[string]any) { m["total_required_keywords"] = float64(-1) }, errors.ErrCodeInvalidMatchCounts},
		{"matched exceeds total", func(m map[string]any) { m["matched_required_count"] = float64(5) }, errors.ErrCodeInvalidMatchCounts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := base()
			tt.mutate(raw)

			_, err := ParseMatchCounts(raw)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))

			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, appErr.Code)
		})
	}
}
