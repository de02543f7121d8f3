package scoring

import (
	"math"
	"testing"

	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestExtractComponentScores(t *testing.T) {
	tests := []struct {
		name     string
		input    types.ComponentAnalyses
		expected types.ComponentScores
	}{
		{
			name: "all analyzers present",
			input: types.ComponentAnalyses{
				Skills:     map[string]any{"overall_skills_score": 82.0, "matched_skills": []any{"go"}},
				Experience: map[string]any{"experience_analysis": map[string]any{"alignment_score": 75.0}},
				Industry:   map[string]any{"industry_analysis": map[string]any{"industry_alignment_score": 60.0}},
				Seniority:  map[string]any{"seniority_analysis": map[string]any{"seniority_score": 70.0}},
				Technical:  map[string]any{"technical_analysis": map[string]any{"technical_depth_score": 88.5}},
			},
			expected: types.ComponentScores{Skills: 82, Experience: 75, Industry: 60, Seniority: 70, Technical: 88.5},
		},
		{
			name: "skills score nested under its section",
			input: types.ComponentAnalyses{
				Skills: map[string]any{"skills_analysis": map[string]any{"overall_skills_score": 64.0}},
			},
			expected: types.ComponentScores{Skills: 64},
		},
		{
			name:     "everything missing",
			input:    types.ComponentAnalyses{},
			expected: types.ComponentScores{},
		},
		{
			name: "numeric strings are accepted",
			input: types.ComponentAnalyses{
				Experience: map[string]any{"experience_analysis": map[string]any{"alignment_score": " 71.5 "}},
				Seniority:  map[string]any{"seniority_analysis": map[string]any{"seniority_score": "65%"}},
			},
			expected: types.ComponentScores{Experience: 71.5, Seniority: 65},
		},
		{
			name: "out of range values are clamped",
			input: types.ComponentAnalyses{
				Skills:    map[string]any{"overall_skills_score": 150.0},
				Technical: map[string]any{"technical_analysis": map[string]any{"technical_depth_score": -20.0}},
			},
			expected: types.ComponentScores{Skills: 100, Technical: 0},
		},
		{
			name: "malformed values default to zero",
			input: types.ComponentAnalyses{
				Skills:     map[string]any{"overall_skills_score": "high"},
				Experience: map[string]any{"experience_analysis": "not an object"},
				Industry:   map[string]any{"industry_analysis": map[string]any{"industry_alignment_score": true}},
				Seniority:  map[string]any{"seniority_analysis": map[string]any{"seniority_score": math.NaN()}},
				Technical:  map[string]any{"technical_analysis": nil},
			},
			expected: types.ComponentScores{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractComponentScores(tt.input))
		})
	}
}
