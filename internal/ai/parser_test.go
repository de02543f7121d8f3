package ai

import (
	stderrors "errors"
	"strings"
	"testing"
	"unicode/utf8"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredOutput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain", `{"technical_skills": ["Go"], "soft_skills": [], "domain_keywords": ["fintech"]}`},
		{"fenced", "```json\n{\"technical_skills\": [\"Go\"], \"soft_skills\": [], \"domain_keywords\": [\"fintech\"]}\n```"},
		{"prose around", "Here you go:\n{\"technical_skills\": [\"Go\"], \"soft_skills\": [], \"domain_keywords\": [\"fintech\"]}\nHope this helps."},
		{"trailing commas", `{"technical_skills": ["Go",], "soft_skills": [], "domain_keywords": ["fintech"],}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredOutput[types.SkillSet](tt.text, skillSetSchema)
			require.NoError(t, err)
			assert.Equal(t, []string{"Go"}, got.TechnicalSkills)
			assert.Empty(t, got.SoftSkills)
			assert.Equal(t, []string{"fintech"}, got.DomainKeywords)
		})
	}
}

func TestParseStructuredOutputBracesInStrings(t *testing.T) {
	text := `{"skills_analysis": {"overall_skills_score": 70, "summary": "uses {templates} and \"quotes\" }"}} trailing`
	got, err := ParseStructuredOutput[map[string]any](text, analysisSchema)
	require.NoError(t, err)

	section, ok := got["skills_analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(70), section["overall_skills_score"])
	assert.Equal(t, `uses {templates} and "quotes" }`, section["summary"])
}

func TestParseStructuredOutputKeepsCommasInStrings(t *testing.T) {
	text := `{"summary": "a, }", "tags": ["x, ]", "y",], "note": "ends with ,\" ]",}`
	got, err := ParseStructuredOutput[map[string]any](text, nil)
	require.NoError(t, err)

	assert.Equal(t, "a, }", got["summary"])
	assert.Equal(t, []any{"x, ]", "y"}, got["tags"])
	assert.Equal(t, `ends with ," ]`, got["note"])
}

func TestParseStructuredOutputFailures(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"no object", "I cannot help with that.", "no JSON object found"},
		{"unterminated", `{"technical_skills": ["Go"`, "unterminated JSON object"},
		{"invalid", `{"technical_skills": [Go]}`, "invalid JSON"},
		{"schema", `{"technical_skills": "Go", "soft_skills": [], "domain_keywords": []}`, "schema mismatch"},
		{"missing field", `{"technical_skills": []}`, "schema mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructuredOutput[types.SkillSet](tt.text, skillSetSchema)
			require.Error(t, err)

			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeAIParseFailed, appErr.Code)

			var pe *ParseError
			require.True(t, stderrors.As(err, &pe))
			assert.Equal(t, tt.reason, pe.Reason)
		})
	}
}

func TestParseStructuredOutputWithoutSchema(t *testing.T) {
	got, err := ParseStructuredOutput[map[string]any](`{"anything": 1}`, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got["anything"])
}

func TestExcerptTruncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	got := excerpt(string(long))
	assert.Len(t, got, 203)
	assert.Equal(t, "short", excerpt("short"))
}

func TestExcerptKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("x", 199) + strings.Repeat("é", 10)
	got := excerpt(text)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", 199)+"...", got)

	text = strings.Repeat("x", 198) + strings.Repeat("é", 10)
	assert.Equal(t, strings.Repeat("x", 198)+"é...", excerpt(text))
}
