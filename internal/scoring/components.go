package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"cvtailor/internal/types"
)

// Analyzer section keys and their primary score fields
const (
	skillsSection     = "skills_analysis"
	experienceSection = "experience_analysis"
	industrySection   = "industry_analysis"
	senioritySection  = "seniority_analysis"
	technicalSection  = "technical_analysis"

	skillsScoreField     = "overall_skills_score"
	experienceScoreField = "alignment_score"
	industryScoreField   = "industry_alignment_score"
	seniorityScoreField  = "seniority_score"
	technicalScoreField  = "technical_depth_score"
)

// ExtractComponentScores pulls the primary score out of each analyzer blob.
// Missing sections, missing fields and malformed values all yield 0; numbers are
// clamped to [0,100].
func ExtractComponentScores(a types.ComponentAnalyses) types.ComponentScores {
	skills, ok := numberField(a.Skills, skillsScoreField)
	if !ok {
		skills, _ = numberField(section(a.Skills, skillsSection), skillsScoreField)
	}
	experience, _ := numberField(section(a.Experience, experienceSection), experienceScoreField)
	industry, _ := numberField(section(a.Industry, industrySection), industryScoreField)
	seniority, _ := numberField(section(a.Seniority, senioritySection), seniorityScoreField)
	technical, _ := numberField(section(a.Technical, technicalSection), technicalScoreField)

	return types.ComponentScores{
		Skills:     clampScore(skills),
		Experience: clampScore(experience),
		Industry:   clampScore(industry),
		Seniority:  clampScore(seniority),
		Technical:  clampScore(technical),
	}
}

// section returns blob[key] as an object, or nil when absent or not an object.
func section(blob map[string]any, key string) map[string]any {
	if blob == nil {
		return nil
	}
	inner, _ := blob[key].(map[string]any)
	return inner
}

// numberField reads a numeric field, accepting JSON numbers and numeric strings.
func numberField(obj map[string]any, key string) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%")), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// clampScore bounds v to [0,100], mapping NaN to 0.
func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
