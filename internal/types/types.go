package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SkillSet is a bag of extracted skill strings per category
type SkillSet struct {
	TechnicalSkills []string `json:"technical_skills"`
	SoftSkills      []string `json:"soft_skills"`
	DomainKeywords  []string `json:"domain_keywords"`
}

// Counts returns the number of entries per category without deduplicating.
func (s SkillSet) Counts() SkillCounts {
	c := SkillCounts{
		TechnicalSkills: len(s.TechnicalSkills),
		SoftSkills:      len(s.SoftSkills),
		DomainKeywords:  len(s.DomainKeywords),
	}
	c.Total = c.TechnicalSkills + c.SoftSkills + c.DomainKeywords
	return c
}

// JobSkillSet is the job description side of extraction. Required and preferred
// keywords drive the requirement bonus.
type JobSkillSet struct {
	SkillSet
	RequiredKeywords  []string `json:"required_keywords"`
	PreferredKeywords []string `json:"preferred_keywords"`
}

// SkillCounts holds per-category entry counts
type SkillCounts struct {
	TechnicalSkills int `json:"technical_skills"`
	SoftSkills      int `json:"soft_skills"`
	DomainKeywords  int `json:"domain_keywords"`
	Total           int `json:"total"`
}

// ExtractionCounts pairs CV and job description counts
type ExtractionCounts struct {
	CV             SkillCounts `json:"cv"`
	JobDescription SkillCounts `json:"job_description"`
}

// MatchCounts is the keyword coverage input of the requirement bonus.
type MatchCounts struct {
	TotalRequiredKeywords  int `json:"total_required_keywords" validate:"gte=0"`
	TotalPreferredKeywords int `json:"total_preferred_keywords" validate:"gte=0"`
	MatchedRequiredCount   int `json:"matched_required_count" validate:"gte=0,ltefield=TotalRequiredKeywords"`
	MatchedPreferredCount  int `json:"matched_preferred_count" validate:"gte=0,ltefield=TotalPreferredKeywords"`
}

// Validate checks that counts are non-negative and matched counts do not exceed totals.
func (m MatchCounts) Validate() error {
	return validate.Struct(m)
}

// MatchCountSummary is MatchCounts plus the derived missing counts
type MatchCountSummary struct {
	MatchCounts
	MissingRequired  int `json:"missing_required"`
	MissingPreferred int `json:"missing_preferred"`
}

// BonusBreakdown lists each bonus and penalty term, rounded to 2 decimals
type BonusBreakdown struct {
	RequiredBonus    float64 `json:"required_bonus"`
	RequiredPenalty  float64 `json:"required_penalty"`
	PreferredBonus   float64 `json:"preferred_bonus"`
	PreferredPenalty float64 `json:"preferred_penalty"`
	TotalBonus       float64 `json:"total_bonus"`
}

// CoverageMetrics are keyword coverage percentages
type CoverageMetrics struct {
	RequiredCoverage  float64 `json:"required_coverage"`
	PreferredCoverage float64 `json:"preferred_coverage"`
}

// RequirementBonus is the output of the requirement bonus calculation
type RequirementBonus struct {
	MatchCounts     MatchCountSummary `json:"match_counts"`
	BonusBreakdown  BonusBreakdown    `json:"bonus_breakdown"`
	CoverageMetrics CoverageMetrics   `json:"coverage_metrics"`
}

// ComponentAnalyses holds the five raw analyzer outputs as decoded JSON objects.
// A nil map means the analyzer produced nothing.
type ComponentAnalyses struct {
	Skills     map[string]any `json:"skills"`
	Experience map[string]any `json:"experience"`
	Industry   map[string]any `json:"industry"`
	Seniority  map[string]any `json:"seniority"`
	Technical  map[string]any `json:"technical"`
}

// ComponentScores are the five primary analyzer scores, each in [0,100]
type ComponentScores struct {
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Industry   float64 `json:"industry"`
	Seniority  float64 `json:"seniority"`
	Technical  float64 `json:"technical"`
}

// Values returns the scores in skills, experience, industry, seniority, technical order.
func (c ComponentScores) Values() []float64 {
	return []float64{c.Skills, c.Experience, c.Industry, c.Seniority, c.Technical}
}

// Inconsistency types
const (
	InconsistencyExperienceYears = "experience_years_mismatch"
	InconsistencyRoleLevel       = "role_level_mismatch"
	InconsistencyValidationError = "validation_error"
)

// Inconsistency is one disagreement found between analyzer outputs
type Inconsistency struct {
	Type            string   `json:"type"`
	Detail          string   `json:"detail"`
	ExperienceValue any      `json:"experience_analyzer_value,omitempty"`
	SeniorityValue  any      `json:"seniority_analyzer_value,omitempty"`
	Difference      *float64 `json:"difference,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
}

// ConsistencyReport is the result of cross-checking analyzer outputs
type ConsistencyReport struct {
	IsConsistent    bool            `json:"is_consistent"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Recommendations []string        `json:"recommendations"`
	ConfidenceScore float64         `json:"confidence_score"`
}

// CategoryStatus labels the final score band
type CategoryStatus string

const (
	StatusExcellent CategoryStatus = "Excellent"
	StatusStrong    CategoryStatus = "Strong"
	StatusGood      CategoryStatus = "Good"
	StatusFair      CategoryStatus = "Fair"
	StatusPoor      CategoryStatus = "Poor"
)

// MatchRates are keyword match percentages per category, each in [0,100]
type MatchRates struct {
	Technical float64 `json:"technical_match_rate"`
	Soft      float64 `json:"soft_match_rate"`
	Domain    float64 `json:"domain_match_rate"`
}

// MissingSkillCounts are the numbers of job description skills absent from the CV
type MissingSkillCounts struct {
	TechnicalSkills int `json:"technical_skills"`
	SoftSkills      int `json:"soft_skills"`
	DomainKeywords  int `json:"domain_keywords"`
}

// ComponentContribution is one weighted component of the category 2 score
type ComponentContribution struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ComponentContributions lists all five weighted components
type ComponentContributions struct {
	SkillsRelevance     ComponentContribution `json:"skills_relevance"`
	ExperienceAlignment ComponentContribution `json:"experience_alignment"`
	IndustryFit         ComponentContribution `json:"industry_fit"`
	RoleSeniority       ComponentContribution `json:"role_seniority"`
	TechnicalDepth      ComponentContribution `json:"technical_depth"`
}

// ATSScoreRecord is the self-contained result of one scoring run
type ATSScoreRecord struct {
	ID                     string                 `json:"id"`
	Company                string                 `json:"company,omitempty"`
	FinalATSScore          float64                `json:"final_ats_score"`
	CategoryStatus         CategoryStatus         `json:"category_status"`
	Recommendation         string                 `json:"recommendation"`
	Category1Score         float64                `json:"category1_score"`
	Category2Score         float64                `json:"category2_score"`
	BaseScore              float64                `json:"base_score"`
	MatchRates             MatchRates             `json:"match_rates"`
	ComponentContributions ComponentContributions `json:"component_contributions"`
	RequirementBonus       RequirementBonus       `json:"requirement_bonus"`
	MissingSkillCounts     MissingSkillCounts     `json:"missing_skill_counts"`
	RawExtractionCounts    *ExtractionCounts      `json:"raw_extraction_counts,omitempty"`
	DeduplicatedCounts     *ExtractionCounts      `json:"deduplicated_counts,omitempty"`
	ConfidenceScore        float64                `json:"confidence_score"`
	IsConsistent           bool                   `json:"is_consistent"`
	Inconsistencies        []Inconsistency        `json:"inconsistencies"`
	Timestamp              time.Time              `json:"timestamp"`
	ModelUsed              string                 `json:"model_used"`
}

// ScoreRequest is the input document of the score command and POST /score.
// MatchCounts stays untyped so that missing or malformed fields can be reported.
type ScoreRequest struct {
	Company            string             `json:"company,omitempty"`
	MatchRates         MatchRates         `json:"match_rates"`
	MatchCounts        map[string]any     `json:"match_counts"`
	ComponentAnalyses  ComponentAnalyses  `json:"component_analyses"`
	MissingSkillCounts MissingSkillCounts `json:"missing_skill_counts"`
	ModelUsed          string             `json:"model_used,omitempty"`
}

// AnalyzeRequest is the input of a full CV against job description analysis
type AnalyzeRequest struct {
	Company        string `json:"company" validate:"required"`
	CVText         string `json:"cv_text" validate:"required"`
	JobDescription string `json:"job_description" validate:"required"`
}

// Validate checks that all fields are present
func (r *AnalyzeRequest) Validate() error {
	return validate.Struct(r)
}
