package scoring

import (
	"fmt"
	"math"

	"cvtailor/internal/errors"
)

const weightSumTolerance = 1e-6

// CategoryWeights blend the three keyword match rates into the category 1 score.
type CategoryWeights struct {
	Technical float64 `mapstructure:"technical" yaml:"technical" json:"technical"`
	Soft      float64 `mapstructure:"soft" yaml:"soft" json:"soft"`
	Domain    float64 `mapstructure:"domain" yaml:"domain" json:"domain"`
}

// ComponentWeights blend the five analyzer scores into the category 2 score.
type ComponentWeights struct {
	SkillsRelevance     float64 `mapstructure:"skillsRelevance" yaml:"skillsRelevance" json:"skills_relevance"`
	ExperienceAlignment float64 `mapstructure:"experienceAlignment" yaml:"experienceAlignment" json:"experience_alignment"`
	IndustryFit         float64 `mapstructure:"industryFit" yaml:"industryFit" json:"industry_fit"`
	RoleSeniority       float64 `mapstructure:"roleSeniority" yaml:"roleSeniority" json:"role_seniority"`
	TechnicalDepth      float64 `mapstructure:"technicalDepth" yaml:"technicalDepth" json:"technical_depth"`
}

// BlendWeights split the base score between keyword coverage (category 1) and
// analyzer judgement (category 2).
type BlendWeights struct {
	Keyword   float64 `mapstructure:"keyword" yaml:"keyword" json:"keyword"`
	Component float64 `mapstructure:"component" yaml:"component" json:"component"`
}

// Weights is the full tunable weighting table. Each group must sum to 1.0.
type Weights struct {
	Category   CategoryWeights  `mapstructure:"category" yaml:"category" json:"category"`
	Components ComponentWeights `mapstructure:"components" yaml:"components" json:"components"`
	Blend      BlendWeights     `mapstructure:"blend" yaml:"blend" json:"blend"`
}

// DefaultWeights returns the reference weighting:
//
//	category:   technical 0.50, soft 0.25, domain 0.25
//	components: skills 0.35, experience 0.25, industry 0.15, seniority 0.15, technical depth 0.10
//	blend:      keyword 0.60, component 0.40
func DefaultWeights() Weights {
	return Weights{
		Category: CategoryWeights{
			Technical: 0.5,
			Soft:      0.25,
			Domain:    0.25,
		},
		Components: ComponentWeights{
			SkillsRelevance:     0.35,
			ExperienceAlignment: 0.25,
			IndustryFit:         0.15,
			RoleSeniority:       0.15,
			TechnicalDepth:      0.10,
		},
		Blend: BlendWeights{
			Keyword:   0.6,
			Component: 0.4,
		},
	}
}

// Validate checks that no weight is negative and that each group sums to 1.0.
func (w Weights) Validate() error {
	groups := []struct {
		name   string
		values []float64
	}{
		{"category", []float64{w.Category.Technical, w.Category.Soft, w.Category.Domain}},
		{"components", []float64{
			w.Components.SkillsRelevance, w.Components.ExperienceAlignment, w.Components.IndustryFit,
			w.Components.RoleSeniority, w.Components.TechnicalDepth,
		}},
		{"blend", []float64{w.Blend.Keyword, w.Blend.Component}},
	}

	for _, g := range groups {
		var sum float64
		for _, v := range g.values {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewConfigError(errors.ErrCodeInvalidWeights,
					fmt.Sprintf("%s weights must be finite and non-negative", g.name), nil).
					WithContext("group", g.name)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			return errors.NewConfigError(errors.ErrCodeInvalidWeights,
				fmt.Sprintf("%s weights sum to %.4f, expected 1.0", g.name, sum), nil).
				WithContext("group", g.name)
		}
	}
	return nil
}
