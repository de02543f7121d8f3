package scoring

import (
	"fmt"
	"math"
	"time"

	"cvtailor/internal/types"

	"github.com/google/uuid"
)

// Status thresholds on the final score
const (
	excellentFrom = 90.0
	strongFrom    = 75.0
	goodFrom      = 60.0
	fairFrom      = 40.0
)

// AggregationInput is everything the aggregator combines into one record.
// Match rates are consumed as given; they are not recomputed here.
type AggregationInput struct {
	MatchRates         types.MatchRates
	ComponentScores    types.ComponentScores
	Bonus              types.RequirementBonus
	Consistency        types.ConsistencyReport
	MissingSkillCounts types.MissingSkillCounts
	ModelUsed          string
}

// Aggregator combines keyword coverage, analyzer scores and the requirement bonus
// into the final ATS score.
type Aggregator struct {
	weights Weights
	now     func() time.Time
	newID   func() string
}

// NewAggregator validates the weights and returns an aggregator using them.
func NewAggregator(weights Weights) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		weights: weights,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Weights returns the weighting table in use
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Aggregate produces the final record. Out of range or NaN inputs are clamped or
// zeroed first, so the final score is always within [0,100]. The final score is
// rounded to one decimal.
func (a *Aggregator) Aggregate(in AggregationInput) types.ATSScoreRecord {
	rates := types.MatchRates{
		Technical: clampScore(in.MatchRates.Technical),
		Soft:      clampScore(in.MatchRates.Soft),
		Domain:    clampScore(in.MatchRates.Domain),
	}
	cw := a.weights.Category
	cat1 := rates.Technical*cw.Technical + rates.Soft*cw.Soft + rates.Domain*cw.Domain

	contributions, cat2 := a.componentContributions(in.ComponentScores)

	base := cat1*a.weights.Blend.Keyword + cat2*a.weights.Blend.Component

	bonus := in.Bonus.BonusBreakdown.TotalBonus
	if math.IsNaN(bonus) || math.IsInf(bonus, 0) {
		bonus = 0
	}
	final := round1(clampScore(base + bonus))
	status := CategoryStatusFor(final)

	return types.ATSScoreRecord{
		ID:                     a.newID(),
		FinalATSScore:          final,
		CategoryStatus:         status,
		Recommendation:         Recommendation(status, in.MissingSkillCounts),
		Category1Score:         round2(cat1),
		Category2Score:         round2(cat2),
		BaseScore:              round2(base),
		MatchRates:             rates,
		ComponentContributions: contributions,
		RequirementBonus:       in.Bonus,
		MissingSkillCounts:     nonNegativeCounts(in.MissingSkillCounts),
		ConfidenceScore:        in.Consistency.ConfidenceScore,
		IsConsistent:           in.Consistency.IsConsistent,
		Inconsistencies:        inconsistenciesOrEmpty(in.Consistency.Inconsistencies),
		Timestamp:              a.now().UTC(),
		ModelUsed:              in.ModelUsed,
	}
}

func (a *Aggregator) componentContributions(scores types.ComponentScores) (types.ComponentContributions, float64) {
	w := a.weights.Components
	contribution := func(score, weight float64) types.ComponentContribution {
		score = clampScore(score)
		return types.ComponentContribution{
			Score:        score,
			Weight:       weight,
			Contribution: round2(score * weight),
		}
	}

	c := types.ComponentContributions{
		SkillsRelevance:     contribution(scores.Skills, w.SkillsRelevance),
		ExperienceAlignment: contribution(scores.Experience, w.ExperienceAlignment),
		IndustryFit:         contribution(scores.Industry, w.IndustryFit),
		RoleSeniority:       contribution(scores.Seniority, w.RoleSeniority),
		TechnicalDepth:      contribution(scores.Technical, w.TechnicalDepth),
	}

	cat2 := c.SkillsRelevance.Score*w.SkillsRelevance +
		c.ExperienceAlignment.Score*w.ExperienceAlignment +
		c.IndustryFit.Score*w.IndustryFit +
		c.RoleSeniority.Score*w.RoleSeniority +
		c.TechnicalDepth.Score*w.TechnicalDepth
	return c, cat2
}

// CategoryStatusFor maps a final score to its status band.
func CategoryStatusFor(score float64) types.CategoryStatus {
	switch {
	case score >= excellentFrom:
		return types.StatusExcellent
	case score >= strongFrom:
		return types.StatusStrong
	case score >= goodFrom:
		return types.StatusGood
	case score >= fairFrom:
		return types.StatusFair
	default:
		return types.StatusPoor
	}
}

type missingCategory struct {
	singular string
	plural   string
	count    int
}

// largestMissing returns the category with the most missing skills. Ties resolve
// in technical, soft, domain order.
func largestMissing(m types.MissingSkillCounts) missingCategory {
	candidates := []missingCategory{
		{"technical skill", "technical skills", m.TechnicalSkills},
		{"soft skill", "soft skills", m.SoftSkills},
		{"domain keyword", "domain keywords", m.DomainKeywords},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.count > best.count {
			best = c
		}
	}
	return best
}

func (c missingCategory) phrase() string {
	if c.count == 1 {
		return "1 missing " + c.singular
	}
	return fmt.Sprintf("%d missing %s", c.count, c.plural)
}

// Recommendation renders the templated advice for a status and the category with
// the most missing skills.
func Recommendation(status types.CategoryStatus, missing types.MissingSkillCounts) string {
	gap := largestMissing(nonNegativeCounts(missing))
	if gap.count == 0 {
		switch status {
		case types.StatusExcellent:
			return "Excellent match; the CV covers the role's requirements and is ready to submit."
		case types.StatusStrong:
			return "Strong candidate; the CV covers the listed skills, polish how experience is presented before applying."
		case types.StatusGood:
			return "Good match; strengthen how existing experience is described to lift the score."
		case types.StatusFair:
			return "Fair match; significant tailoring is needed to align experience with the role."
		default:
			return "Poor match; consider whether this role is a good fit before investing in tailoring."
		}
	}

	switch status {
	case types.StatusExcellent:
		return fmt.Sprintf("Excellent match; optionally cover the %s before applying.", gap.phrase())
	case types.StatusStrong:
		return fmt.Sprintf("Strong candidate; consider addressing the %s before applying.", gap.phrase())
	case types.StatusGood:
		return fmt.Sprintf("Good match; address the %s to strengthen the application.", gap.phrase())
	case types.StatusFair:
		return fmt.Sprintf("Fair match; significant tailoring needed, starting with the %s.", gap.phrase())
	default:
		return fmt.Sprintf("Poor match; the CV lacks much of what the role asks for, including the %s. Consider whether this role is a good fit.", gap.phrase())
	}
}

func nonNegativeCounts(m types.MissingSkillCounts) types.MissingSkillCounts {
	return types.MissingSkillCounts{
		TechnicalSkills: max(0, m.TechnicalSkills),
		SoftSkills:      max(0, m.SoftSkills),
		DomainKeywords:  max(0, m.DomainKeywords),
	}
}

func inconsistenciesOrEmpty(in []types.Inconsistency) []types.Inconsistency {
	if in == nil {
		return []types.Inconsistency{}
	}
	return in
}
