package scoring

import (
	stderrors "errors"
	"fmt"
	"math"
	"strings"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"

	"github.com/go-playground/validator/v10"
)

// Requirement bonus table
const (
	requiredBonusPerMatch = 0.5
	requiredBonusCapAt    = 5
	requiredBonusFlat     = 3.0

	requiredMissingTolerated = 1
	requiredMissingManyFrom  = 5
	requiredPenaltyFew       = -1.5 // 2..4 missing
	requiredPenaltyMany      = -4.0 // 5 or more missing

	preferredBonusPerMatch  = 0.2
	preferredPenaltyPerMiss = -0.15
)

var matchCountFields = []string{
	"total_required_keywords",
	"total_preferred_keywords",
	"matched_required_count",
	"matched_preferred_count",
}

// ParseMatchCounts reads MatchCounts from a decoded JSON object. Every field must be
// present and hold a non-negative integer. Floats with a fractional part, strings
// and booleans are rejected.
func ParseMatchCounts(raw map[string]any) (types.MatchCounts, error) {
	values := make(map[string]int, len(matchCountFields))
	for _, field := range matchCountFields {
		v, ok := raw[field]
		if !ok || v == nil {
			return types.MatchCounts{}, errors.NewValidationError(errors.ErrCodeMissingMatchCount,
				fmt.Sprintf("match counts: missing required field %q", field), nil).
				WithContext("field", field)
		}
		n, ok := asNonNegativeInt(v)
		if !ok {
			return types.MatchCounts{}, errors.NewValidationError(errors.ErrCodeInvalidMatchCounts,
				fmt.Sprintf("match counts: %q must be a non-negative integer, got %v", field, v), nil).
				WithContext("field", field)
		}
		values[field] = n
	}

	counts := types.MatchCounts{
		TotalRequiredKeywords:  values["total_required_keywords"],
		TotalPreferredKeywords: values["total_preferred_keywords"],
		MatchedRequiredCount:   values["matched_required_count"],
		MatchedPreferredCount:  values["matched_preferred_count"],
	}
	if err := validateMatchCounts(counts); err != nil {
		return types.MatchCounts{}, err
	}
	return counts, nil
}

func asNonNegativeInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func validateMatchCounts(counts types.MatchCounts) error {
	err := counts.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewValidationError(errors.ErrCodeInvalidMatchCounts, "match counts failed validation", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
		switch fe.Tag() {
		case "ltefield":
			msgs = append(msgs, fmt.Sprintf("%s (%v) exceeds %s", fe.Field(), fe.Value(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s (%v) must be non-negative", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.NewValidationError(errors.ErrCodeInvalidMatchCounts,
		"match counts: "+strings.Join(msgs, "; "), err).
		WithContext("fields", fields)
}

// CalculateRequirementBonus converts keyword coverage counts into bonus and
// penalty terms plus coverage percentages. Invalid counts are a validation error
// and are never clamped.
func CalculateRequirementBonus(counts types.MatchCounts) (types.RequirementBonus, error) {
	if err := validateMatchCounts(counts); err != nil {
		return types.RequirementBonus{}, err
	}

	missingRequired := max(0, counts.TotalRequiredKeywords-counts.MatchedRequiredCount)
	missingPreferred := max(0, counts.TotalPreferredKeywords-counts.MatchedPreferredCount)

	requiredBonus := requiredBonusFor(counts.MatchedRequiredCount)
	requiredPenalty := requiredPenaltyFor(missingRequired)

	var preferredBonus, preferredPenalty float64
	if counts.TotalPreferredKeywords > 0 {
		preferredBonus = preferredBonusPerMatch * float64(counts.MatchedPreferredCount)
		preferredPenalty = preferredPenaltyPerMiss * float64(missingPreferred)
	}

	breakdown := types.BonusBreakdown{
		RequiredBonus:    round2(requiredBonus),
		RequiredPenalty:  round2(requiredPenalty),
		PreferredBonus:   round2(preferredBonus),
		PreferredPenalty: round2(preferredPenalty),
	}
	breakdown.TotalBonus = round2(breakdown.RequiredBonus + breakdown.RequiredPenalty +
		breakdown.PreferredBonus + breakdown.PreferredPenalty)

	return types.RequirementBonus{
		MatchCounts: types.MatchCountSummary{
			MatchCounts:      counts,
			MissingRequired:  missingRequired,
			MissingPreferred: missingPreferred,
		},
		BonusBreakdown: breakdown,
		CoverageMetrics: types.CoverageMetrics{
			RequiredCoverage:  coverage(counts.MatchedRequiredCount, counts.TotalRequiredKeywords),
			PreferredCoverage: coverage(counts.MatchedPreferredCount, counts.TotalPreferredKeywords),
		},
	}, nil
}

func requiredBonusFor(matched int) float64 {
	if matched <= requiredBonusCapAt {
		return requiredBonusPerMatch * float64(matched)
	}
	return requiredBonusFlat
}

func requiredPenaltyFor(missing int) float64 {
	switch {
	case missing <= requiredMissingTolerated:
		return 0
	case missing < requiredMissingManyFrom:
		return requiredPenaltyFew
	default:
		return requiredPenaltyMany
	}
}

// coverage is matched/total as a percentage; an empty requirement list counts as
// fully covered.
func coverage(matched, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return round2(float64(matched) / float64(total) * 100)
}

func round2(v float64) float64 {
	return noNegativeZero(math.Round(v*100) / 100)
}

func round1(v float64) float64 {
	return noNegativeZero(math.Round(v*10) / 10)
}

func noNegativeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
