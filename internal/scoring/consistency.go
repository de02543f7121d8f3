package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"
)

const (
	yearsField          = "cv_experience_years"
	roleLevelField      = "cv_role_level"
	responsibilityField = "cv_responsibility_scope"

	// maxScoreVariance is the largest population variance of scores in [0,100].
	maxScoreVariance = 2500.0
)

// ConsistencyConfig holds the validator thresholds
type ConsistencyConfig struct {
	YearsTolerance      float64 `mapstructure:"yearsTolerance" yaml:"yearsTolerance"`
	ConfidenceThreshold float64 `mapstructure:"confidenceThreshold" yaml:"confidenceThreshold"`
}

// DefaultConsistencyConfig returns a 2 year tolerance and a confidence threshold of 70.
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{
		YearsTolerance:      2,
		ConfidenceThreshold: 70,
	}
}

// Seniority bands. "Senior Individual Contributor" sits in two bands on purpose;
// two labels agree when they share any band.
var seniorityBands = [][]string{
	{"entry-level", "junior"},
	{"mid-level", "mid-senior", "senior individual contributor"},
	{"senior", "senior individual contributor", "lead"},
	{"executive", "director", "vp"},
}

// ConsistencyValidator cross-checks analyzer outputs that should agree on shared facts.
type ConsistencyValidator struct {
	config ConsistencyConfig
	logger *errors.Logger
}

// NewConsistencyValidator creates a validator. A nil logger discards output.
func NewConsistencyValidator(cfg ConsistencyConfig, logger *errors.Logger) *ConsistencyValidator {
	if logger == nil {
		logger = errors.Discard()
	}
	return &ConsistencyValidator{config: cfg, logger: logger}
}

// Validate compares years of experience and seniority labels between the
// experience and seniority analyzers and derives a confidence score from the
// spread of the five component scores. It never returns an error: failures
// become a validation_error entry with IsConsistent set to false.
// Low confidence only adds a recommendation.
func (v *ConsistencyValidator) Validate(a types.ComponentAnalyses) (report types.ConsistencyReport) {
	defer func() {
		if r := recover(); r != nil {
			report = v.failed(fmt.Errorf("consistency check panicked: %v", r))
		}
	}()

	report, err := v.check(a)
	if err != nil {
		return v.failed(err)
	}
	return report
}

func (v *ConsistencyValidator) check(a types.ComponentAnalyses) (types.ConsistencyReport, error) {
	report := types.ConsistencyReport{
		IsConsistent:    true,
		Inconsistencies: []types.Inconsistency{},
		Recommendations: []string{},
	}

	experience := section(a.Experience, experienceSection)
	seniority := section(a.Seniority, senioritySection)

	if err := v.checkYears(experience, seniority, &report); err != nil {
		return report, err
	}
	if err := v.checkRoleLevel(experience, seniority, &report); err != nil {
		return report, err
	}

	report.ConfidenceScore = confidenceFromScores(ExtractComponentScores(a).Values())
	if report.ConfidenceScore < v.config.ConfidenceThreshold {
		report.Recommendations = append(report.Recommendations, fmt.Sprintf(
			"Low consistency between component analyses (confidence %.1f/100); review the individual analyzer scores before relying on the final score.",
			report.ConfidenceScore))
	}

	report.IsConsistent = len(report.Inconsistencies) == 0
	if !report.IsConsistent {
		v.logger.Warn("component analyses disagree",
			"inconsistencies", len(report.Inconsistencies),
			"confidence_score", report.ConfidenceScore)
	}
	return report, nil
}

func (v *ConsistencyValidator) checkYears(experience, seniority map[string]any, report *types.ConsistencyReport) error {
	expYears, expOK, err := optionalNumber(experience, yearsField, "experience")
	if err != nil {
		return err
	}
	senYears, senOK, err := optionalNumber(seniority, yearsField, "seniority")
	if err != nil {
		return err
	}
	if !expOK || !senOK {
		return nil
	}

	diff := round2(math.Abs(expYears - senYears))
	if diff <= v.config.YearsTolerance {
		return nil
	}

	threshold := v.config.YearsTolerance
	report.Inconsistencies = append(report.Inconsistencies, types.Inconsistency{
		Type: types.InconsistencyExperienceYears,
		Detail: fmt.Sprintf("experience analysis reports %s years, seniority analysis reports %s years (difference %s exceeds tolerance %s)",
			formatNumber(expYears), formatNumber(senYears), formatNumber(diff), formatNumber(threshold)),
		ExperienceValue: expYears,
		SeniorityValue:  senYears,
		Difference:      &diff,
		Threshold:       &threshold,
	})
	report.Recommendations = append(report.Recommendations, fmt.Sprintf(
		"Experience years mismatch (%s vs %s): verify employment dates in the CV and re-run the experience and seniority analyses.",
		formatNumber(expYears), formatNumber(senYears)))
	return nil
}

func (v *ConsistencyValidator) checkRoleLevel(experience, seniority map[string]any, report *types.ConsistencyReport) error {
	level, err := optionalString(experience, roleLevelField, "experience")
	if err != nil {
		return err
	}
	scope, err := optionalString(seniority, responsibilityField, "seniority")
	if err != nil {
		return err
	}
	if level == "" || scope == "" {
		return nil
	}
	// a label outside the vocabulary has no band and so shares none
	levelBands := bandsOf(level)
	scopeBands := bandsOf(scope)
	for b := range levelBands {
		if _, ok := scopeBands[b]; ok {
			return nil
		}
	}

	report.Inconsistencies = append(report.Inconsistencies, types.Inconsistency{
		Type:            types.InconsistencyRoleLevel,
		Detail:          fmt.Sprintf("experience analysis role level %q does not match seniority analysis responsibility scope %q", level, scope),
		ExperienceValue: level,
		SeniorityValue:  scope,
	})
	report.Recommendations = append(report.Recommendations, fmt.Sprintf(
		"Role level mismatch (%s vs %s): clarify titles and scope of responsibility in the CV.", level, scope))
	return nil
}

func (v *ConsistencyValidator) failed(err error) types.ConsistencyReport {
	v.logger.LogError(err, "consistency validation failed")
	return types.ConsistencyReport{
		IsConsistent: false,
		Inconsistencies: []types.Inconsistency{{
			Type:   types.InconsistencyValidationError,
			Detail: err.Error(),
		}},
		Recommendations: []string{"Consistency validation could not complete; review the component analyses manually."},
		ConfidenceScore: 0,
	}
}

func bandsOf(label string) map[int]struct{} {
	norm := strings.ToLower(strings.TrimSpace(label))
	found := make(map[int]struct{})
	for i, band := range seniorityBands {
		for _, member := range band {
			if member == norm {
				found[i] = struct{}{}
			}
		}
	}
	return found
}

// confidenceFromScores maps the population variance of scores onto 0..100,
// rounded to one decimal.
func confidenceFromScores(scores []float64) float64 {
	if len(scores) == 0 {
		return 100
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	var sq float64
	for _, s := range scores {
		sq += (s - mean) * (s - mean)
	}
	variance := sq / float64(len(scores))
	return round1(math.Max(0, 100-(variance/maxScoreVariance)*100))
}

func optionalNumber(obj map[string]any, key, analyzer string) (float64, bool, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, false, fmt.Errorf("%s analysis field %s is not numeric: %v", analyzer, key, raw)
	}
	return f, true, nil
}

func optionalString(obj map[string]any, key, analyzer string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s analysis field %s is not a string: %v", analyzer, key, raw)
	}
	return strings.TrimSpace(s), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderReport formats a report as plain text for operator logs.
func RenderReport(report types.ConsistencyReport) string {
	var b strings.Builder

	b.WriteString("Consistency Validation Report\n")
	b.WriteString("=============================\n")
	status := "CONSISTENT"
	if !report.IsConsistent {
		status = "INCONSISTENT"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Confidence Score: %.1f/100\n", report.ConfidenceScore)

	if len(report.Inconsistencies) == 0 {
		b.WriteString("\nInconsistencies: none\n")
	} else {
		fmt.Fprintf(&b, "\nInconsistencies (%d):\n", len(report.Inconsistencies))
		for i, inc := range report.Inconsistencies {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, inc.Type, inc.Detail)
		}
	}

	if len(report.Recommendations) == 0 {
		b.WriteString("\nRecommendations: none\n")
	} else {
		fmt.Fprintf(&b, "\nRecommendations (%d):\n", len(report.Recommendations))
		for i, rec := range report.Recommendations {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
		}
	}

	return b.String()
}
