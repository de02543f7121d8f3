package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cvtailor/internal/analysis"
	"cvtailor/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// Data type names used as registry keys
const (
	TypeAny               = "any"
	TypeScoreRecord       = "ATSScoreRecord"
	TypeConsistencyReport = "ConsistencyReport"
	TypeHistory           = "History"
	TypeAnalysisResult    = "AnalysisResult"
)

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", TypeAny, &JSONFormatter{})
	registry.RegisterFormatter("text", TypeScoreRecord, &ScoreTextFormatter{})
	registry.RegisterFormatter("markdown", TypeScoreRecord, &ScoreMarkdownFormatter{})
	registry.RegisterFormatter("text", TypeAnalysisResult, &ScoreTextFormatter{})
	registry.RegisterFormatter("markdown", TypeAnalysisResult, &ScoreMarkdownFormatter{})
	registry.RegisterFormatter("text", TypeConsistencyReport, &ConsistencyTextFormatter{})
	registry.RegisterFormatter("markdown", TypeConsistencyReport, &ConsistencyMarkdownFormatter{})
	registry.RegisterFormatter("text", TypeHistory, &HistoryTextFormatter{})
	registry.RegisterFormatter("markdown", TypeHistory, &HistoryMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters[TypeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ATSScoreRecord, *types.ATSScoreRecord:
		return TypeScoreRecord
	case types.ConsistencyReport, *types.ConsistencyReport:
		return TypeConsistencyReport
	case []types.ATSScoreRecord:
		return TypeHistory
	case *analysis.Result, analysis.Result:
		return TypeAnalysisResult
	default:
		return TypeAny
	}
}

// scoreRecordOf accepts a record, a pointer to one, or an analysis result
func scoreRecordOf(data any) (types.ATSScoreRecord, []string, error) {
	switch v := data.(type) {
	case types.ATSScoreRecord:
		return v, nil, nil
	case *types.ATSScoreRecord:
		return *v, nil, nil
	case analysis.Result:
		return v.Record, v.FailedAnalyzers, nil
	case *analysis.Result:
		return v.Record, v.FailedAnalyzers, nil
	default:
		return types.ATSScoreRecord{}, nil, fmt.Errorf("expected ATSScoreRecord, got %T", data)
	}
}

func consistencyReportOf(data any) (types.ConsistencyReport, error) {
	switch v := data.(type) {
	case types.ConsistencyReport:
		return v, nil
	case *types.ConsistencyReport:
		return *v, nil
	default:
		return types.ConsistencyReport{}, fmt.Errorf("expected ConsistencyReport, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return TypeAny
}

// ScoreTextFormatter renders an ATS score record as plain text
type ScoreTextFormatter struct{}

func (stf *ScoreTextFormatter) Format(data any) (string, error) {
	record, failed, err := scoreRecordOf(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== ATS SCORE ===\n")
	if record.Company != "" {
		fmt.Fprintf(&output, "Company: %s\n", record.Company)
	}
	fmt.Fprintf(&output, "Final Score: %.1f/100 (%s)\n", record.FinalATSScore, record.CategoryStatus)
	fmt.Fprintf(&output, "Recommendation: %s\n\n", record.Recommendation)

	output.WriteString("=== BREAKDOWN ===\n")
	fmt.Fprintf(&output, "Keyword match (category 1): %.2f\n", record.Category1Score)
	fmt.Fprintf(&output, "Component analysis (category 2): %.2f\n", record.Category2Score)
	fmt.Fprintf(&output, "Base score: %.2f\n", record.BaseScore)
	fmt.Fprintf(&output, "Requirement bonus: %+.2f\n\n", record.RequirementBonus.BonusBreakdown.TotalBonus)

	output.WriteString("Match rates:\n")
	fmt.Fprintf(&output, "  Technical: %.1f%%\n", record.MatchRates.Technical)
	fmt.Fprintf(&output, "  Soft:      %.1f%%\n", record.MatchRates.Soft)
	fmt.Fprintf(&output, "  Domain:    %.1f%%\n\n", record.MatchRates.Domain)

	output.WriteString("Components:\n")
	for _, c := range contributions(record.ComponentContributions) {
		fmt.Fprintf(&output, "  %-22s %5.1f x %.2f = %.2f\n", c.label+":", c.Score, c.Weight, c.Contribution)
	}
	output.WriteString("\n")

	bonus := record.RequirementBonus
	fmt.Fprintf(&output, "Required keywords: %d/%d matched (%.1f%%)\n",
		bonus.MatchCounts.MatchedRequiredCount, bonus.MatchCounts.TotalRequiredKeywords, bonus.CoverageMetrics.RequiredCoverage)
	fmt.Fprintf(&output, "Preferred keywords: %d/%d matched (%.1f%%)\n",
		bonus.MatchCounts.MatchedPreferredCount, bonus.MatchCounts.TotalPreferredKeywords, bonus.CoverageMetrics.PreferredCoverage)
	fmt.Fprintf(&output, "Missing skills: technical %d, soft %d, domain %d\n\n",
		record.MissingSkillCounts.TechnicalSkills, record.MissingSkillCounts.SoftSkills, record.MissingSkillCounts.DomainKeywords)

	output.WriteString("=== CONSISTENCY ===\n")
	fmt.Fprintf(&output, "Consistent: %t (confidence %.1f/100)\n", record.IsConsistent, record.ConfidenceScore)
	for _, inc := range record.Inconsistencies {
		fmt.Fprintf(&output, "  - [%s] %s\n", inc.Type, inc.Detail)
	}
	if len(failed) > 0 {
		fmt.Fprintf(&output, "Analyzers without output: %s\n", strings.Join(failed, ", "))
	}

	fmt.Fprintf(&output, "\nRecord %s, model %s, %s\n", record.ID, record.ModelUsed, record.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return output.String(), nil
}

func (stf *ScoreTextFormatter) SupportedType() string {
	return TypeScoreRecord
}

// ScoreMarkdownFormatter renders an ATS score record as markdown
type ScoreMarkdownFormatter struct{}

func (smf *ScoreMarkdownFormatter) Format(data any) (string, error) {
	record, failed, err := scoreRecordOf(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# ATS Score")
	if record.Company != "" {
		output.WriteString(": " + record.Company)
	}
	output.WriteString("\n\n")
	fmt.Fprintf(&output, "**%.1f / 100** (%s)\n\n", record.FinalATSScore, record.CategoryStatus)
	fmt.Fprintf(&output, "> %s\n\n", record.Recommendation)

	output.WriteString("## Breakdown\n\n")
	output.WriteString("| Part | Score |\n|---|---|\n")
	fmt.Fprintf(&output, "| Keyword match | %.2f |\n", record.Category1Score)
	fmt.Fprintf(&output, "| Component analysis | %.2f |\n", record.Category2Score)
	fmt.Fprintf(&output, "| Base score | %.2f |\n", record.BaseScore)
	fmt.Fprintf(&output, "| Requirement bonus | %+.2f |\n\n", record.RequirementBonus.BonusBreakdown.TotalBonus)

	output.WriteString("## Components\n\n")
	output.WriteString("| Component | Score | Weight | Contribution |\n|---|---|---|---|\n")
	for _, c := range contributions(record.ComponentContributions) {
		fmt.Fprintf(&output, "| %s | %.1f | %.2f | %.2f |\n", c.label, c.Score, c.Weight, c.Contribution)
	}
	output.WriteString("\n")

	output.WriteString("## Keywords\n\n")
	fmt.Fprintf(&output, "- Technical match: %.1f%%\n", record.MatchRates.Technical)
	fmt.Fprintf(&output, "- Soft skills match: %.1f%%\n", record.MatchRates.Soft)
	fmt.Fprintf(&output, "- Domain match: %.1f%%\n", record.MatchRates.Domain)
	fmt.Fprintf(&output, "- Required: %d of %d\n", record.RequirementBonus.MatchCounts.MatchedRequiredCount, record.RequirementBonus.MatchCounts.TotalRequiredKeywords)
	fmt.Fprintf(&output, "- Preferred: %d of %d\n\n", record.RequirementBonus.MatchCounts.MatchedPreferredCount, record.RequirementBonus.MatchCounts.TotalPreferredKeywords)

	output.WriteString("## Consistency\n\n")
	fmt.Fprintf(&output, "Confidence: %.1f/100\n\n", record.ConfidenceScore)
	if record.IsConsistent {
		output.WriteString("No inconsistencies found.\n")
	}
	for _, inc := range record.Inconsistencies {
		fmt.Fprintf(&output, "- **%s**: %s\n", inc.Type, inc.Detail)
	}
	if len(failed) > 0 {
		fmt.Fprintf(&output, "\n_Analyzers without output: %s_\n", strings.Join(failed, ", "))
	}

	return output.String(), nil
}

func (smf *ScoreMarkdownFormatter) SupportedType() string {
	return TypeScoreRecord
}

// ConsistencyTextFormatter renders a consistency report as plain text
type ConsistencyTextFormatter struct{}

func (ctf *ConsistencyTextFormatter) Format(data any) (string, error) {
	report, err := consistencyReportOf(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== CONSISTENCY REPORT ===\n")
	fmt.Fprintf(&output, "Consistent: %t\n", report.IsConsistent)
	fmt.Fprintf(&output, "Confidence: %.1f/100\n", report.ConfidenceScore)

	if len(report.Inconsistencies) > 0 {
		output.WriteString("\nInconsistencies:\n")
		for _, inc := range report.Inconsistencies {
			fmt.Fprintf(&output, "  - [%s] %s\n", inc.Type, inc.Detail)
		}
	}
	if len(report.Recommendations) > 0 {
		output.WriteString("\nRecommendations:\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&output, "  - %s\n", rec)
		}
	}
	return output.String(), nil
}

func (ctf *ConsistencyTextFormatter) SupportedType() string {
	return TypeConsistencyReport
}

// ConsistencyMarkdownFormatter renders a consistency report as markdown
type ConsistencyMarkdownFormatter struct{}

func (cmf *ConsistencyMarkdownFormatter) Format(data any) (string, error) {
	report, err := consistencyReportOf(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Consistency Report\n\n")
	status := "consistent"
	if !report.IsConsistent {
		status = "inconsistent"
	}
	fmt.Fprintf(&output, "Analyses are **%s** (confidence %.1f/100).\n", status, report.ConfidenceScore)

	if len(report.Inconsistencies) > 0 {
		output.WriteString("\n## Inconsistencies\n\n")
		for _, inc := range report.Inconsistencies {
			fmt.Fprintf(&output, "- **%s**: %s\n", inc.Type, inc.Detail)
		}
	}
	if len(report.Recommendations) > 0 {
		output.WriteString("\n## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&output, "- %s\n", rec)
		}
	}
	return output.String(), nil
}

func (cmf *ConsistencyMarkdownFormatter) SupportedType() string {
	return TypeConsistencyReport
}

// HistoryTextFormatter renders a company's score history as a text table
type HistoryTextFormatter struct{}

func (htf *HistoryTextFormatter) Format(data any) (string, error) {
	records, ok := data.([]types.ATSScoreRecord)
	if !ok {
		return "", fmt.Errorf("expected []ATSScoreRecord, got %T", data)
	}
	if len(records) == 0 {
		return "No ATS scores recorded.\n", nil
	}

	var output strings.Builder
	fmt.Fprintf(&output, "%-20s  %-36s  %6s  %-9s  %s\n", "TIMESTAMP", "ID", "SCORE", "STATUS", "CONSISTENT")
	for _, r := range records {
		fmt.Fprintf(&output, "%-20s  %-36s  %6.1f  %-9s  %t\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.ID, r.FinalATSScore, r.CategoryStatus, r.IsConsistent)
	}
	return output.String(), nil
}

func (htf *HistoryTextFormatter) SupportedType() string {
	return TypeHistory
}

// HistoryMarkdownFormatter renders a company's score history as a markdown table
type HistoryMarkdownFormatter struct{}

func (hmf *HistoryMarkdownFormatter) Format(data any) (string, error) {
	records, ok := data.([]types.ATSScoreRecord)
	if !ok {
		return "", fmt.Errorf("expected []ATSScoreRecord, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# ATS Score History\n\n")
	if len(records) == 0 {
		output.WriteString("No ATS scores recorded.\n")
		return output.String(), nil
	}
	output.WriteString("| Timestamp | Score | Status | Consistent | Record |\n|---|---|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&output, "| %s | %.1f | %s | %t | `%s` |\n",
			r.Timestamp.Format("2006-01-02 15:04"), r.FinalATSScore, r.CategoryStatus, r.IsConsistent, r.ID)
	}
	return output.String(), nil
}

func (hmf *HistoryMarkdownFormatter) SupportedType() string {
	return TypeHistory
}

type labeledContribution struct {
	label string
	types.ComponentContribution
}

func contributions(c types.ComponentContributions) []labeledContribution {
	return []labeledContribution{
		{"Skills relevance", c.SkillsRelevance},
		{"Experience alignment", c.ExperienceAlignment},
		{"Industry fit", c.IndustryFit},
		{"Role seniority", c.RoleSeniority},
		{"Technical depth", c.TechnicalDepth},
	}
}
