package scoring

import (
	"sync/atomic"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"
)

// Engine runs the full scoring chain: requirement bonus, component extraction,
// consistency validation and aggregation. Weights can be swapped at runtime.
type Engine struct {
	validator  *ConsistencyValidator
	aggregator atomic.Pointer[Aggregator]
	logger     *errors.Logger
}

// NewEngine builds an engine from a weighting table and validator thresholds.
func NewEngine(weights Weights, consistency ConsistencyConfig, logger *errors.Logger) (*Engine, error) {
	if logger == nil {
		logger = errors.Discard()
	}
	agg, err := NewAggregator(weights)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		validator: NewConsistencyValidator(consistency, logger),
		logger:    logger,
	}
	e.aggregator.Store(agg)
	return e, nil
}

// Weights returns the weighting table currently in use
func (e *Engine) Weights() Weights {
	return e.aggregator.Load().Weights()
}

// UpdateWeights swaps the weighting table. Invalid weights leave the current
// table in place.
func (e *Engine) UpdateWeights(weights Weights) error {
	agg, err := NewAggregator(weights)
	if err != nil {
		return err
	}
	e.aggregator.Store(agg)
	e.logger.Info("scoring weights updated",
		"keyword_blend", weights.Blend.Keyword,
		"component_blend", weights.Blend.Component)
	return nil
}

// Validate runs only the consistency validator
func (e *Engine) Validate(analyses types.ComponentAnalyses) types.ConsistencyReport {
	return e.validator.Validate(analyses)
}

// Score computes an ATS record. Only malformed match counts fail; degraded
// analyzer input lowers the score instead.
func (e *Engine) Score(req types.ScoreRequest) (types.ATSScoreRecord, error) {
	counts, err := ParseMatchCounts(req.MatchCounts)
	if err != nil {
		return types.ATSScoreRecord{}, err
	}
	return e.ScoreCounts(counts, req)
}

// ScoreCounts is Score for callers that already hold typed match counts.
// req.MatchCounts is ignored.
func (e *Engine) ScoreCounts(counts types.MatchCounts, req types.ScoreRequest) (types.ATSScoreRecord, error) {
	record, _, err := e.ScoreWithReport(counts, req)
	return record, err
}

// ScoreWithReport is ScoreCounts that also returns the full consistency
// report, recommendations included.
func (e *Engine) ScoreWithReport(counts types.MatchCounts, req types.ScoreRequest) (types.ATSScoreRecord, types.ConsistencyReport, error) {
	bonus, err := CalculateRequirementBonus(counts)
	if err != nil {
		return types.ATSScoreRecord{}, types.ConsistencyReport{}, err
	}

	scores := ExtractComponentScores(req.ComponentAnalyses)
	report := e.validator.Validate(req.ComponentAnalyses)

	record := e.aggregator.Load().Aggregate(AggregationInput{
		MatchRates:         req.MatchRates,
		ComponentScores:    scores,
		Bonus:              bonus,
		Consistency:        report,
		MissingSkillCounts: req.MissingSkillCounts,
		ModelUsed:          req.ModelUsed,
	})
	record.Company = req.Company

	e.logger.Debug("ats score computed",
		"record_id", record.ID,
		"final_ats_score", record.FinalATSScore,
		"category_status", record.CategoryStatus,
		"confidence_score", record.ConfidenceScore)
	return record, report, nil
}
