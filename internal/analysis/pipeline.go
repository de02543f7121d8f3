package analysis

import (
	"context"
	"time"

	"cvtailor/internal/ai"
	"cvtailor/internal/errors"
	"cvtailor/internal/matching"
	"cvtailor/internal/scoring"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Analyzer is the model-backed half of an analysis
type Analyzer interface {
	ExtractCVSkills(ctx context.Context, cvText string) (types.SkillSet, *ai.TokenUsage, error)
	ExtractJobSkills(ctx context.Context, jobDescription string) (types.JobSkillSet, *ai.TokenUsage, error)
	Analyze(ctx context.Context, analyzer, cvText, jobDescription string) (map[string]any, *ai.TokenUsage, error)
	ModelUsed() string
}

// Recorder receives business metrics. *observability.ObservabilityManager
// implements it.
type Recorder interface {
	RecordScore(ctx context.Context, source string, record types.ATSScoreRecord)
	RecordAnalysisPersisted(ctx context.Context, success bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordScore(context.Context, string, types.ATSScoreRecord) {}
func (noopRecorder) RecordAnalysisPersisted(context.Context, bool)             {}

// Result is the outcome of one analysis
type Result struct {
	Record          types.ATSScoreRecord    `json:"record"`
	Match           matching.Result         `json:"keyword_match"`
	Analyses        types.ComponentAnalyses `json:"component_analyses"`
	FailedAnalyzers []string                `json:"failed_analyzers,omitempty"`
	Persisted       bool                    `json:"persisted"`
	Duration        time.Duration           `json:"duration_ns"`
}

// Pipeline runs a CV against a job description end to end
type Pipeline struct {
	analyzer Analyzer
	matcher  *matching.Matcher
	engine   *scoring.Engine
	store    storage.Store
	recorder Recorder
	logger   *errors.Logger

	// analyzerLimit caps concurrent component analyzer calls
	analyzerLimit int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStore persists every record to store
func WithStore(store storage.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithRecorder reports metrics to r
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithAnalyzerLimit caps concurrent analyzer calls; zero or less means no cap
func WithAnalyzerLimit(n int) Option {
	return func(p *Pipeline) { p.analyzerLimit = n }
}

// NewPipeline wires an analysis pipeline
func NewPipeline(analyzer Analyzer, matcher *matching.Matcher, engine *scoring.Engine, logger *errors.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = errors.Discard()
	}
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	p := &Pipeline{
		analyzer: analyzer,
		matcher:  matcher,
		engine:   engine,
		recorder: noopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run extracts skills from both documents, matches them, runs the component
// analyzers and scores the result. A failing analyzer degrades the score; a
// failing extraction aborts the run. When persisting fails the computed result
// is returned together with the error.
func (p *Pipeline) Run(ctx context.Context, req types.AnalyzeRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"company, cv_text and job_description are required", err)
	}

	ctx, span := otel.Tracer("cvtailor.analysis").Start(ctx, "analysis.run")
	defer span.End()
	span.SetAttributes(attribute.String("company", req.Company))

	start := time.Now()
	logger := p.logger.With("company", req.Company)

	cv, jd, err := p.extract(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	match := p.matcher.Match(cv, jd)
	logger.Debug("Keyword matching complete",
		"technical_match_rate", match.MatchRates.Technical,
		"soft_match_rate", match.MatchRates.Soft,
		"domain_match_rate", match.MatchRates.Domain,
		"matched_required", match.MatchCounts.MatchedRequiredCount,
		"total_required", match.MatchCounts.TotalRequiredKeywords)

	analyses, failed := p.runAnalyzers(ctx, req, logger)

	record, report, err := p.engine.ScoreWithReport(match.MatchCounts, types.ScoreRequest{
		Company:            req.Company,
		MatchRates:         match.MatchRates,
		ComponentAnalyses:  analyses,
		MissingSkillCounts: match.MissingSkillCounts,
		ModelUsed:          p.analyzer.ModelUsed(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	raw, dedup := match.RawCounts, match.DeduplicatedCounts
	record.RawExtractionCounts = &raw
	record.DeduplicatedCounts = &dedup

	if report.IsConsistent {
		logger.Debug("Consistency check passed", "confidence_score", record.ConfidenceScore)
	} else {
		logger.Warn("Analyzer outputs disagree", "report", scoring.RenderReport(report))
	}

	p.recorder.RecordScore(ctx, "analyze", record)
	span.SetAttributes(
		attribute.Float64("final_ats_score", record.FinalATSScore),
		attribute.Int("failed_analyzers", len(failed)),
	)

	result := &Result{
		Record:          record,
		Match:           match,
		Analyses:        analyses,
		FailedAnalyzers: failed,
	}

	if p.store != nil {
		err := p.store.Append(ctx, req.Company, record)
		p.recorder.RecordAnalysisPersisted(ctx, err == nil)
		if err != nil {
			span.RecordError(err)
			result.Duration = time.Since(start)
			return result, err
		}
		result.Persisted = true
	}

	result.Duration = time.Since(start)
	logger.Info("Analysis complete",
		"record_id", record.ID,
		"final_ats_score", record.FinalATSScore,
		"category_status", record.CategoryStatus,
		"failed_analyzers", len(failed),
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// extract runs CV and job description extraction concurrently
func (p *Pipeline) extract(ctx context.Context, req types.AnalyzeRequest) (types.SkillSet, types.JobSkillSet, error) {
	var (
		cv types.SkillSet
		jd types.JobSkillSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cv, _, err = p.analyzer.ExtractCVSkills(gctx, req.CVText)
		return err
	})
	g.Go(func() error {
		var err error
		jd, _, err = p.analyzer.ExtractJobSkills(gctx, req.JobDescription)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.SkillSet{}, types.JobSkillSet{}, err
	}
	return cv, jd, nil
}

// runAnalyzers runs the five component analyzers. Failures leave a nil blob
// and are reported by name.
func (p *Pipeline) runAnalyzers(ctx context.Context, req types.AnalyzeRequest, logger *errors.Logger) (types.ComponentAnalyses, []string) {
	names := ai.AnalyzerPrompts
	blobs := make([]map[string]any, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	if p.analyzerLimit > 0 {
		g.SetLimit(p.analyzerLimit)
	}
	for i, name := range names {
		g.Go(func() error {
			blobs[i], _, errs[i] = p.analyzer.Analyze(ctx, name, req.CVText, req.JobDescription)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			blobs[i] = nil
			failed = append(failed, names[i])
			logger.LogError(err, "Component analyzer failed, scoring without it", "analyzer", names[i])
		}
	}

	return types.ComponentAnalyses{
		Skills:     blobs[0],
		Experience: blobs[1],
		Industry:   blobs[2],
		Seniority:  blobs[3],
		Technical:  blobs[4],
	}, failed
}
