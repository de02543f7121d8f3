package analysis

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cvtailor/internal/ai"
	"cvtailor/internal/errors"
	"cvtailor/internal/scoring"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	cv       types.SkillSet
	jd       types.JobSkillSet
	blobs    map[string]map[string]any
	failing  map[string]bool
	cvErr    error
	calls    atomic.Int32
	delay    time.Duration
	mu       sync.Mutex
	analyzed []string
}

func (f *fakeAnalyzer) ExtractCVSkills(ctx context.Context, _ string) (types.SkillSet, *ai.TokenUsage, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.SkillSet{}, nil, ctx.Err()
		}
	}
	return f.cv, nil, f.cvErr
}

func (f *fakeAnalyzer) ExtractJobSkills(context.Context, string) (types.JobSkillSet, *ai.TokenUsage, error) {
	return f.jd, nil, nil
}

func (f *fakeAnalyzer) Analyze(_ context.Context, name, _, _ string) (map[string]any, *ai.TokenUsage, error) {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, name)
	f.mu.Unlock()
	if f.failing[name] {
		return nil, nil, stderrors.New(name + " timed out")
	}
	return f.blobs[name], nil, nil
}

func (f *fakeAnalyzer) ModelUsed() string { return "fake-model" }

type countingRecorder struct {
	scores    atomic.Int32
	persisted atomic.Int32
}

func (r *countingRecorder) RecordScore(context.Context, string, types.ATSScoreRecord) {
	r.scores.Add(1)
}

func (r *countingRecorder) RecordAnalysisPersisted(_ context.Context, success bool) {
	if success {
		r.persisted.Add(1)
	}
}

type failingStore struct{ storage.Store }

func (failingStore) Append(context.Context, string, types.ATSScoreRecord) error {
	return errors.NewStorageError(errors.ErrCodeStorageWrite, "disk full", nil)
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		cv: types.SkillSet{
			TechnicalSkills: []string{"Golang", "Kubernetes", "PostgreSQL", "golang"},
			SoftSkills:      []string{"Mentoring"},
			DomainKeywords:  []string{"Payments"},
		},
		jd: types.JobSkillSet{
			SkillSet: types.SkillSet{
				TechnicalSkills: []string{"Go", "k8s", "Kafka", "Postgres"},
				SoftSkills:      []string{"mentoring", "communication"},
				DomainKeywords:  []string{"payments"},
			},
			RequiredKeywords:  []string{"Go", "Kubernetes"},
			PreferredKeywords: []string{"Kafka"},
		},
		blobs: map[string]map[string]any{
			ai.PromptSkills:     {"skills_analysis": map[string]any{"overall_skills_score": 80.0}},
			ai.PromptExperience: {"experience_analysis": map[string]any{"alignment_score": 75.0, "cv_experience_years": 6.0, "cv_role_level": "Senior"}},
			ai.PromptIndustry:   {"industry_analysis": map[string]any{"industry_alignment_score": 90.0}},
			ai.PromptSeniority:  {"seniority_analysis": map[string]any{"seniority_score": 70.0, "cv_experience_years": 6.0, "cv_responsibility_scope": "Senior"}},
			ai.PromptTechnical:  {"technical_analysis": map[string]any{"technical_depth_score": 85.0}},
		},
	}
}

func newTestEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.DefaultWeights(), scoring.DefaultConsistencyConfig(), nil)
	require.NoError(t, err)
	return engine
}

func request() types.AnalyzeRequest {
	return types.AnalyzeRequest{Company: "Acme Corp", CVText: "cv", JobDescription: "jd"}
}

func TestPipelineRun(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	rec := &countingRecorder{}
	fake := newFakeAnalyzer()

	p := NewPipeline(fake, nil, newTestEngine(t), nil, WithStore(store), WithRecorder(rec), WithAnalyzerLimit(2))
	res, err := p.Run(context.Background(), request())
	require.NoError(t, err)

	// technical: go, k8s, postgres matched, kafka missing
	assert.Equal(t, 75.0, res.Record.MatchRates.Technical)
	assert.Equal(t, 50.0, res.Record.MatchRates.Soft)
	assert.Equal(t, 100.0, res.Record.MatchRates.Domain)
	assert.Equal(t, 1, res.Record.MissingSkillCounts.TechnicalSkills)

	assert.Equal(t, 2, res.Record.RequirementBonus.MatchCounts.MatchedRequiredCount)
	assert.Equal(t, 0, res.Record.RequirementBonus.MatchCounts.MatchedPreferredCount)

	require.NotNil(t, res.Record.RawExtractionCounts)
	require.NotNil(t, res.Record.DeduplicatedCounts)
	assert.Equal(t, 4, res.Record.RawExtractionCounts.CV.TechnicalSkills)
	assert.Equal(t, 3, res.Record.DeduplicatedCounts.CV.TechnicalSkills)

	assert.Equal(t, 80.0, res.Record.ComponentContributions.SkillsRelevance.Score)
	assert.True(t, res.Record.IsConsistent)
	assert.Equal(t, "fake-model", res.Record.ModelUsed)
	assert.Equal(t, "Acme Corp", res.Record.Company)
	assert.Empty(t, res.FailedAnalyzers)
	assert.ElementsMatch(t, ai.AnalyzerPrompts, fake.analyzed)

	assert.True(t, res.Persisted)
	history, err := store.List(context.Background(), "Acme Corp")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Record.ID, history[0].ID)

	assert.Equal(t, int32(1), rec.scores.Load())
	assert.Equal(t, int32(1), rec.persisted.Load())
}

func TestPipelineLogsConsistencyRecommendations(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.blobs[ai.PromptExperience] = map[string]any{
		"experience_analysis": map[string]any{"alignment_score": 75.0, "cv_experience_years": 10.0},
	}
	var logs bytes.Buffer
	logger := errors.NewLoggerTo(&logs, slog.LevelWarn)

	res, err := NewPipeline(fake, nil, newTestEngine(t), logger).Run(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, res.Record.IsConsistent)

	assert.Contains(t, logs.String(), "Recommendations (1)")
	assert.Contains(t, logs.String(), "Experience years mismatch (10 vs 6)")
	assert.NotContains(t, logs.String(), "Recommendations: none")
}

func TestPipelineDegradesOnAnalyzerFailure(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.failing = map[string]bool{ai.PromptIndustry: true, ai.PromptSeniority: true}

	res, err := NewPipeline(fake, nil, newTestEngine(t), nil).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, []string{ai.PromptIndustry, ai.PromptSeniority}, res.FailedAnalyzers)
	assert.Nil(t, res.Analyses.Industry)
	assert.Equal(t, 0.0, res.Record.ComponentContributions.IndustryFit.Score)
	assert.Equal(t, 0.0, res.Record.ComponentContributions.RoleSeniority.Score)
	assert.False(t, res.Persisted)
}

func TestPipelineExtractionFailureAborts(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.cvErr = errors.NewAIError(errors.ErrCodeAIServiceFailed, "model unavailable", nil)

	res, err := NewPipeline(fake, nil, newTestEngine(t), nil).Run(context.Background(), request())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAI))
	assert.Empty(t, fake.analyzed)
}

func TestPipelineRejectsIncompleteRequest(t *testing.T) {
	_, err := NewPipeline(newFakeAnalyzer(), nil, newTestEngine(t), nil).
		Run(context.Background(), types.AnalyzeRequest{Company: "acme", CVText: "cv"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPipelineReturnsResultWhenPersistFails(t *testing.T) {
	rec := &countingRecorder{}
	p := NewPipeline(newFakeAnalyzer(), nil, newTestEngine(t), nil, WithStore(failingStore{}), WithRecorder(rec))

	res, err := p.Run(context.Background(), request())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
	require.NotNil(t, res)
	assert.False(t, res.Persisted)
	assert.NotEmpty(t, res.Record.ID)
	assert.Equal(t, int32(0), rec.persisted.Load())
}
