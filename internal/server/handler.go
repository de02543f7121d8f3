package server

import (
	"context"
	"errors"
	"net/http"

	cvErrors "cvtailor/internal/errors"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := s.deps.Observability.Tracer("cvtailor.api").Start(ctx, name)
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		span.SetAttributes(attribute.String("request_id", id))
	}
	return ctx, span
}

// scoreHandler computes a record from precomputed match data. With
// ?save=true and a company the record is also appended to the history.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.score")
	defer span.End()

	var req types.ScoreRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, span, cvErrors.NewValidationError(cvErrors.ErrCodeInvalidRequest, "Invalid request body", err))
		return
	}
	span.SetAttributes(attribute.String("company", req.Company))

	record, err := s.deps.Engine.Score(req)
	if err != nil {
		s.fail(w, span, err)
		return
	}
	s.deps.Observability.RecordScore(ctx, "score", record)
	span.SetAttributes(attribute.Float64("final_ats_score", record.FinalATSScore))

	resp := ScoreResponse{Record: record}
	if r.URL.Query().Get("save") == "true" {
		if req.Company == "" {
			s.fail(w, span, cvErrors.NewValidationError(cvErrors.ErrCodeInvalidRequest,
				"company is required to save a score", nil))
			return
		}
		err := s.deps.Store.Append(ctx, req.Company, record)
		s.deps.Observability.RecordAnalysisPersisted(ctx, err == nil)
		if err != nil {
			s.fail(w, span, err)
			return
		}
		resp.Persisted = true
	}

	writeJSON(w, http.StatusOK, resp)
}

// validateHandler runs only the consistency check
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.validate")
	defer span.End()

	var analyses types.ComponentAnalyses
	if err := parseJSONRequest(r, &analyses); err != nil {
		s.fail(w, span, cvErrors.NewValidationError(cvErrors.ErrCodeInvalidRequest, "Invalid request body", err))
		return
	}

	report := s.deps.Engine.Validate(analyses)
	s.deps.Observability.RecordConsistency(ctx, report)
	span.SetAttributes(
		attribute.Bool("is_consistent", report.IsConsistent),
		attribute.Float64("confidence_score", report.ConfidenceScore),
	)

	writeJSON(w, http.StatusOK, report)
}

// analyzeHandler runs the full model backed analysis. Identical concurrent
// requests share one run.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.analyze")
	defer span.End()

	if s.deps.Analyses == nil {
		writeErrorResponse(w, "AI analysis unavailable", "no AI API key is configured", http.StatusServiceUnavailable)
		return
	}

	var req types.AnalyzeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, span, cvErrors.NewValidationError(cvErrors.ErrCodeInvalidRequest, "Invalid request body", err))
		return
	}
	span.SetAttributes(
		attribute.String("company", req.Company),
		attribute.Int("request.cv_length", len(req.CVText)),
		attribute.Int("request.job_length", len(req.JobDescription)),
	)

	res, shared, err := s.deps.Analyses.Run(ctx, req)
	if err != nil {
		// the score was computed but could not be stored
		if res != nil && cvErrors.IsType(err, cvErrors.ErrorTypeStorage) {
			s.Logger.LogError(err, "Analysis computed but not persisted", "company", req.Company)
			span.RecordError(err)
			writeJSON(w, http.StatusOK, AnalyzeResponse{Result: res, Shared: shared})
			return
		}
		s.fail(w, span, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("shared", shared),
		attribute.Float64("final_ats_score", res.Record.FinalATSScore),
	)
	writeJSON(w, http.StatusOK, AnalyzeResponse{Result: res, Shared: shared})
}

// historyHandler lists a company's records, or the known companies when no
// company is given
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.history")
	defer span.End()

	company := r.URL.Query().Get("company")
	if company == "" {
		companies, err := s.deps.Store.Companies(ctx)
		if err != nil {
			s.fail(w, span, err)
			return
		}
		if companies == nil {
			companies = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
		return
	}

	if _, err := storage.CompanySlug(company); err != nil {
		s.fail(w, span, err)
		return
	}

	entries, err := s.deps.Store.List(ctx, company)
	if err != nil {
		s.fail(w, span, err)
		return
	}
	if entries == nil {
		entries = []types.ATSScoreRecord{}
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	writeJSON(w, http.StatusOK, HistoryResponse{Company: company, Entries: entries})
}

// fail maps an error to a status code and writes it. Validation errors are
// the caller's fault; everything else is ours.
func (s *Server) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), Message: err.Error()}
	if appErr, ok := cvErrors.As(err); ok {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		span.SetAttributes(attribute.String("error.type", string(appErr.Type)))
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed")
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case cvErrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), cvErrors.IsType(err, cvErrors.ErrorTypeNetwork):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
