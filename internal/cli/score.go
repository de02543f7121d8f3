package cli

import (
	"context"
	"fmt"

	"cvtailor/internal/common"
	"cvtailor/internal/types"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score [input-file]",
	Short: "Compute an ATS score from precomputed match data",
	Long: `Compute an ATS compatibility score from a JSON document holding keyword
match rates, required and preferred keyword counts, missing skill counts and
the raw outputs of the five component analyzers.

The document looks like:
  {
    "company": "Acme",
    "match_rates": {"technical_match_rate": 80, "soft_match_rate": 60, "domain_match_rate": 50},
    "match_counts": {"total_required_keywords": 5, "matched_required_count": 4,
                     "total_preferred_keywords": 3, "matched_preferred_count": 1},
    "missing_skill_counts": {"technical_skills": 2, "soft_skills": 1, "domain_keywords": 3},
    "component_analyses": {"skills": {...}, "experience": {...}, "industry": {...},
                           "seniority": {...}, "technical": {...}}
  }

With --save the record is appended to the company's score history.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &scoreConfig)
	},
	RunE: runScore,
}

var (
	scoreConfig  common.CommandConfig
	scoreCompany string
	scoreSave    bool
)

func init() {
	addOutputFlags(scoreCmd, &scoreConfig)
	scoreCmd.Flags().StringVar(&scoreCompany, "company", "", "Company name (overrides the input document)")
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "Append the record to the company's score history")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	om := getObservabilityFromContext(cmd.Context())

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	createInput := func(fp *common.FileProcessor, args []string) (types.ScoreRequest, error) {
		var req types.ScoreRequest
		if err := fp.ReadJSON(args[0], &req); err != nil {
			return req, err
		}
		if scoreCompany != "" {
			req.Company = scoreCompany
		}
		return req, nil
	}

	logDetails := func(req types.ScoreRequest, cfg common.CommandConfig) {
		logger.Info("Starting ATS scoring",
			"company", req.Company,
			"save", scoreSave,
			"output_format", cfg.OutputFormat)
	}

	scoreOperation := func(ctx context.Context, req types.ScoreRequest) (types.ATSScoreRecord, error) {
		record, err := engine.Score(req)
		if err != nil {
			return record, err
		}
		om.RecordScore(ctx, "score", record)

		if !scoreSave {
			return record, nil
		}
		if req.Company == "" {
			return record, fmt.Errorf("--save needs a company, set it in the input or with --company")
		}
		store, err := newStore(cfg, logger)
		if err != nil {
			return record, err
		}
		err = store.Append(ctx, req.Company, record)
		om.RecordAnalysisPersisted(ctx, err == nil)
		return record, err
	}

	err = common.RunCommand(cmd.Context(), runnerFor(cmd), scoreConfig, args, createInput, scoreOperation, logDetails)
	if err != nil {
		return fmt.Errorf("failed to compute ATS score: %w", err)
	}
	logger.Info("ATS scoring completed successfully")
	return nil
}
