package cli

import (
	"context"
	"fmt"

	"cvtailor/internal/analysis"
	"cvtailor/internal/common"
	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [cv-file] [job-description-file]",
	Short: "Score a CV against a job description using AI",
	Long: `Run a full ATS analysis of a CV against a job description:

- Extract technical skills, soft skills and domain keywords from both documents
- Match them and compute per-category match rates
- Run the skills, experience, industry, seniority and technical analyzers
- Combine everything into a final score out of 100 with a recommendation
- Append the record to the company's score history

An analyzer that fails lowers the score instead of aborting the run.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if analyzeCompany == "" {
			return fmt.Errorf("--company is required")
		}
		return resolveOutputFormat(cmd, &analyzeConfig)
	},
	RunE: runAnalyze,
}

var (
	analyzeConfig  common.CommandConfig
	analyzeCompany string
	analyzeNoSave  bool
)

func init() {
	addOutputFlags(analyzeCmd, &analyzeConfig)
	analyzeCmd.Flags().StringVar(&analyzeCompany, "company", "", "Company the job description belongs to (required)")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "Do not append the result to the score history")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	om := getObservabilityFromContext(cmd.Context())

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	var store storage.Store
	if !analyzeNoSave {
		fs, err := newStore(cfg, logger)
		if err != nil {
			return err
		}
		store = fs
	}

	aiService, err := newAIService(cmd.Context(), cfg, logger, om)
	if err != nil {
		return err
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	pipeline := newPipeline(cfg, aiService, engine, store, logger, om)

	createInput := func(fp *common.FileProcessor, args []string) (types.AnalyzeRequest, error) {
		contents, err := fp.ValidateAndReadFiles(args...)
		if err != nil {
			return types.AnalyzeRequest{}, err
		}
		return types.AnalyzeRequest{
			Company:        analyzeCompany,
			CVText:         contents[0],
			JobDescription: contents[1],
		}, nil
	}

	logDetails := func(req types.AnalyzeRequest, cfg common.CommandConfig) {
		logger.Info("Starting ATS analysis",
			"company", req.Company,
			"cv_chars", len(req.CVText),
			"job_chars", len(req.JobDescription),
			"output_format", cfg.OutputFormat)
	}

	analyzeOperation := func(ctx context.Context, req types.AnalyzeRequest) (*analysis.Result, error) {
		return pipeline.Run(ctx, req)
	}

	err = common.RunCommand(cmd.Context(), runnerFor(cmd), analyzeConfig, args, createInput, analyzeOperation, logDetails)
	if err != nil {
		return fmt.Errorf("failed to analyze CV: %w", err)
	}
	logger.Info("ATS analysis completed successfully")
	return nil
}
