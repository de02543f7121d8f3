package cli

import (
	"context"
	"fmt"

	"cvtailor/internal/common"
	"cvtailor/internal/types"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [components-file]",
	Short: "Cross-check component analyzer outputs for contradictions",
	Long: `Check the outputs of the experience and seniority analyzers against each
other. Years of experience that differ by more than the configured tolerance
and role levels that fall in different seniority bands are reported, together
with a confidence score derived from the spread of the five component scores.

The input is a JSON object with the keys skills, experience, industry,
seniority and technical, each holding one analyzer's raw output.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &validateConfig)
	},
	RunE: runValidate,
}

var validateConfig common.CommandConfig

func init() {
	addOutputFlags(validateCmd, &validateConfig)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	om := getObservabilityFromContext(cmd.Context())

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	createInput := func(fp *common.FileProcessor, args []string) (types.ComponentAnalyses, error) {
		var analyses types.ComponentAnalyses
		return analyses, fp.ReadJSON(args[0], &analyses)
	}

	validateOperation := func(ctx context.Context, analyses types.ComponentAnalyses) (types.ConsistencyReport, error) {
		report := engine.Validate(analyses)
		om.RecordConsistency(ctx, report)
		return report, nil
	}

	err = common.RunCommand(cmd.Context(), runnerFor(cmd), validateConfig, args, createInput, validateOperation, nil)
	if err != nil {
		return fmt.Errorf("failed to validate component analyses: %w", err)
	}
	return nil
}
