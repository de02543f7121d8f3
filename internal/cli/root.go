package cli

import (
	"context"

	"cvtailor/internal/common"
	"cvtailor/internal/config"
	"cvtailor/internal/errors"
	"cvtailor/internal/observability"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}
type observabilityKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}
var observabilityKey = observabilityKeyType{}

var rootCmd = &cobra.Command{
	Use:   "cvtailor",
	Short: "ATS compatibility scoring for CVs against job descriptions",
	Long: `cvtailor scores how well a CV matches a job description the way an
applicant tracking system would. It combines keyword match rates with the
scores of five component analyzers, adds a bonus for required and preferred
keyword coverage and cross-checks the analyzers for contradictions.

Scores are kept per company so progress across CV revisions can be reviewed.`,
	SilenceUsage: true,
}

// Execute runs the root command. om may be nil when observability is off.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	ctx = context.WithValue(ctx, observabilityKey, om)
	rootCmd.SetContext(ctx)
	// cobra only hands the root context to subcommands that have none yet
	for _, sub := range rootCmd.Commands() {
		sub.SetContext(ctx)
	}
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// getObservabilityFromContext returns the manager or nil. Its methods are nil safe.
func getObservabilityFromContext(ctx context.Context) *observability.ObservabilityManager {
	om, _ := ctx.Value(observabilityKey).(*observability.ObservabilityManager)
	return om
}

// addOutputFlags registers --output and --format on cmd
func addOutputFlags(cmd *cobra.Command, target *common.CommandConfig) {
	cmd.Flags().StringVarP(&target.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&target.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveOutputFormat applies the configured default and checks the result
func resolveOutputFormat(cmd *cobra.Command, target *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if target.OutputFormat == "" {
		target.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(target.OutputFormat, cfg.App.SupportedFormats)
}

// runnerFor bundles what common.RunCommand needs for cmd
func runnerFor(cmd *cobra.Command) common.Runner {
	return common.Runner{
		Logger:      getLoggerFromContext(cmd.Context()),
		Out:         cmd.OutOrStdout(),
		MaxFileSize: getConfigFromContext(cmd.Context()).App.MaxFileSize,
	}
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
