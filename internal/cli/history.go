package cli

import (
	"context"
	"fmt"

	"cvtailor/internal/common"
	"cvtailor/internal/types"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded ATS scores of a company",
	Long: `List every ATS score recorded for a company, oldest first. Without
--company the companies that have a history are listed.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &historyConfig)
	},
	RunE: runHistory,
}

var (
	historyConfig  common.CommandConfig
	historyCompany string
)

func init() {
	addOutputFlags(historyCmd, &historyConfig)
	historyCmd.Flags().StringVar(&historyCompany, "company", "", "Company name")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	if historyCompany == "" {
		companies, err := store.Companies(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range companies {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	}

	// no input files, the company flag is the whole input
	createInput := func(*common.FileProcessor, []string) (string, error) {
		return historyCompany, nil
	}
	listOperation := func(ctx context.Context, company string) ([]types.ATSScoreRecord, error) {
		return store.List(ctx, company)
	}

	return common.RunCommand(cmd.Context(), runnerFor(cmd), historyConfig, nil, createInput, listOperation, nil)
}
