package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/speaklarity/platform/internal/config"
	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/report"
	"github.com/speaklarity/platform/internal/store"
)

func newShowCommand(cfg *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation's sentences, scores and grammar feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			conv, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(conv)
			}
			return report.Conversation(cmd.OutOrStdout(), conv, report.Options{
				Thresholds:    scoring.Thresholds{Good: cfg.Scoring.GoodThreshold, Fair: cfg.Scoring.FairThreshold},
				FallbackScore: cfg.Scoring.FallbackScore,
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored document as JSON")
	return cmd
}
