package main

import (
	"github.com/spf13/cobra"

	"github.com/speaklarity/platform/internal/config"
	"github.com/speaklarity/platform/internal/report"
	"github.com/speaklarity/platform/internal/store"
)

func newListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations and their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			cs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			return report.List(cmd.OutOrStdout(), cs)
		},
	}
}
