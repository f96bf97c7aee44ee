package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/speaklarity/platform/internal/config"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/report"
	"github.com/speaklarity/platform/internal/store"
)

// jobError reports a pipeline run that ended in the error stage.
type jobError struct {
	id  string
	err error
}

func (e *jobError) Error() string { return fmt.Sprintf("conversation %s failed: %v", e.id, e.err) }
func (e *jobError) Unwrap() error { return e.err }

func isJobError(err error) bool {
	var je *jobError
	return stderrors.As(err, &je)
}

func newProcessCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file.wav>",
		Short: "Ingest a recording and run the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.shutdown()

			f, err := os.Open(args[0])
			if err != nil {
				return apperrors.Wrapf(err, apperrors.InvalidArgument, "open %s", args[0])
			}
			defer f.Close()

			conv, err := a.manager.Create(cmd.Context(), f, args[0])
			if err != nil {
				return err
			}
			return runAndReport(cmd.Context(), a, cmd, conv.ID)
		},
	}
}

// runAndReport runs the pipeline for id and prints the resulting document.
func runAndReport(ctx context.Context, a *app, cmd *cobra.Command, id string) error {
	runErr := a.manager.Run(ctx, id)

	conv, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := report.Conversation(cmd.OutOrStdout(), conv, a.reportOptions()); err != nil {
		return err
	}
	if runErr != nil || conv.Action == store.StageError {
		if runErr == nil {
			runErr = apperrors.New(apperrors.Internal, conv.Error)
		}
		return &jobError{id: id, err: runErr}
	}
	return nil
}
