package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/speaklarity/platform/internal/audio"
	"github.com/speaklarity/platform/internal/config"
)

func newRecordCommand(cfg *config.Config) *cobra.Command {
	var (
		seconds int
		process bool
		device  string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a conversation from the microphone",
		Long: `Record a conversation from the microphone and store it.

Recording stops after --seconds or on Ctrl-C. With --process the pipeline runs
immediately and the report is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if device == "" {
				device = cfg.Audio.RecordDevice
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.shutdown()

			fmt.Fprintf(cmd.ErrOrStderr(), "recording for up to %ds...\n", seconds)
			recCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			rec := audio.NewRecorder(cfg.Audio.SampleRate, device)
			clip, err := rec.Record(recCtx, time.Duration(seconds)*time.Second)
			stop()
			if err != nil {
				return err
			}

			name := fmt.Sprintf("recording_%s.wav", time.Now().Format("20060102_150405"))
			conv, err := a.manager.CreateFromClip(cmd.Context(), clip, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%.1fs) as %s\n", conv.ID, clip.Seconds(), name)

			if !process {
				return nil
			}
			return runAndReport(cmd.Context(), a, cmd, conv.ID)
		},
	}

	cmd.Flags().IntVar(&seconds, "seconds", 30, "Maximum recording length in seconds")
	cmd.Flags().BoolVar(&process, "process", false, "Run the pipeline after recording")
	cmd.Flags().StringVar(&device, "device", "", "Input device name (overrides audio.record_device)")
	return cmd
}
