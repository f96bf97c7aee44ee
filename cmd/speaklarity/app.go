package main

import (
	stderrors "errors"
	"log/slog"

	"github.com/speaklarity/platform/internal/audio"
	"github.com/speaklarity/platform/internal/cache"
	"github.com/speaklarity/platform/internal/config"
	"github.com/speaklarity/platform/internal/grpcclient"
	"github.com/speaklarity/platform/internal/orchestrator"
	"github.com/speaklarity/platform/internal/orchestrator/grammar"
	"github.com/speaklarity/platform/internal/orchestrator/notify"
	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/report"
	"github.com/speaklarity/platform/internal/store"
)

// app holds the process-wide collaborators. Models live behind the
// inference client, built once and shared by every job.
type app struct {
	cfg       *config.Config
	store     store.Store
	audio     *store.AudioDir
	inference *grpcclient.Client
	hub       *notify.Hub
	manager   *orchestrator.Manager
}

func newApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	inference, err := grpcclient.New(grpcclient.FromConfig(cfg))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		store:     st,
		audio:     store.NewAudioDir(cfg.DataDir),
		inference: inference,
		hub:       notify.NewHub(),
	}

	engine := scoring.NewEngine(inference, cache.NewReferences(inference, cfg.Scoring.ReferenceCacheDir), scoring.Options{
		Normalize: audio.NormalizeOptions{
			TargetRate: cfg.Audio.SampleRate,
			HighpassHz: cfg.Audio.HighpassHz,
			TargetRMS:  cfg.Audio.TargetRMS,
		},
		MinWordSamples: cfg.Scoring.MinWordSamples,
		FallbackScore:  cfg.Scoring.FallbackScore,
		TTSEngine:      cfg.Scoring.TTSEngine,
	})

	a.manager = orchestrator.New(orchestrator.Deps{
		Store:       st,
		Audio:       a.audio,
		Transcriber: inference,
		Cutter:      audio.Cutter{},
		Scorer:      engine,
		Grammar:     grammar.NewChecker(inference),
		Sink:        a.hub,
	}, orchestrator.Options{
		SampleRate:        cfg.Audio.SampleRate,
		SummaryLength:     cfg.Pipeline.SummaryLength,
		MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
	})
	return a, nil
}

func (a *app) reportOptions() report.Options {
	return report.Options{
		Thresholds: scoring.Thresholds{
			Good: a.cfg.Scoring.GoodThreshold,
			Fair: a.cfg.Scoring.FairThreshold,
		},
		FallbackScore: a.cfg.Scoring.FallbackScore,
	}
}

// close waits for running jobs and releases connections.
func (a *app) close() error {
	a.manager.Wait()
	return stderrors.Join(a.inference.Close(), a.store.Close())
}

// shutdown closes the app and logs any error, for deferred use.
func (a *app) shutdown() {
	if err := a.close(); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
