package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/speaklarity/platform/internal/audio"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/orchestrator/notify"
	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/orchestrator/segment"
	"github.com/speaklarity/platform/internal/store"
	"github.com/speaklarity/platform/internal/syncx"
	"github.com/speaklarity/platform/internal/trace"
)

// Transcriber returns word-level timestamps for a clip.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) ([]segment.Word, error)
}

// Cutter extracts [start, end) seconds of src as a new clip.
type Cutter interface {
	Cut(src audio.Clip, start, end float64) (audio.Clip, error)
}

// Scorer scores one sentence clip. It never fails.
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) scoring.Result
}

// GrammarChecker analyzes sentence text. It never fails.
type GrammarChecker interface {
	Analyze(ctx context.Context, text string) store.GrammarAnalysis
}

// Sink receives stage-change events.
type Sink interface {
	Publish(e notify.Event)
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Store       store.Store
	Audio       *store.AudioDir
	Transcriber Transcriber
	Cutter      Cutter
	Scorer      Scorer
	Grammar     GrammarChecker
	Sink        Sink
}

// Options bound the manager. Zero values take the package defaults.
type Options struct {
	SampleRate        int
	SummaryLength     int
	MaxConcurrentJobs int
}

// Manager runs conversation jobs. At most one worker progresses a given
// conversation at a time.
type Manager struct {
	deps Deps
	opts Options

	jobs *syncx.KeyedMutex
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	now  func() time.Time
}

// New builds a Manager. A nil Cutter cuts clips in process.
func New(deps Deps, opts Options) *Manager {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultNormalizeOptions().TargetRate
	}
	if opts.SummaryLength <= 0 {
		opts.SummaryLength = DefaultSummaryLength
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if deps.Cutter == nil {
		deps.Cutter = audio.Cutter{}
	}
	return &Manager{
		deps: deps,
		opts: opts,
		jobs: syncx.NewKeyedMutex(),
		sem:  semaphore.NewWeighted(int64(opts.MaxConcurrentJobs)),
		now:  time.Now,
	}
}

// NewID returns a fresh conversation id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// Create ingests a WAV recording as a new conversation in the uploading stage.
func (m *Manager) Create(ctx context.Context, r io.ReadSeeker, filename string) (*store.Conversation, error) {
	ctx, span := trace.StartSpan(ctx, "create_conversation")
	defer span.End()

	buf, err := audio.DecodeWAV(r)
	if err != nil {
		return nil, err
	}
	return m.CreateFromClip(ctx, buf.Mono(), filename)
}

// CreateFromClip stores an already decoded clip as a new conversation.
func (m *Manager) CreateFromClip(ctx context.Context, clip audio.Clip, filename string) (*store.Conversation, error) {
	if len(clip.Samples) == 0 {
		return nil, apperrors.New(apperrors.AudioEmptyInput, "conversation audio is empty")
	}
	clip = audio.Resample(clip, m.opts.SampleRate)

	id := NewID()
	ctx = trace.WithJob(ctx, id)
	sum, err := m.deps.Audio.Save(id, clip)
	if err != nil {
		return nil, err
	}

	conv := &store.Conversation{
		ID:         id,
		Filename:   filepath.Base(filename),
		SHA256:     sum,
		UploadedAt: m.now().UTC(),
		Action:     store.StageUploading,
		Sentences:  []store.Sentence{},
	}
	if err := m.deps.Store.Put(ctx, conv); err != nil {
		_ = m.deps.Audio.Remove(id)
		return nil, err
	}
	m.publish(id, store.StageUploading, "")
	trace.Logger(ctx).Info("conversation stored", "filename", conv.Filename, "seconds", clip.Seconds())
	return conv, nil
}

// Run executes the pipeline for id on the calling goroutine. It fails with
// JOB_BUSY when another worker holds the conversation.
func (m *Manager) Run(ctx context.Context, id string) error {
	release, ok := m.jobs.TryLock(id)
	if !ok {
		return busy(id)
	}
	defer release()
	return m.run(ctx, id)
}

// Submit starts the pipeline for id in the background, bounded by the
// concurrent job limit. The job outlives ctx's cancellation.
func (m *Manager) Submit(ctx context.Context, id string) error {
	release, ok := m.jobs.TryLock(id)
	if !ok {
		return busy(id)
	}
	ctx = context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer release()
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer m.sem.Release(1)
		if err := m.run(ctx, id); err != nil {
			trace.Logger(trace.WithJob(ctx, id)).Error("job failed", "error", err)
		}
	}()
	return nil
}

// Wait blocks until every submitted job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Busy reports whether a worker currently holds id.
func (m *Manager) Busy(id string) bool {
	return m.jobs.Held(id)
}

// Delete removes a conversation's document and audio. It refuses while a
// job is running.
func (m *Manager) Delete(ctx context.Context, id string) error {
	release, ok := m.jobs.TryLock(id)
	if !ok {
		return busy(id)
	}
	defer release()

	if err := m.deps.Store.Delete(ctx, id); err != nil {
		return err
	}
	return m.deps.Audio.Remove(id)
}

func busy(id string) error {
	return apperrors.Newf(apperrors.JobBusy, "conversation %s is already being processed", id).
		WithMetadata("conversation_id", id)
}

type stage struct {
	name store.Stage
	next store.Stage
	work func(ctx context.Context, id string, sentences []store.Sentence) ([]store.Sentence, store.Fields, error)
}

func (m *Manager) run(ctx context.Context, id string) error {
	ctx = trace.WithJob(ctx, id)
	ctx, span := trace.StartSpan(ctx, "run_job")
	defer span.End()
	log := trace.Logger(ctx)

	conv, err := m.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if conv.Action != store.StageUploading {
		if err := m.restart(ctx, id, conv.Action); err != nil {
			return err
		}
	}

	stages := []stage{
		{name: store.StageSplitting, next: store.StageScoring, work: m.split},
		{name: store.StageScoring, next: store.StageCheckingGrammar, work: m.score},
		{name: store.StageCheckingGrammar, next: store.StageFinished, work: m.checkGrammar},
	}

	sentences := conv.Sentences
	for _, st := range stages {
		sctx := trace.WithStage(ctx, string(st.name))
		if err := m.enter(sctx, id, st.name); err != nil {
			return m.fail(sctx, id, st.name, err)
		}

		sctx, stageSpan := trace.StartSpan(sctx, "stage")
		out, extra, err := st.work(sctx, id, sentences)
		stageSpan.SetAttr("sentences", len(out))
		stageSpan.End()
		if err != nil {
			return m.fail(sctx, id, st.name, err)
		}

		fields := store.Fields{store.FieldSentences: out, store.FieldAction: st.next}
		for k, v := range extra {
			fields[k] = v
		}
		if err := m.deps.Store.Merge(sctx, id, fields); err != nil {
			return m.fail(sctx, id, st.name, err)
		}
		sentences = out
	}

	m.publish(id, store.StageFinished, "")
	log.Info("job finished", "sentences", len(sentences))
	return nil
}

// restart opens a new run of a conversation that already left uploading.
// The previous outcome is cleared so stages again advance from uploading.
func (m *Manager) restart(ctx context.Context, id string, from store.Stage) error {
	err := m.deps.Store.Merge(ctx, id, store.Fields{
		store.FieldAction:      store.StageUploading,
		store.FieldFailedStage: "",
		store.FieldError:       "",
	})
	if err != nil {
		return err
	}
	m.publish(id, store.StageUploading, "")
	trace.Logger(ctx).Info("job restarted", "previous_stage", from)
	return nil
}

// enter persists the stage about to run and announces it.
func (m *Manager) enter(ctx context.Context, id string, st store.Stage) error {
	if err := m.deps.Store.Merge(ctx, id, store.Fields{store.FieldAction: st}); err != nil {
		return err
	}
	m.publish(id, st, "")
	trace.Logger(ctx).Info("stage started")
	return nil
}

// fail marks the job as errored at st and returns the cause.
func (m *Manager) fail(ctx context.Context, id string, st store.Stage, cause error) error {
	log := trace.Logger(ctx)
	log.Error("stage failed", "failed_stage", st, "error", cause)

	err := m.deps.Store.Merge(ctx, id, store.Fields{
		store.FieldAction:      store.StageError,
		store.FieldFailedStage: st,
		store.FieldError:       cause.Error(),
	})
	if err != nil {
		log.Error("failed to persist error stage", "error", err)
	}
	m.publish(id, store.StageError, cause.Error())
	return cause
}

func (m *Manager) publish(id string, st store.Stage, errMsg string) {
	if m.deps.Sink == nil {
		return
	}
	m.deps.Sink.Publish(notify.Event{ConversationID: id, Stage: st, At: m.now(), Error: errMsg})
}

// split transcribes the whole conversation and replaces its sentences.
func (m *Manager) split(ctx context.Context, id string, _ []store.Sentence) ([]store.Sentence, store.Fields, error) {
	clip, err := m.deps.Audio.Load(id)
	if err != nil {
		return nil, nil, err
	}
	words, err := m.deps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.TranscriptionFailed, "transcribe conversation")
	}

	segs := segment.Segment(words)
	out := make([]store.Sentence, len(segs))
	for i, s := range segs {
		out[i] = store.Sentence{
			ID:   s.ID,
			Text: s.Text,
			Span: &store.Span{Start: s.Start, End: s.End},
		}
	}
	trace.Logger(ctx).Info("conversation segmented", "words", len(words), "sentences", len(out))
	return out, nil, nil
}

// score cuts and scores every sentence, updating each in place. Sentence
// failures, including empty spans, fall back; a sentence without any span
// fails the stage.
func (m *Manager) score(ctx context.Context, id string, sentences []store.Sentence) ([]store.Sentence, store.Fields, error) {
	for _, s := range sentences {
		if s.Span == nil {
			return nil, nil, apperrors.Newf(apperrors.MalformedState, "sentence %d has no audio span", s.ID).
				WithMetadata("sentence_id", strconv.Itoa(s.ID))
		}
	}
	if len(sentences) == 0 {
		return sentences, nil, nil
	}

	clip, err := m.deps.Audio.Load(id)
	if err != nil {
		return nil, nil, err
	}

	out := make([]store.Sentence, len(sentences))
	copy(out, sentences)
	for i := range out {
		res := m.scoreSentence(ctx, clip, out[i])
		score := res.SentenceScore
		out[i].WordScores = res.WordScores
		out[i].SentenceScore = &score
		out[i].ScoringError = ""
		if res.Err != nil {
			out[i].ScoringError = res.Err.Error()
		}
	}
	return out, nil, nil
}

func (m *Manager) scoreSentence(ctx context.Context, conversation audio.Clip, s store.Sentence) scoring.Result {
	log := trace.Logger(ctx).With("sentence_id", s.ID)

	if !s.Span.Valid() {
		return m.fallback(log, apperrors.Newf(apperrors.CutFailed, "audio span [%g, %g) is empty", s.Span.Start, s.Span.End))
	}
	clip, err := m.deps.Cutter.Cut(conversation, s.Span.Start, s.Span.End)
	if err != nil {
		return m.fallback(log, err)
	}
	words, err := m.deps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		return m.fallback(log, apperrors.Wrap(err, apperrors.TranscriptionFailed, "transcribe sentence clip"))
	}
	return m.deps.Scorer.Score(ctx, scoring.Request{Audio: clip, Text: s.Text, Words: words})
}

type fallbackScorer interface {
	FallbackScore() float64
}

func (m *Manager) fallback(log *slog.Logger, err error) scoring.Result {
	log.Warn("sentence not scored", "error", err)
	score := scoring.DefaultOptions().FallbackScore
	if fs, ok := m.deps.Scorer.(fallbackScorer); ok {
		score = fs.FallbackScore()
	}
	return scoring.Result{WordScores: []store.WordScore{}, SentenceScore: score, Fallback: true, Err: err}
}

// checkGrammar attaches an analysis to every sentence with text and then
// builds the summary.
func (m *Manager) checkGrammar(ctx context.Context, _ string, sentences []store.Sentence) ([]store.Sentence, store.Fields, error) {
	out := make([]store.Sentence, len(sentences))
	copy(out, sentences)
	for i := range out {
		if strings.TrimSpace(out[i].Text) == "" {
			continue
		}
		analysis := m.deps.Grammar.Analyze(ctx, out[i].Text)
		out[i].Grammar = &analysis
	}
	return out, store.Fields{store.FieldSummary: Summary(out, m.opts.SummaryLength)}, nil
}

// Summary returns the first n runes of all sentence texts joined by spaces.
func Summary(sentences []store.Sentence, n int) string {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	joined := []rune(strings.Join(texts, " "))
	if len(joined) > n {
		joined = joined[:n]
	}
	return string(joined)
}
