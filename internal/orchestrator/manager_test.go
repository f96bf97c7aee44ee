package orchestrator

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklarity/platform/internal/audio"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/orchestrator/notify"
	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/orchestrator/segment"
	"github.com/speaklarity/platform/internal/store"
)

var conversationWords = []segment.Word{
	{Text: "Hello", Start: 0.0, End: 2.0},
	{Text: "world.", Start: 2.0, End: 4.5},
	{Text: "How", Start: 5.0, End: 6.5},
	{Text: "are", Start: 6.5, End: 8.0},
	{Text: "you?", Start: 8.0, End: 10.0},
}

// fakeTranscriber returns full for the whole conversation and one word
// covering any shorter clip.
type fakeTranscriber struct {
	mu   sync.Mutex
	full []segment.Word
	err  error
	clip int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, c audio.Clip) ([]segment.Word, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if c.Seconds() > 9 {
		return f.full, nil
	}
	f.clip++
	return []segment.Word{{Text: "word", Start: 0, End: c.Seconds()}}, nil
}

type fakeScorer struct {
	mu   sync.Mutex
	reqs []scoring.Request
}

func (f *fakeScorer) Score(_ context.Context, req scoring.Request) scoring.Result {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	scores := make([]store.WordScore, len(req.Words))
	for i, w := range req.Words {
		scores[i] = store.WordScore{Word: w.Text, Score: 0.8}
	}
	return scoring.Result{WordScores: scores, SentenceScore: 0.8}
}

type fakeGrammar struct{}

func (fakeGrammar) Analyze(_ context.Context, text string) store.GrammarAnalysis {
	return store.GrammarAnalysis{IsGrammaticallyCorrect: true, CorrectedText: text, OverallFeedback: "ok"}
}

type failingCutter struct{}

func (failingCutter) Cut(audio.Clip, float64, float64) (audio.Clip, error) {
	return audio.Clip{}, apperrors.New(apperrors.CutFailed, "cutter offline")
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Publish(e notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) stages() []store.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Stage, len(s.events))
	for i, e := range s.events {
		out[i] = e.Stage
	}
	return out
}

type harness struct {
	m     *Manager
	store store.Store
	audio *store.AudioDir
	asr   *fakeTranscriber
	score *fakeScorer
	sink  *recordingSink
}

func newHarness(t *testing.T, words []segment.Word) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewFileStore(dir)
	require.NoError(t, err)

	h := &harness{
		store: st,
		audio: store.NewAudioDir(dir),
		asr:   &fakeTranscriber{full: words},
		score: &fakeScorer{},
		sink:  &recordingSink{},
	}
	h.m = New(Deps{
		Store:       h.store,
		Audio:       h.audio,
		Transcriber: h.asr,
		Scorer:      h.score,
		Grammar:     fakeGrammar{},
		Sink:        h.sink,
	}, Options{SampleRate: 16000})
	return h
}

func tenSeconds() audio.Clip {
	samples := make([]float32, 160000)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/16000))
	}
	return audio.Clip{Samples: samples, Rate: 16000}
}

func (h *harness) create(t *testing.T) string {
	t.Helper()
	conv, err := h.m.CreateFromClip(context.Background(), tenSeconds(), "talk.wav")
	require.NoError(t, err)
	return conv.ID
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	require.NoError(t, h.m.Run(context.Background(), id))

	assert.Equal(t, []store.Stage{
		store.StageUploading,
		store.StageSplitting,
		store.StageScoring,
		store.StageCheckingGrammar,
		store.StageFinished,
	}, h.sink.stages())

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	assert.Equal(t, "Hello world. How are you?", conv.Summary)
	require.Len(t, conv.Sentences, 2)

	assert.Equal(t, "Hello world.", conv.Sentences[0].Text)
	assert.Equal(t, &store.Span{Start: 0, End: 4.5}, conv.Sentences[0].Span)
	assert.Equal(t, "How are you?", conv.Sentences[1].Text)
	assert.Equal(t, &store.Span{Start: 5, End: 10}, conv.Sentences[1].Span)

	for i, s := range conv.Sentences {
		assert.Equal(t, i+1, s.ID)
		require.NotNil(t, s.SentenceScore)
		assert.InDelta(t, 0.8, *s.SentenceScore, 1e-9)
		require.NotNil(t, s.Grammar)
		assert.Equal(t, s.Text, s.Grammar.CorrectedText)
	}

	require.Len(t, h.score.reqs, 2)
	assert.Equal(t, "Hello world.", h.score.reqs[0].Text)
	assert.InDelta(t, 4.5, h.score.reqs[0].Audio.Seconds(), 1e-3)
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	require.NoError(t, h.m.Run(context.Background(), id))
	first, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, h.m.Run(context.Background(), id))
	second, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, first.Sentences, second.Sentences)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunTranscriptionFailureMarksError(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)
	h.asr.err = errors.New("asr offline")

	err := h.m.Run(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.TranscriptionFailed))

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageError, conv.Action)
	assert.Equal(t, store.StageSplitting, conv.FailedStage)
	assert.Contains(t, conv.Error, "asr offline")

	stages := h.sink.stages()
	assert.Equal(t, store.StageError, stages[len(stages)-1])
	assert.NotContains(t, stages, store.StageScoring)
}

func TestRunEmptySpanFallsBackPerSentence(t *testing.T) {
	h := newHarness(t, []segment.Word{
		{Text: "Hello", Start: 0.0, End: 2.0},
		{Text: "world.", Start: 2.0, End: 4.5},
		{Text: "Oh.", Start: 5.0, End: 5.0},
		{Text: "How", Start: 5.5, End: 6.5},
		{Text: "are", Start: 6.5, End: 8.0},
		{Text: "you?", Start: 8.0, End: 10.0},
	})
	id := h.create(t)

	require.NoError(t, h.m.Run(context.Background(), id))

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	require.Len(t, conv.Sentences, 3)

	empty := conv.Sentences[1]
	assert.Equal(t, "Oh.", empty.Text)
	require.NotNil(t, empty.SentenceScore)
	assert.Equal(t, -1.0, *empty.SentenceScore)
	assert.Contains(t, empty.ScoringError, "empty")

	for _, i := range []int{0, 2} {
		s := conv.Sentences[i]
		require.NotNil(t, s.SentenceScore, "sentence %d", s.ID)
		assert.InDelta(t, 0.8, *s.SentenceScore, 1e-9)
		assert.Empty(t, s.ScoringError)
	}
	assert.Len(t, h.score.reqs, 2)
}

func TestScoreMissingSpanIsMalformed(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	_, _, err := h.m.score(context.Background(), id, []store.Sentence{{ID: 1, Text: "Hi."}})
	assert.True(t, apperrors.IsCode(err, apperrors.MalformedState))
	assert.Empty(t, h.score.reqs)
}

func TestRerunStartsFromUploading(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)
	h.asr.err = errors.New("asr offline")
	require.Error(t, h.m.Run(context.Background(), id))

	h.asr.err = nil
	h.sink.events = nil
	require.NoError(t, h.m.Run(context.Background(), id))

	assert.Equal(t, []store.Stage{
		store.StageUploading,
		store.StageSplitting,
		store.StageScoring,
		store.StageCheckingGrammar,
		store.StageFinished,
	}, h.sink.stages())

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	assert.Empty(t, conv.FailedStage)
	assert.Empty(t, conv.Error)
}

func TestRunCutFailureFallsBackPerSentence(t *testing.T) {
	h := newHarness(t, conversationWords)
	h.m.deps.Cutter = failingCutter{}
	id := h.create(t)

	require.NoError(t, h.m.Run(context.Background(), id))

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	for _, s := range conv.Sentences {
		require.NotNil(t, s.SentenceScore)
		assert.Equal(t, -1.0, *s.SentenceScore)
		assert.Empty(t, s.WordScores)
		assert.Contains(t, s.ScoringError, "cutter offline")
	}
	assert.Empty(t, h.score.reqs)
}

func TestRunNoSpeechFinishes(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t)

	require.NoError(t, h.m.Run(context.Background(), id))

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	assert.Empty(t, conv.Sentences)
	assert.Empty(t, conv.Summary)
}

func TestRunMissingConversation(t *testing.T) {
	h := newHarness(t, conversationWords)
	err := h.m.Run(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.NotFound))
}

func TestBusyJobRejected(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	release, ok := h.m.jobs.TryLock(id)
	require.True(t, ok)
	defer release()

	assert.True(t, h.m.Busy(id))
	assert.True(t, apperrors.IsCode(h.m.Run(context.Background(), id), apperrors.JobBusy))
	assert.True(t, apperrors.IsCode(h.m.Submit(context.Background(), id), apperrors.JobBusy))
	assert.True(t, apperrors.IsCode(h.m.Delete(context.Background(), id), apperrors.JobBusy))
}

func TestSubmitRunsInBackground(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.m.Submit(ctx, id))
	cancel()
	h.m.Wait()

	conv, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StageFinished, conv.Action)
	assert.False(t, h.m.Busy(id))
}

func TestCreateFromWAV(t *testing.T) {
	h := newHarness(t, conversationWords)

	f, err := os.Create(filepath.Join(t.TempDir(), "upload.wav"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, audio.EncodeWAV(f, audio.Clip{Samples: tenSeconds().Samples, Rate: 16000}))
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	conv, err := h.m.Create(context.Background(), f, "/tmp/uploads/My Talk.wav")
	require.NoError(t, err)

	assert.Len(t, conv.ID, 16)
	assert.Equal(t, "My Talk.wav", conv.Filename)
	assert.Len(t, conv.SHA256, 64)
	assert.Equal(t, store.StageUploading, conv.Action)
	assert.Equal(t, []store.Stage{store.StageUploading}, h.sink.stages())

	_, err = os.Stat(h.audio.Path(conv.ID))
	assert.NoError(t, err)
}

func TestCreateRejectsEmptyAudio(t *testing.T) {
	h := newHarness(t, conversationWords)
	_, err := h.m.CreateFromClip(context.Background(), audio.Clip{Rate: 16000}, "empty.wav")
	assert.True(t, apperrors.IsCode(err, apperrors.AudioEmptyInput))
}

func TestDelete(t *testing.T) {
	h := newHarness(t, conversationWords)
	id := h.create(t)

	require.NoError(t, h.m.Delete(context.Background(), id))

	_, err := h.store.Get(context.Background(), id)
	assert.True(t, apperrors.IsCode(err, apperrors.NotFound))
	_, err = os.Stat(h.audio.Path(id))
	assert.True(t, os.IsNotExist(err))
}

func TestSummary(t *testing.T) {
	long := []store.Sentence{
		{Text: "The quick brown fox jumps over the lazy dog."},
		{Text: "Pack my box with five dozen liquor jugs."},
	}
	tests := []struct {
		name      string
		sentences []store.Sentence
		n         int
		want      string
	}{
		{"short", []store.Sentence{{Text: "Hello world."}, {Text: "How are you?"}}, 50, "Hello world. How are you?"},
		{"truncated", long, 50, "The quick brown fox jumps over the lazy dog. Pack "},
		{"runes", []store.Sentence{{Text: "Café crème"}}, 4, "Café"},
		{"empty", nil, 50, ""},
	}
	for _, tt := range tests {
		if got := Summary(tt.sentences, tt.n); got != tt.want {
			t.Errorf("%s: Summary() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 16)
	assert.Regexp(t, `^[0-9a-f]{16}$`, a)
	assert.NotEqual(t, a, b)
}
