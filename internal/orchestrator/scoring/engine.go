// Package scoring compares a speaker's words against a native reference clip
// by cosine similarity of speech embeddings.
package scoring

//go:generate go run go.uber.org/mock/mockgen -destination=mocks_test.go -package=scoring . Embedder,Synthesizer

import (
	"context"
	"fmt"
	"math"

	"github.com/speaklarity/platform/internal/audio"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/orchestrator/segment"
	"github.com/speaklarity/platform/internal/store"
	"github.com/speaklarity/platform/internal/trace"
)

// Embedder maps a mono clip at the canonical rate to a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, clip audio.Clip) ([]float32, error)
}

// Synthesizer renders text as native-speaker audio with the named engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, engine string) (audio.Clip, error)
}

// Options tune the scoring engine.
type Options struct {
	Normalize      audio.NormalizeOptions
	MinWordSamples int
	FallbackScore  float64
	TTSEngine      string
}

// DefaultOptions returns the stock scoring settings.
func DefaultOptions() Options {
	return Options{
		Normalize:      audio.DefaultNormalizeOptions(),
		MinWordSamples: 160,
		FallbackScore:  -1,
		TTSEngine:      "gtts",
	}
}

// Request is one sentence to score. Words are relative to Audio. When
// Reference is nil one is synthesized from Text.
type Request struct {
	Audio     audio.Clip
	Reference *audio.Clip
	Text      string
	Words     []segment.Word
}

// Result is always well-formed. When Fallback is set SentenceScore holds the
// configured sentinel, WordScores is empty and Err says why.
type Result struct {
	WordScores    []store.WordScore
	SentenceScore float64
	Fallback      bool
	Err           error
}

// Engine scores sentences against a native reference.
type Engine struct {
	embedder Embedder
	synth    Synthesizer
	opts     Options
}

// NewEngine builds an Engine. synth may be nil when every request carries a
// Reference.
func NewEngine(embedder Embedder, synth Synthesizer, opts Options) *Engine {
	return &Engine{embedder: embedder, synth: synth, opts: opts}
}

// FallbackScore returns the sentinel used for untrustworthy sentences.
func (e *Engine) FallbackScore() float64 { return e.opts.FallbackScore }

// Score never fails: any error or panic in the pipeline becomes a fallback result.
func (e *Engine) Score(ctx context.Context, req Request) (res Result) {
	log := trace.Logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			res = e.fallback(apperrors.Newf(apperrors.Internal, "scoring panicked: %v", r))
		}
		if res.Fallback {
			log.Warn("sentence scoring fell back", "text", req.Text, "error", res.Err)
		}
	}()

	user := audio.NormalizeClip(req.Audio, e.opts.Normalize)

	type slice struct {
		word    string
		samples []float32
	}
	var slices []slice
	for _, w := range req.Words {
		s := user.Window(w.Start, w.End)
		if len(s) < e.opts.MinWordSamples || len(s) == 0 {
			continue
		}
		slices = append(slices, slice{word: w.Text, samples: s})
	}
	if len(slices) == 0 {
		return e.fallback(apperrors.New(apperrors.AudioEmptyInput, "no word long enough to score"))
	}

	refEmb, err := e.referenceEmbedding(ctx, req)
	if err != nil {
		return e.fallback(err)
	}

	scores := make([]store.WordScore, 0, len(slices))
	var sum float64
	for _, s := range slices {
		emb, err := e.embedder.Embed(ctx, audio.Clip{Samples: s.samples, Rate: user.Rate})
		if err != nil {
			return e.fallback(apperrors.Wrapf(err, apperrors.EmbeddingFailed, "embed word %q", s.word))
		}
		sim, err := Cosine(emb, refEmb)
		if err != nil {
			return e.fallback(apperrors.Wrapf(err, apperrors.EmbeddingFailed, "compare word %q", s.word))
		}
		scores = append(scores, store.WordScore{Word: s.word, Score: sim})
		sum += sim
	}
	return Result{WordScores: scores, SentenceScore: sum / float64(len(scores))}
}

func (e *Engine) referenceEmbedding(ctx context.Context, req Request) ([]float32, error) {
	var ref audio.Clip
	if req.Reference != nil {
		ref = *req.Reference
	} else {
		if e.synth == nil {
			return nil, apperrors.New(apperrors.SynthesisFailed, "no reference audio and no synthesizer")
		}
		clip, err := e.synth.Synthesize(ctx, req.Text, e.opts.TTSEngine)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.SynthesisFailed, "synthesize reference with %s", e.opts.TTSEngine)
		}
		ref = clip
	}
	ref = audio.NormalizeClip(ref, e.opts.Normalize)
	if len(ref.Samples) == 0 {
		return nil, apperrors.New(apperrors.AudioEmptyInput, "reference audio is empty")
	}
	emb, err := e.embedder.Embed(ctx, ref)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.EmbeddingFailed, "embed reference")
	}
	return emb, nil
}

func (e *Engine) fallback(err error) Result {
	return Result{
		WordScores:    []store.WordScore{},
		SentenceScore: e.opts.FallbackScore,
		Fallback:      true,
		Err:           err,
	}
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding sizes differ: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty embedding")
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("zero-norm embedding")
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0, fmt.Errorf("similarity is NaN")
	}
	return math.Max(-1, math.Min(1, sim)), nil
}
