// Package grpcclient talks to the inference server that hosts the speech,
// embedding, synthesis and language models.
package grpcclient

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/speaklarity/platform/internal/audio"
	"github.com/speaklarity/platform/internal/config"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/orchestrator/segment"
	"github.com/speaklarity/platform/internal/resilience"
	"github.com/speaklarity/platform/internal/trace"
)

type Config struct {
	Addr             string
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	CallTimeout      time.Duration
	Language         string
	Retry            resilience.RetryConfig
	Breaker          resilience.Config
	DialOptions      []grpc.DialOption
}

// DefaultConfig returns client defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:             addr,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		CallTimeout:      DefaultCallTimeout,
		Language:         DefaultLanguage,
		Retry:            resilience.DefaultRetryConfig(),
		Breaker:          resilience.DefaultConfig(),
	}
}

// FromConfig derives client settings from the platform configuration.
func FromConfig(cfg *config.Config) Config {
	c := DefaultConfig(cfg.InferenceAddr)
	c.CallTimeout = cfg.Pipeline.CallTimeout
	c.Retry = cfg.Pipeline.Retries
	c.Breaker = cfg.Pipeline.Breaker
	return c
}

// Client wraps all inference services behind one connection. Each service
// has its own breaker so a failing model does not trip the others.
type Client struct {
	conn     *grpc.ClientConn
	language string

	asr   resilience.Policy
	embed resilience.Policy
	tts   resilience.Policy
	llm   resilience.Policy
}

// New creates a new inference client. The connection is established lazily.
func New(cfg Config) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}
	if cfg.KeepaliveTime > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}))
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "connect inference server %s", cfg.Addr)
	}

	policy := func(name string) resilience.Policy {
		return resilience.Policy{
			Breaker: resilience.New(cfg.Breaker.Named(name)),
			Retry:   cfg.Retry,
			Timeout: cfg.CallTimeout,
		}
	}
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Client{
		conn:     conn,
		language: lang,
		asr:      policy("asr"),
		embed:    policy("embedding"),
		tts:      policy("tts"),
		llm:      policy("llm"),
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, p resilience.Policy, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "encode request")
	}
	out, err := resilience.Call(ctx, p, func(ctx context.Context) (*structpb.Struct, error) {
		resp := &structpb.Struct{}
		if err := c.conn.Invoke(ctx, method, in, resp); err != nil {
			return nil, apperrors.FromGRPCError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func decode(in map[string]any, out any) error {
	if err := mapstructure.Decode(in, out); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "decode response")
	}
	return nil
}

func encodeClip(clip audio.Clip) map[string]any {
	return map[string]any{
		"audio":       base64.StdEncoding.EncodeToString(audio.Float32ToBytes(clip.Samples)),
		"sample_rate": clip.Rate,
	}
}

type transcribeResponse struct {
	Text  string         `mapstructure:"text"`
	Words []segment.Word `mapstructure:"words"`
}

// Transcribe returns word-level timestamps for clip.
func (c *Client) Transcribe(ctx context.Context, clip audio.Clip) ([]segment.Word, error) {
	ctx, span := trace.StartSpan(ctx, "transcribe")
	defer span.End()
	span.SetAttr("seconds", clip.Seconds())

	req := encodeClip(clip)
	req["language"] = c.language
	resp, err := c.invoke(ctx, c.asr, MethodTranscribe, req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TranscriptionFailed, "transcribe")
	}
	var out transcribeResponse
	if err := decode(resp, &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TranscriptionFailed, "transcribe")
	}
	span.SetAttr("words", len(out.Words))
	return out.Words, nil
}

type embedResponse struct {
	Embedding []float32 `mapstructure:"embedding"`
}

// Embed returns the speech embedding of clip.
func (c *Client) Embed(ctx context.Context, clip audio.Clip) ([]float32, error) {
	ctx, span := trace.StartSpan(ctx, "embed")
	defer span.End()

	resp, err := c.invoke(ctx, c.embed, MethodEmbed, encodeClip(clip))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.EmbeddingFailed, "embed")
	}
	var out embedResponse
	if err := decode(resp, &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.EmbeddingFailed, "embed")
	}
	if len(out.Embedding) == 0 {
		return nil, apperrors.New(apperrors.EmbeddingFailed, "empty embedding")
	}
	return out.Embedding, nil
}

type synthesizeResponse struct {
	Audio      string `mapstructure:"audio"`
	SampleRate int    `mapstructure:"sample_rate"`
}

// Synthesize renders text with the named TTS engine.
func (c *Client) Synthesize(ctx context.Context, text, engine string) (audio.Clip, error) {
	ctx, span := trace.StartSpan(ctx, "synthesize")
	defer span.End()
	span.SetAttr("engine", engine)

	resp, err := c.invoke(ctx, c.tts, MethodSynthesize, map[string]any{"text": text, "engine": engine})
	if err != nil {
		return audio.Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "synthesize")
	}
	var out synthesizeResponse
	if err := decode(resp, &out); err != nil {
		return audio.Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "synthesize")
	}
	raw, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		return audio.Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "decode synthesized audio")
	}
	samples := audio.BytesToFloat32(raw)
	if len(samples) == 0 || out.SampleRate <= 0 {
		return audio.Clip{}, apperrors.New(apperrors.SynthesisFailed, "synthesized audio is empty")
	}
	return audio.Clip{Samples: samples, Rate: out.SampleRate}, nil
}

type generateResponse struct {
	Text string `mapstructure:"text"`
}

// Complete asks the language model to answer prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "generate")
	defer span.End()

	resp, err := c.invoke(ctx, c.llm, MethodGenerate, map[string]any{"prompt": prompt})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.GrammarFailed, "generate")
	}
	var out generateResponse
	if err := decode(resp, &out); err != nil {
		return "", apperrors.Wrap(err, apperrors.GrammarFailed, "generate")
	}
	return out.Text, nil
}
