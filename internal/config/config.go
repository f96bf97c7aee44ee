// Package config loads platform configuration from defaults, an optional YAML
// file and the environment, in increasing precedence.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/resilience"
)

// EnvConfigFile names the environment variable that points at a config file.
const EnvConfigFile = "CONFIG_FILE"

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// TTSEngines lists the synthesis backends the inference service exposes.
var TTSEngines = []string{"gtts", "coqui", "openai"}

// Config is the complete platform configuration.
type Config struct {
	HTTPAddr      string `mapstructure:"http_addr" yaml:"http_addr"`
	InferenceAddr string `mapstructure:"inference_addr" yaml:"inference_addr"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`

	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// StoreConfig selects the document store driver.
type StoreConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// AudioConfig controls canonical audio, uploads and recording.
type AudioConfig struct {
	SampleRate     int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	HighpassHz     float64 `mapstructure:"highpass_hz" yaml:"highpass_hz"`
	TargetRMS      float64 `mapstructure:"target_rms" yaml:"target_rms"`
	MaxUploadBytes int64   `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RecordDevice   string  `mapstructure:"record_device" yaml:"record_device"`
}

// ScoringConfig holds the scoring engine settings and report bands.
type ScoringConfig struct {
	MinWordSamples    int     `mapstructure:"min_word_samples" yaml:"min_word_samples"`
	TTSEngine         string  `mapstructure:"tts_engine" yaml:"tts_engine"`
	FallbackScore     float64 `mapstructure:"fallback_score" yaml:"fallback_score"`
	GoodThreshold     float64 `mapstructure:"good_threshold" yaml:"good_threshold"`
	FairThreshold     float64 `mapstructure:"fair_threshold" yaml:"fair_threshold"`
	ReferenceCacheDir string  `mapstructure:"reference_cache_dir" yaml:"reference_cache_dir"`
}

// PipelineConfig bounds jobs and collaborator calls.
type PipelineConfig struct {
	CallTimeout       time.Duration          `mapstructure:"call_timeout" yaml:"call_timeout"`
	MaxConcurrentJobs int                    `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	SummaryLength     int                    `mapstructure:"summary_length" yaml:"summary_length"`
	Retries           resilience.RetryConfig `mapstructure:"retries" yaml:"retries"`
	Breaker           resilience.Config      `mapstructure:"breaker" yaml:"breaker"`
}

var defaults = map[string]any{
	"http_addr":                            ":8000",
	"inference_addr":                       "localhost:50051",
	"log_level":                            "info",
	"data_dir":                             "data",
	"store.driver":                         DriverFile,
	"store.sqlite_path":                    "",
	"audio.sample_rate":                    16000,
	"audio.highpass_hz":                    80.0,
	"audio.target_rms":                     0.1,
	"audio.max_upload_bytes":               25 << 20,
	"audio.record_device":                  "",
	"scoring.min_word_samples":             160,
	"scoring.tts_engine":                   "gtts",
	"scoring.fallback_score":               -1.0,
	"scoring.good_threshold":               0.5,
	"scoring.fair_threshold":               0.3,
	"scoring.reference_cache_dir":          "",
	"pipeline.call_timeout":                "60s",
	"pipeline.max_concurrent_jobs":         4,
	"pipeline.summary_length":              50,
	"pipeline.retries.max_retries":         resilience.DefaultMaxRetries,
	"pipeline.retries.base_delay":          resilience.DefaultBaseDelay.String(),
	"pipeline.retries.max_delay":           resilience.DefaultMaxDelay.String(),
	"pipeline.retries.jitter_factor":       resilience.DefaultJitterFactor,
	"pipeline.breaker.threshold":           resilience.DefaultThreshold,
	"pipeline.breaker.reset_timeout":       resilience.DefaultResetTimeout.String(),
	"pipeline.breaker.half_open_successes": resilience.DefaultHalfOpenSuccesses,
}

// Load builds the effective configuration. path may be empty, in which case
// CONFIG_FILE is consulted; with neither, only defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "decode config")
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = filepath.Join(cfg.DataDir, "speaklarity.db")
	}
	if cfg.Scoring.ReferenceCacheDir == "" {
		cfg.Scoring.ReferenceCacheDir = filepath.Join(cfg.DataDir, "references")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.ConfigInvalid, format, args...)
	}
	switch {
	case c.Audio.SampleRate <= 0:
		return invalid("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	case c.Audio.HighpassHz < 0 || c.Audio.HighpassHz >= float64(c.Audio.SampleRate)/2:
		return invalid("audio.highpass_hz %.1f outside [0, nyquist)", c.Audio.HighpassHz)
	case c.Audio.TargetRMS <= 0:
		return invalid("audio.target_rms must be positive, got %v", c.Audio.TargetRMS)
	case c.Audio.MaxUploadBytes <= 0:
		return invalid("audio.max_upload_bytes must be positive")
	case c.Scoring.MinWordSamples < 0:
		return invalid("scoring.min_word_samples must not be negative")
	case c.Scoring.FairThreshold > c.Scoring.GoodThreshold:
		return invalid("scoring.fair_threshold %.2f above good_threshold %.2f", c.Scoring.FairThreshold, c.Scoring.GoodThreshold)
	case c.Scoring.FallbackScore >= c.Scoring.FairThreshold:
		return invalid("scoring.fallback_score %.2f must be below fair_threshold %.2f", c.Scoring.FallbackScore, c.Scoring.FairThreshold)
	case !knownEngine(c.Scoring.TTSEngine):
		return invalid("scoring.tts_engine %q not one of %v", c.Scoring.TTSEngine, TTSEngines)
	case c.Store.Driver != DriverFile && c.Store.Driver != DriverSQLite:
		return invalid("store.driver %q not one of [%s %s]", c.Store.Driver, DriverFile, DriverSQLite)
	case c.Pipeline.MaxConcurrentJobs <= 0:
		return invalid("pipeline.max_concurrent_jobs must be positive")
	case c.Pipeline.SummaryLength < 0:
		return invalid("pipeline.summary_length must not be negative")
	case c.Pipeline.CallTimeout < 0:
		return invalid("pipeline.call_timeout must not be negative")
	}
	return nil
}

func knownEngine(name string) bool {
	for _, e := range TTSEngines {
		if e == name {
			return true
		}
	}
	return false
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
