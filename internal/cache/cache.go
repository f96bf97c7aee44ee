// Package cache keeps synthesized native references on disk so a sentence is
// only rendered once per TTS engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/speaklarity/platform/internal/audio"
	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/trace"
)

// References wraps a Synthesizer with a WAV file cache under dir.
type References struct {
	next scoring.Synthesizer
	dir  string
}

var _ scoring.Synthesizer = (*References)(nil)

// NewReferences caches next's output under dir.
func NewReferences(next scoring.Synthesizer, dir string) *References {
	return &References{next: next, dir: dir}
}

// Key returns the cache key for text rendered by engine.
func Key(engine, text string) string {
	h := sha256.New()
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func (r *References) path(engine, text string) string {
	return filepath.Join(r.dir, Key(engine, text)+"_native.wav")
}

// Synthesize returns the cached clip when present. A fresh clip is returned
// as read back from its entry so hits and misses carry identical samples.
// Cache failures are logged and never fail the call.
func (r *References) Synthesize(ctx context.Context, text, engine string) (audio.Clip, error) {
	log := trace.Logger(ctx)
	path := r.path(engine, text)

	if clip, err := load(path); err == nil {
		log.Debug("reference cache hit", "engine", engine)
		return clip, nil
	} else if !stderrors.Is(err, os.ErrNotExist) {
		log.Warn("reference cache read failed", "path", path, "error", err)
	}

	clip, err := r.next.Synthesize(ctx, text, engine)
	if err != nil {
		return audio.Clip{}, err
	}
	if err := store(path, clip); err != nil {
		log.Warn("reference cache write failed", "path", path, "error", err)
		return clip, nil
	}
	cached, err := load(path)
	if err != nil {
		log.Warn("reference cache read failed", "path", path, "error", err)
		return clip, nil
	}
	return cached, nil
}

func load(path string) (audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Clip{}, err
	}
	defer f.Close()
	buf, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.Clip{}, err
	}
	return buf.Mono(), nil
}

func store(path string, clip audio.Clip) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ref-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := audio.EncodeWAV(tmp, clip); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
