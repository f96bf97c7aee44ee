package store

import (
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/speaklarity/platform/internal/audio"
	apperrors "github.com/speaklarity/platform/internal/errors"
)

// AudioDir owns the on-disk audio layout: <root>/<id>/conversation_<id>.wav.
type AudioDir struct {
	root string
}

func NewAudioDir(root string) *AudioDir {
	return &AudioDir{root: root}
}

// Path returns where the conversation audio for id lives.
func (a *AudioDir) Path(id string) string {
	return filepath.Join(a.root, id, fmt.Sprintf("conversation_%s.wav", id))
}

// Save writes clip as 16-bit WAV and returns the SHA-256 of the stored file.
func (a *AudioDir) Save(id string, clip audio.Clip) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	path := a.Path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "create conversation dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".audio-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "create audio file")
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := audio.EncodeWAV(tmp, clip); err != nil {
		tmp.Close()
		return "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "rewind audio file")
	}
	h := sha256.New()
	if _, err := io.Copy(h, tmp); err != nil {
		tmp.Close()
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "hash audio file")
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "close audio file")
	}
	if err := os.Rename(name, path); err != nil {
		return "", apperrors.Wrap(err, apperrors.StoreFailed, "store audio file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load decodes the stored conversation audio as a mono clip.
func (a *AudioDir) Load(id string) (audio.Clip, error) {
	if err := ValidateID(id); err != nil {
		return audio.Clip{}, err
	}
	f, err := os.Open(a.Path(id))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return audio.Clip{}, apperrors.Newf(apperrors.NotFound, "audio for conversation %s not found", id)
		}
		return audio.Clip{}, apperrors.Wrap(err, apperrors.StoreFailed, "open audio")
	}
	defer f.Close()

	buf, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.Clip{}, err
	}
	return buf.Mono(), nil
}

// Remove deletes the audio file and, if it is now empty, its directory.
func (a *AudioDir) Remove(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(a.Path(id)); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.StoreFailed, "remove audio")
	}
	_ = os.Remove(filepath.Join(a.root, id))
	return nil
}
