package audio

import (
	apperrors "github.com/speaklarity/platform/internal/errors"
)

// Cut extracts [start, end) seconds from src as a standalone clip. The end is
// clamped to the clip; an inverted span, a negative start or a start past the
// end of the audio is an error.
func Cut(src Clip, start, end float64) (Clip, error) {
	if src.Rate <= 0 {
		return Clip{}, apperrors.Newf(apperrors.CutFailed, "invalid sample rate %d", src.Rate)
	}
	if end <= start {
		return Clip{}, apperrors.Newf(apperrors.CutFailed, "invalid span [%.3f, %.3f)", start, end)
	}
	if start < 0 {
		return Clip{}, apperrors.Newf(apperrors.CutFailed, "negative start %.3f", start)
	}

	lo := int(start * float64(src.Rate))
	hi := int(end * float64(src.Rate))
	if lo >= len(src.Samples) {
		return Clip{}, apperrors.Newf(apperrors.CutFailed, "start %.3f beyond audio length %.3f", start, src.Seconds())
	}
	if hi > len(src.Samples) {
		hi = len(src.Samples)
	}
	if hi <= lo {
		return Clip{}, apperrors.Newf(apperrors.CutFailed, "span [%.3f, %.3f) is shorter than one sample", start, end)
	}

	out := make([]float32, hi-lo)
	copy(out, src.Samples[lo:hi])
	return Clip{Samples: out, Rate: src.Rate}, nil
}

// Cutter adapts Cut to the orchestrator's audio-cut collaborator.
type Cutter struct{}

// Cut implements the collaborator contract.
func (Cutter) Cut(src Clip, start, end float64) (Clip, error) { return Cut(src, start, end) }
