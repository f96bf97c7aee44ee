package audio

import (
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

const (
	wavFormatPCM = 1
	encodeDepth  = 16
)

// DecodeWAV reads an integer PCM WAV stream into a float buffer scaled to [-1, 1).
func DecodeWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, apperrors.New(apperrors.AudioInvalidFormat, "not a valid wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return Buffer{}, apperrors.Newf(apperrors.AudioInvalidFormat, "unsupported wav encoding %d", dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, apperrors.Wrap(err, apperrors.AudioInvalidFormat, "read wav samples")
	}
	if len(pcm.Data) == 0 {
		return Buffer{}, apperrors.New(apperrors.AudioEmptyInput, "wav file has no samples")
	}

	depth := int(dec.BitDepth)
	if depth <= 0 || depth > 32 {
		return Buffer{}, apperrors.Newf(apperrors.AudioInvalidFormat, "unsupported bit depth %d", depth)
	}
	scale := 1 / math.Pow(2, float64(depth-1))
	// 8-bit wav is unsigned
	var offset int
	if depth == 8 {
		offset = 128
	}

	data := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		data[i] = float32(float64(v-offset) * scale)
	}
	return Buffer{Data: data, Channels: int(dec.NumChans), Rate: int(dec.SampleRate)}, nil
}

// EncodeWAV writes a mono clip as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, c Clip) error {
	if c.Rate <= 0 {
		return apperrors.Newf(apperrors.InvalidArgument, "invalid sample rate %d", c.Rate)
	}
	enc := wav.NewEncoder(w, c.Rate, encodeDepth, 1, wavFormatPCM)

	const peak = 1<<(encodeDepth-1) - 1
	ints := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		ints[i] = int(math.Round(v * peak))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.Rate},
		Data:           ints,
		SourceBitDepth: encodeDepth,
	}
	if err := enc.Write(buf); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "encode wav")
	}
	if err := enc.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "finalize wav")
	}
	return nil
}
