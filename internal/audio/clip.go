// Package audio holds the waveform types shared by ingest, scoring and
// recording, plus WAV codec, normalization and cutting helpers.
package audio

import "time"

// Clip is a mono waveform at a fixed sample rate.
type Clip struct {
	Samples []float32
	Rate    int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.Rate) * float64(time.Second))
}

// Seconds returns the clip length in seconds.
func (c Clip) Seconds() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Window returns the samples in [start·rate, end·rate), clamped to the clip.
// Out-of-range or inverted windows yield an empty slice.
func (c Clip) Window(start, end float64) []float32 {
	lo := int(start * float64(c.Rate))
	hi := int(end * float64(c.Rate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.Samples) {
		hi = len(c.Samples)
	}
	if lo >= hi {
		return nil
	}
	return c.Samples[lo:hi]
}

// Buffer is raw interleaved audio as decoded from a file or device.
type Buffer struct {
	Data     []float32
	Channels int
	Rate     int
}

// Frames returns the number of multi-channel frames.
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Mono down-mixes the buffer by averaging channels.
func (b Buffer) Mono() Clip {
	if b.Channels <= 1 {
		return Clip{Samples: append([]float32(nil), b.Data...), Rate: b.Rate}
	}
	frames := b.Frames()
	out := make([]float32, frames)
	inv := 1 / float32(b.Channels)
	for i := range frames {
		var sum float32
		for ch := 0; ch < b.Channels; ch++ {
			sum += b.Data[i*b.Channels+ch]
		}
		out[i] = sum * inv
	}
	return Clip{Samples: out, Rate: b.Rate}
}
