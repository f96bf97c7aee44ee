package audio

import "math"

// resampleHalfTaps is the one-sided sinc kernel width in input samples at unity ratio.
const resampleHalfTaps = 16

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	TargetRate int
	HighpassHz float64
	TargetRMS  float64
}

// DefaultNormalizeOptions mirrors the scoring defaults.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{TargetRate: 16000, HighpassHz: 80, TargetRMS: 0.1}
}

// Normalize turns raw audio into the canonical comparable waveform: mono,
// resampled to TargetRate, high-passed at HighpassHz, scaled to TargetRMS.
// A silent waveform is returned unscaled. The function is pure.
func Normalize(b Buffer, opts NormalizeOptions) Clip {
	c := Resample(b.Mono(), opts.TargetRate)
	highpass(c.Samples, c.Rate, opts.HighpassHz)
	scaleToRMS(c.Samples, opts.TargetRMS)
	return c
}

// NormalizeClip is Normalize for mono input.
func NormalizeClip(c Clip, opts NormalizeOptions) Clip {
	return Normalize(Buffer{Data: c.Samples, Channels: 1, Rate: c.Rate}, opts)
}

// Resample converts c to rate with a Hann-windowed sinc interpolator. When
// downsampling the kernel cutoff follows the target Nyquist frequency.
func Resample(c Clip, rate int) Clip {
	if rate <= 0 || c.Rate <= 0 || rate == c.Rate || len(c.Samples) == 0 {
		return Clip{Samples: append([]float32(nil), c.Samples...), Rate: pick(rate, c.Rate)}
	}

	ratio := float64(rate) / float64(c.Rate)
	cutoff := math.Min(1, ratio)
	half := float64(resampleHalfTaps) / cutoff

	n := int(math.Round(float64(len(c.Samples)) * ratio))
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / ratio
		lo := int(math.Ceil(t - half))
		hi := int(math.Floor(t + half))
		if lo < 0 {
			lo = 0
		}
		if hi > len(c.Samples)-1 {
			hi = len(c.Samples) - 1
		}
		var acc float64
		for k := lo; k <= hi; k++ {
			d := t - float64(k)
			acc += float64(c.Samples[k]) * cutoff * sinc(cutoff*d) * hann(d, half)
		}
		out[i] = float32(acc)
	}
	return Clip{Samples: out, Rate: rate}
}

func pick(rate, fallback int) int {
	if rate > 0 {
		return rate
	}
	return fallback
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func hann(d, half float64) float64 {
	if math.Abs(d) >= half {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*d/half))
}

// highpass applies a second-order Butterworth high-pass in place.
func highpass(x []float32, rate int, cutoffHz float64) {
	if cutoffHz <= 0 || rate <= 0 || cutoffHz >= float64(rate)/2 || len(x) == 0 {
		return
	}
	w0 := 2 * math.Pi * cutoffHz / float64(rate)
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	const q = 1 / math.Sqrt2
	alpha := sinw / (2 * q)

	a0 := 1 + alpha
	b0 := (1 + cosw) / 2 / a0
	b1 := -(1 + cosw) / a0
	b2 := b0
	a1 := -2 * cosw / a0
	a2 := (1 - alpha) / a0

	var x1, x2, y1, y2 float64
	for i, s := range x {
		in := float64(s)
		y := b0*in + b1*x1 + b2*x2 - a1*y1 - a2*y2
		x2, x1 = x1, in
		y2, y1 = y1, y
		x[i] = float32(y)
	}
}

// RMS returns the root-mean-square amplitude of x.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, s := range x {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func scaleToRMS(x []float32, target float64) {
	if target <= 0 {
		return
	}
	rms := RMS(x)
	if rms == 0 || math.IsNaN(rms) {
		return
	}
	g := target / rms
	for i := range x {
		x[i] = float32(float64(x[i]) * g)
	}
}
